package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EndpointChecker queries a Burrow server's /health or /ready endpoint. The
// CLI uses it to wait for a freshly started server.
type EndpointChecker struct {
	URL    string
	Client *http.Client
}

// NewEndpointChecker creates a checker for url
func NewEndpointChecker(url string) *EndpointChecker {
	return &EndpointChecker{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// WithTimeout sets the HTTP client timeout
func (e *EndpointChecker) WithTimeout(timeout time.Duration) *EndpointChecker {
	e.Client.Timeout = timeout
	return e
}

type endpointBody struct {
	Status string `json:"status"`
}

// Check performs the request. A 2xx answer is healthy unless the JSON body
// carries a status other than healthy or ready.
func (e *EndpointChecker) Check(ctx context.Context) Result {
	start := time.Now()
	fail := func(format string, args ...any) Result {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return fail("failed to create request: %v", err)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body endpointBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(data, &body) == nil && body.Status != "" && body.Status != "healthy" && body.Status != "ready" {
		return fail("status %s", body.Status)
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("HTTP %d", resp.StatusCode),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (e *EndpointChecker) Type() CheckType {
	return CheckTypeEndpoint
}
