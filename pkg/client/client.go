package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/predictor"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/types"
)

// DefaultRetries is the number of retries after the first attempt
const DefaultRetries = 4

// Error is a non-2xx answer that does not carry a scheduler result
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("burrow: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Client talks to a Burrow server over HTTP
type Client struct {
	base    *url.URL
	http    *http.Client
	retries uint64
	backoff func() backoff.BackOff
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how many times a failed request is retried
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// WithBackOff replaces the exponential retry policy
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.backoff = f }
}

// NewClient creates a client for the server at addr. A bare host:port is
// treated as http.
func NewClient(addr string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}

	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: 10 * time.Second},
		retries: DefaultRetries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CanAcceptTask runs the admission check without reserving anything
func (c *Client) CanAcceptTask(ctx context.Context, spec *types.TaskSpec) (*scheduler.AdmissionCheck, error) {
	var out scheduler.AdmissionCheck
	if err := c.do(ctx, http.MethodPost, "/v1/tasks/check", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleTask submits a task. Rejections are returned as a result with
// Scheduled false, not as an error.
func (c *Client) ScheduleTask(ctx context.Context, spec *types.TaskSpec) (*scheduler.ScheduleResult, error) {
	var out scheduler.ScheduleResult
	if err := c.do(ctx, http.MethodPost, "/v1/tasks", spec, &out, http.StatusConflict, http.StatusTooManyRequests); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartTask marks a scheduled task as running
func (c *Client) StartTask(ctx context.Context, taskID string) (*scheduler.StartResult, error) {
	var out scheduler.StartResult
	if err := c.do(ctx, http.MethodPost, taskPath(taskID, "start"), nil, &out, http.StatusConflict); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportOutcome reports the actual usage of a task
func (c *Client) ReportOutcome(ctx context.Context, taskID string, actual types.ResourceUsage) (*scheduler.OutcomeResult, error) {
	var out scheduler.OutcomeResult
	if err := c.do(ctx, http.MethodPost, taskPath(taskID, "outcome"), actual, &out, http.StatusNotFound, http.StatusConflict); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveTask withdraws a scheduled task
func (c *Client) RemoveTask(ctx context.Context, taskID string) (*scheduler.RemoveResult, error) {
	var out scheduler.RemoveResult
	if err := c.do(ctx, http.MethodDelete, taskPath(taskID, ""), nil, &out, http.StatusNotFound, http.StatusConflict); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNextTask returns the highest ranked runnable task, nil when none
func (c *Client) GetNextTask(ctx context.Context) (*scheduler.NextTask, error) {
	var out *scheduler.NextTask
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/next", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSchedule returns the queue and the running tasks
func (c *Client) GetSchedule(ctx context.Context) (*scheduler.Schedule, error) {
	var out scheduler.Schedule
	if err := c.do(ctx, http.MethodGet, "/v1/schedule", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSystemCapacity returns the current reservations against the limits
func (c *Client) GetSystemCapacity(ctx context.Context) (*types.SystemCapacity, error) {
	var out types.SystemCapacity
	if err := c.do(ctx, http.MethodGet, "/v1/capacity", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStats returns the scheduler's lifetime counters
func (c *Client) GetStats(ctx context.Context) (*scheduler.Stats, error) {
	var out scheduler.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccuracyMetrics returns prediction accuracy per resource
func (c *Client) GetAccuracyMetrics(ctx context.Context) (*predictor.AccuracyMetrics, error) {
	var out predictor.AccuracyMetrics
	if err := c.do(ctx, http.MethodGet, "/v1/accuracy", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrainModels asks the server to batch retrain every model
func (c *Client) RetrainModels(ctx context.Context, epochs int) (*predictor.TrainReport, error) {
	path := "/v1/models/retrain"
	if epochs > 0 {
		path += "?epochs=" + strconv.Itoa(epochs)
	}
	var out predictor.TrainReport
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func taskPath(id, action string) string {
	p := "/v1/tasks/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

// do sends one request, retrying transport failures and 5xx answers.
// Statuses listed in results carry a scheduler result and are decoded
// into out like a 2xx.
func (c *Client) do(ctx context.Context, method, path string, in, out any, results ...int) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	target := strings.TrimSuffix(c.base.String(), "/") + path

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return decodeError(resp)
		}
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if resp.StatusCode < 300 || contains(results, resp.StatusCode) {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
			return nil
		}
		return backoff.Permanent(decodeError(resp))
	}

	notify := func(err error, wait time.Duration) {
		log.Logger.Debug().
			Err(err).
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Request failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), c.retries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}

func contains(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
