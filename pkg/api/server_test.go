package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, apiCfg Config, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	now := func() time.Time { return epoch }

	sched, err := scheduler.Open(cfg, scheduler.Deps{
		Store:  storage.NewMemoryStore(),
		Health: health.NewStatic(true, ""),
		Now:    now,
	})
	require.NoError(t, err)
	t.Cleanup(sched.Close)

	apiCfg.Now = now
	srv := httptest.NewServer(NewServer(sched, apiCfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const fixBody = `{"id":"t-1","type":"fix","description":"fix nil pointer in handler","priority":"P1"}`

func TestScheduleRoute(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := do(t, http.MethodPost, srv.URL+"/v1/tasks", fixBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[scheduler.ScheduleResult](t, resp)
	assert.True(t, res.Scheduled)
	assert.Equal(t, "t-1", res.TaskID)
	assert.Equal(t, 1, res.QueuePosition)

	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks", fixBody)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	res = decode[scheduler.ScheduleResult](t, resp)
	assert.Equal(t, types.ReasonDuplicateTask, res.Reason)
}

func TestScheduleAliases(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := do(t, http.MethodPost, srv.URL+"/v1/tasks", `{"taskId":"t-alias","taskType":"bug fix","description":"fix it"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/schedule", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sched := decode[scheduler.Schedule](t, resp)
	require.Len(t, sched.Queued, 1)
	assert.Equal(t, "t-alias", sched.Queued[0].Task.ID)
	assert.Equal(t, types.TaskTypeFix, sched.Queued[0].Task.Type)
}

func TestRejectionSetsRetryAfter(t *testing.T) {
	srv := newTestServer(t, Config{}, func(c *config.Config) {
		c.MaxConcurrentTasks = 1
	})

	resp := do(t, http.MethodPost, srv.URL+"/v1/tasks", fixBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks", `{"id":"t-2","type":"review","description":"review the change"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	res := decode[scheduler.ScheduleResult](t, resp)
	assert.False(t, res.Scheduled)
	assert.Equal(t, types.ReasonNoWorkerSlots, res.Reason)
}

func TestCheckRoute(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := do(t, http.MethodPost, srv.URL+"/v1/tasks/check", fixBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := decode[scheduler.AdmissionCheck](t, resp)
	assert.True(t, check.Feasible)
	assert.Equal(t, types.MethodHeuristic, check.PredictionMethod)

	resp = do(t, http.MethodGet, srv.URL+"/v1/tasks/next", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLifecycleRoutes(t *testing.T) {
	srv := newTestServer(t, Config{})

	do(t, http.MethodPost, srv.URL+"/v1/tasks", fixBody)

	resp := do(t, http.MethodGet, srv.URL+"/v1/tasks/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[scheduler.NextTask](t, resp)
	assert.Equal(t, "t-1", next.Task.ID)

	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks/t-1/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[scheduler.StartResult](t, resp).Started)

	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks/t-1/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/v1/tasks/t-1", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, scheduler.ReasonNotScheduled, decode[scheduler.RemoveResult](t, resp).Reason)

	usage := `{"memoryMB":600,"cpuSeconds":40,"tokens":20000,"durationMs":200000}`
	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks/t-1/outcome", usage)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[scheduler.OutcomeResult](t, resp)
	assert.True(t, out.Recorded)
	assert.NotNil(t, out.Accuracy)

	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks/t-1/outcome", usage)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[scheduler.Stats](t, resp)
	assert.Equal(t, 1, stats.Completed)

	resp = do(t, http.MethodGet, srv.URL+"/v1/capacity", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	capacity := decode[types.SystemCapacity](t, resp)
	assert.Zero(t, capacity.CurrentTasks)
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"empty body", http.MethodPost, "/v1/tasks", ""},
		{"malformed json", http.MethodPost, "/v1/tasks", `{"id":`},
		{"negative usage", http.MethodPost, "/v1/tasks/t-1/outcome", `{"memoryMB":-1}`},
		{"bad epochs", http.MethodPost, "/v1/models/retrain?epochs=zero", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})

	resp := do(t, http.MethodPost, srv.URL+"/v1/tasks", fixBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/tasks", `{"id":"t-2","type":"docs","description":"update the readme"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Contains(t, decode[ErrorResponse](t, resp).Error, "rate limit")

	// Reads are not limited
	resp = do(t, http.MethodGet, srv.URL+"/v1/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := do(t, http.MethodGet, srv.URL+"/live", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	do(t, http.MethodPost, srv.URL+"/v1/tasks", fixBody)

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "burrow_api_requests_total"))
}

func TestLimiter(t *testing.T) {
	unlimited := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow())

	l := NewLimiter(0.001, 2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
