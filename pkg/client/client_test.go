package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithRetries(3), WithBackOff(func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, scheduler.Stats{Submitted: 7})
	})

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Submitted)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})

	_, err := c.GetSystemCapacity(context.Background())
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is empty"})
	})

	_, err := c.ScheduleTask(context.Background(), &types.TaskSpec{})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRejectionIsAResult(t *testing.T) {
	var got types.TaskSpec
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tasks", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusTooManyRequests, scheduler.ScheduleResult{
			TaskID:            "t-1",
			Reason:            types.ReasonInsufficientMemory,
			EstimatedWaitTime: 5 * time.Minute,
		})
	})

	res, err := c.ScheduleTask(context.Background(), &types.TaskSpec{ID: "t-1", Type: "fix"})
	require.NoError(t, err)
	assert.False(t, res.Scheduled)
	assert.Equal(t, types.ReasonInsufficientMemory, res.Reason)
	assert.Equal(t, 5*time.Minute, res.EstimatedWaitTime)
	assert.Equal(t, "fix", got.Type)
}

func TestLookupMissIsAResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tasks/a%2Fb/outcome", "/v1/tasks/a/b/outcome":
			writeJSON(w, http.StatusNotFound, scheduler.OutcomeResult{Reason: scheduler.ReasonNotFound})
		case "/v1/tasks/t-2":
			assert.Equal(t, http.MethodDelete, r.Method)
			writeJSON(w, http.StatusConflict, scheduler.RemoveResult{Reason: scheduler.ReasonNotScheduled})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	out, err := c.ReportOutcome(ctx, "a/b", types.ResourceUsage{MemoryMB: 1})
	require.NoError(t, err)
	assert.False(t, out.Recorded)
	assert.Equal(t, scheduler.ReasonNotFound, out.Reason)

	rm, err := c.RemoveTask(ctx, "t-2")
	require.NoError(t, err)
	assert.Equal(t, scheduler.ReasonNotScheduled, rm.Reason)
}

func TestNextTaskEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	next, err := c.GetNextTask(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRetrainQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/retrain", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("epochs"))
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	_, err := c.RetrainModels(context.Background(), 25)
	require.NoError(t, err)
}

func TestContextCancelStopsRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "down"})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetStats(ctx)
	assert.Error(t, err)
}

func TestNewClientAddress(t *testing.T) {
	c, err := NewClient("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "http", c.base.Scheme)
	assert.Equal(t, "127.0.0.1:8080", c.base.Host)
}
