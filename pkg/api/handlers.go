package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/types"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx answer that is not a
// scheduler result
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	task, err := s.decodeTask(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sched.CanAcceptTask(r.Context(), task))
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	task, err := s.decodeTask(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := s.sched.ScheduleTask(r.Context(), task)
	switch {
	case res.Scheduled:
		writeJSON(w, http.StatusCreated, res)
	case res.Reason == types.ReasonDuplicateTask:
		writeJSON(w, http.StatusConflict, res)
	default:
		setRetryAfter(w, res.EstimatedWaitTime)
		writeJSON(w, http.StatusTooManyRequests, res)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	res := s.sched.StartTask(r.PathValue("id"))
	status := http.StatusOK
	if !res.Started {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var actual types.ResourceUsage
	if err := decodeJSON(r, &actual); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateUsage(actual); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := s.sched.ReportOutcome(r.PathValue("id"), actual)
	status := http.StatusOK
	switch res.Reason {
	case scheduler.ReasonNotFound:
		status = http.StatusNotFound
	case scheduler.ReasonNotRunning:
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	res := s.sched.RemoveTask(r.PathValue("id"))
	status := http.StatusOK
	switch res.Reason {
	case scheduler.ReasonNotFound:
		status = http.StatusNotFound
	case scheduler.ReasonNotScheduled:
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	next := s.sched.GetNextTask()
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetSchedule())
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetSystemCapacity())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetStats())
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetAccuracyMetrics())
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	epochs := 10
	if v := r.URL.Query().Get("epochs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("epochs must be a positive integer, got %q", v))
			return
		}
		epochs = n
	}

	report, err := s.sched.RetrainModels(epochs)
	if err != nil {
		s.logger.Error().Err(err).Int("epochs", epochs).Msg("Retraining failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// decodeTask reads a task descriptor, accepting the id/taskId and
// type/taskType aliases, and normalizes it
func (s *Server) decodeTask(r *http.Request) (*types.Task, error) {
	var spec types.TaskSpec
	if err := decodeJSON(r, &spec); err != nil {
		return nil, err
	}
	return spec.Normalize(s.cfg.Now()), nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func validateUsage(u types.ResourceUsage) error {
	for _, kind := range types.ResourceKinds {
		v := u.Get(kind)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s must be a non-negative number", kind)
		}
	}
	return nil
}

func setRetryAfter(w http.ResponseWriter, wait time.Duration) {
	if wait <= 0 {
		return
	}
	secs := int(math.Ceil(wait.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
