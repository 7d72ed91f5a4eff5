package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/predictor"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Scheduler is the contract exposed over HTTP
type Scheduler interface {
	CanAcceptTask(ctx context.Context, task *types.Task) scheduler.AdmissionCheck
	ScheduleTask(ctx context.Context, task *types.Task) scheduler.ScheduleResult
	StartTask(taskID string) scheduler.StartResult
	ReportOutcome(taskID string, actual types.ResourceUsage) scheduler.OutcomeResult
	RemoveTask(taskID string) scheduler.RemoveResult
	GetNextTask() *scheduler.NextTask
	GetSchedule() scheduler.Schedule
	GetSystemCapacity() types.SystemCapacity
	GetStats() scheduler.Stats
	GetAccuracyMetrics() predictor.AccuracyMetrics
	RetrainModels(epochs int) (predictor.TrainReport, error)
}

// Config configures the HTTP server
type Config struct {
	Addr string

	// RateLimit is the sustained rate of mutating requests per second; zero
	// disables limiting
	RateLimit float64
	RateBurst int

	Now func() time.Time
}

// Server serves the scheduler contract as JSON over HTTP along with the
// health, readiness and metrics endpoints
type Server struct {
	sched   Scheduler
	cfg     Config
	mux     *http.ServeMux
	limiter *Limiter
	http    *http.Server
	logger  zerolog.Logger
}

// NewServer creates a new API server
func NewServer(sched Scheduler, cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		sched:   sched,
		cfg:     cfg,
		mux:     http.NewServeMux(),
		limiter: NewLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  log.WithComponent("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Mutating routes share the rate limiter
	s.handle("POST /v1/tasks", "schedule", s.limited(s.handleSchedule))
	s.handle("POST /v1/tasks/{id}/start", "start", s.limited(s.handleStart))
	s.handle("POST /v1/tasks/{id}/outcome", "outcome", s.limited(s.handleOutcome))
	s.handle("DELETE /v1/tasks/{id}", "remove", s.limited(s.handleRemove))
	s.handle("POST /v1/models/retrain", "retrain", s.limited(s.handleRetrain))

	s.handle("POST /v1/tasks/check", "check", s.handleCheck)
	s.handle("GET /v1/tasks/next", "next", s.handleNext)
	s.handle("GET /v1/schedule", "get_schedule", s.handleGetSchedule)
	s.handle("GET /v1/capacity", "capacity", s.handleCapacity)
	s.handle("GET /v1/stats", "stats", s.handleStats)
	s.handle("GET /v1/accuracy", "accuracy", s.handleAccuracy)

	s.mux.Handle("GET /health", metrics.HealthHandler())
	s.mux.Handle("GET /ready", metrics.ReadyHandler())
	s.mux.Handle("GET /live", metrics.LivenessHandler())
	s.mux.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.Handle(pattern, instrument(route, h))
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve accepts connections on lis until Shutdown is called
func (s *Server) Serve(lis net.Listener) error {
	s.http = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metrics.RegisterComponent("api", true, "serving on "+lis.Addr().String())
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("HTTP API listening")

	if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent("api", false, err.Error())
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent("api", false, "shutting down")
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
