package health

import (
	"context"
	"sync"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHost     CheckType = "host"
	CheckTypeEndpoint CheckType = "endpoint"
	CheckTypeStatic   CheckType = "static"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Config controls how results are folded into a Status
type Config struct {
	// Timeout bounds a single check
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy
	Retries int
}

// DefaultConfig flips to unhealthy on the first failed check. Admission
// decisions are made per task, so there is nothing to smooth over.
func DefaultConfig() Config {
	return Config{
		Timeout: time.Second,
		Retries: 1,
	}
}

// Status tracks consecutive results of one checker
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result
	Healthy              bool
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy: true, // Assume healthy until proven otherwise
	}
}

// Update updates the status based on a new health check result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0

		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
}

// Monitor runs a Checker on demand and keeps its Status. It is safe for
// concurrent use.
type Monitor struct {
	mu      sync.Mutex
	checker Checker
	config  Config
	status  *Status
}

// NewMonitor wraps checker with retry accounting
func NewMonitor(checker Checker, config Config) *Monitor {
	if config.Retries < 1 {
		config.Retries = 1
	}
	return &Monitor{
		checker: checker,
		config:  config,
		status:  NewStatus(),
	}
}

// Observe runs the checker once and returns the resulting status
func (m *Monitor) Observe(ctx context.Context) Status {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}
	result := m.checker.Check(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Update(result, m.config)
	return *m.status
}

// Status returns the last observed status without probing
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.status
}

// Static is a Checker with a fixed answer, used by tests and when host
// probing is turned off.
type Static struct {
	mu      sync.Mutex
	healthy bool
	message string
}

// NewStatic creates a static checker
func NewStatic(healthy bool, message string) *Static {
	return &Static{healthy: healthy, message: message}
}

// Set changes the answer returned by subsequent checks
func (s *Static) Set(healthy bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
	s.message = message
}

func (s *Static) Check(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{Healthy: s.healthy, Message: s.message, CheckedAt: time.Now()}
}

func (s *Static) Type() CheckType {
	return CheckTypeStatic
}
