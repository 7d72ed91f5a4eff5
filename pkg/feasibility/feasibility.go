package feasibility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyAllocated is returned when a task already holds a reservation
	ErrAlreadyAllocated = errors.New("resources already allocated")

	// ErrInsufficientCapacity is returned when an allocation would overcommit
	// memory or worker slots
	ErrInsufficientCapacity = errors.New("insufficient capacity")
)

const (
	hourKeyLayout = "2006-01-02T15"
	dayKeyLayout  = "2006-01-02"
)

// LedgerStore persists the token ledger
type LedgerStore interface {
	SaveTokenLedger(ledger *types.TokenLedger) error
	LoadTokenLedger() (*types.TokenLedger, error)
}

// Config holds the capacity limits
type Config struct {
	MaxMemoryMB         float64
	MaxConcurrentTasks  int
	TokenBudgetPerHour  float64
	TokenBudgetPerDay   float64
	RejectOnOverload    bool
	AverageTaskDuration time.Duration
	HealthRetryInterval time.Duration

	// Location decides where hour and day buckets roll over
	Location *time.Location

	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxMemoryMB:         4096,
		MaxConcurrentTasks:  4,
		TokenBudgetPerHour:  500000,
		TokenBudgetPerDay:   5000000,
		RejectOnOverload:    true,
		AverageTaskDuration: 5 * time.Minute,
		HealthRetryInterval: 60 * time.Second,
		Location:            time.UTC,
		Now:                 time.Now,
	}
}

// Checker owns the live resource ledger: reservations of admitted tasks,
// the worker slot count and the committed token budget. It is safe for
// concurrent use; allocation and release are its only mutators.
type Checker struct {
	mu          sync.Mutex
	cfg         Config
	allocations map[string]types.ResourceAllocation
	reservedMem float64
	reservedTok float64
	ledger      *types.TokenLedger
	monitor     *health.Monitor
	store       LedgerStore
	logger      zerolog.Logger
}

// New creates a checker. monitor and store may be nil: without a monitor
// the host is always healthy, without a store the ledger is not persisted.
func New(cfg Config, monitor *health.Monitor, store LedgerStore) (*Checker, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AverageTaskDuration <= 0 {
		cfg.AverageTaskDuration = DefaultConfig().AverageTaskDuration
	}
	if cfg.HealthRetryInterval <= 0 {
		cfg.HealthRetryInterval = DefaultConfig().HealthRetryInterval
	}

	c := &Checker{
		cfg:         cfg,
		allocations: make(map[string]types.ResourceAllocation),
		ledger:      types.NewTokenLedger(),
		monitor:     monitor,
		store:       store,
		logger:      log.WithComponent("feasibility"),
	}

	if store != nil {
		ledger, err := store.LoadTokenLedger()
		if err != nil {
			return nil, fmt.Errorf("failed to load token ledger: %w", err)
		}
		c.ledger = ledger
	}
	return c, nil
}

// CalculateFeasibility decides whether a task with the given predicted
// footprint can be admitted right now. Checks run in a fixed order and the
// first failure is the reported reason.
func (c *Checker) CalculateFeasibility(ctx context.Context, req types.ResourceUsage) types.FeasibilityVerdict {
	var status *health.Status
	if c.monitor != nil {
		s := c.monitor.Observe(ctx)
		status = &s
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	snap := c.snapshotLocked(now, status)
	verdict := types.FeasibilityVerdict{Feasible: true, Snapshot: snap}

	reject := func(reason types.RejectionReason, wait time.Duration) types.FeasibilityVerdict {
		verdict.Feasible = false
		verdict.Reason = reason
		verdict.EstimatedWaitTime = wait
		return verdict
	}

	if snap.AvailableSlots <= 0 {
		return reject(types.ReasonNoWorkerSlots, c.cfg.AverageTaskDuration)
	}
	if req.MemoryMB > snap.AvailableMemoryMB {
		return reject(types.ReasonInsufficientMemory, c.cfg.AverageTaskDuration)
	}
	if req.Tokens > snap.HourlyTokensRemaining {
		if req.Tokens > snap.DailyTokensRemaining {
			return reject(types.ReasonTokenBudgetExceeded, c.untilNextDay(now))
		}
		return reject(types.ReasonTokenBudgetExceeded, c.untilNextHour(now))
	}
	if req.Tokens > snap.DailyTokensRemaining {
		return reject(types.ReasonTokenBudgetExceeded, c.untilNextDay(now))
	}
	if c.cfg.RejectOnOverload && !snap.Healthy {
		return reject(types.ReasonSystemUnhealthy, c.cfg.HealthRetryInterval)
	}
	return verdict
}

// AllocateResources reserves memory, tokens and a worker slot for taskID
func (c *Checker) AllocateResources(taskID string, req types.ResourceUsage) (types.ResourceAllocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.allocations[taskID]; ok {
		return types.ResourceAllocation{}, fmt.Errorf("task %s: %w", taskID, ErrAlreadyAllocated)
	}
	if len(c.allocations) >= c.cfg.MaxConcurrentTasks {
		return types.ResourceAllocation{}, fmt.Errorf("task %s: no worker slot: %w", taskID, ErrInsufficientCapacity)
	}
	if c.reservedMem+req.MemoryMB > c.cfg.MaxMemoryMB {
		return types.ResourceAllocation{}, fmt.Errorf("task %s: %.0fMB exceeds available memory: %w", taskID, req.MemoryMB, ErrInsufficientCapacity)
	}

	alloc := types.ResourceAllocation{
		TaskID:      taskID,
		MemoryMB:    req.MemoryMB,
		Tokens:      req.Tokens,
		AllocatedAt: c.cfg.Now(),
	}
	c.allocations[taskID] = alloc
	c.recomputeLocked()

	c.logger.Debug().
		Str("task_id", taskID).
		Float64("memory_mb", alloc.MemoryMB).
		Float64("tokens", alloc.Tokens).
		Msg("Resources allocated")
	return alloc, nil
}

// ReleaseResources drops the reservation of taskID and commits the tokens
// it actually used to the budget. It reports false when nothing was held.
func (c *Checker) ReleaseResources(taskID string, actual types.ResourceUsage) (types.ResourceAllocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	alloc, ok := c.allocations[taskID]
	if !ok {
		return types.ResourceAllocation{}, false
	}
	delete(c.allocations, taskID)
	c.recomputeLocked()

	if tokens := actual.Tokens; tokens > 0 && !math.IsInf(tokens, 0) {
		now := c.cfg.Now().In(c.cfg.Location)
		c.pruneLocked(now)
		c.ledger.Hourly[now.Format(hourKeyLayout)] += tokens
		c.ledger.Daily[now.Format(dayKeyLayout)] += tokens
		c.persistLocked()
	}

	c.logger.Debug().
		Str("task_id", taskID).
		Float64("tokens_used", actual.Tokens).
		Msg("Resources released")
	return alloc, true
}

// Allocation returns the live reservation of taskID
func (c *Checker) Allocation(taskID string) (types.ResourceAllocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alloc, ok := c.allocations[taskID]
	return alloc, ok
}

// Allocations returns every live reservation
func (c *Checker) Allocations() []types.ResourceAllocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ResourceAllocation, 0, len(c.allocations))
	for _, a := range c.allocations {
		out = append(out, a)
	}
	return out
}

// AverageTaskDuration is the wait advised when capacity is exhausted
func (c *Checker) AverageTaskDuration() time.Duration {
	return c.cfg.AverageTaskDuration
}

// SystemCapacity returns a snapshot of the ledger with the last observed
// host health; it does not sample the host.
func (c *Checker) SystemCapacity() types.SystemCapacity {
	var status *health.Status
	if c.monitor != nil {
		s := c.monitor.Status()
		status = &s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.cfg.Now(), status)
}

func (c *Checker) snapshotLocked(now time.Time, status *health.Status) types.SystemCapacity {
	local := now.In(c.cfg.Location)
	c.pruneLocked(local)

	hourly := c.ledger.Hourly[local.Format(hourKeyLayout)]
	daily := c.ledger.Daily[local.Format(dayKeyLayout)]

	snap := types.SystemCapacity{
		MaxMemoryMB:           c.cfg.MaxMemoryMB,
		ReservedMemoryMB:      c.reservedMem,
		AvailableMemoryMB:     math.Max(0, c.cfg.MaxMemoryMB-c.reservedMem),
		MaxConcurrentTasks:    c.cfg.MaxConcurrentTasks,
		CurrentTasks:          len(c.allocations),
		AvailableSlots:        max(0, c.cfg.MaxConcurrentTasks-len(c.allocations)),
		ReservedTokens:        c.reservedTok,
		HourlyTokensUsed:      hourly,
		HourlyTokensRemaining: math.Max(0, c.cfg.TokenBudgetPerHour-hourly-c.reservedTok),
		DailyTokensUsed:       daily,
		DailyTokensRemaining:  math.Max(0, c.cfg.TokenBudgetPerDay-daily-c.reservedTok),
		Healthy:               true,
		Timestamp:             now,
	}
	if status != nil {
		snap.Healthy = status.Healthy
		snap.HealthMessage = status.LastResult.Message
	}
	return snap
}

// pruneLocked drops every bucket other than the current hour and day
func (c *Checker) pruneLocked(local time.Time) {
	hour := local.Format(hourKeyLayout)
	day := local.Format(dayKeyLayout)
	for k := range c.ledger.Hourly {
		if k != hour {
			delete(c.ledger.Hourly, k)
		}
	}
	for k := range c.ledger.Daily {
		if k != day {
			delete(c.ledger.Daily, k)
		}
	}
}

func (c *Checker) recomputeLocked() {
	c.reservedMem, c.reservedTok = 0, 0
	for _, a := range c.allocations {
		c.reservedMem += a.MemoryMB
		c.reservedTok += a.Tokens
	}
}

func (c *Checker) persistLocked() {
	if c.store == nil {
		return
	}
	if err := c.store.SaveTokenLedger(c.ledger.Copy()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist token ledger")
	}
}

func (c *Checker) untilNextHour(now time.Time) time.Duration {
	local := now.In(c.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour()+1, 0, 0, 0, c.cfg.Location)
	return next.Sub(now)
}

func (c *Checker) untilNextDay(now time.Time) time.Duration {
	local := now.In(c.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, c.cfg.Location)
	return next.Sub(now)
}
