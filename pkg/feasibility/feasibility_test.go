package feasibility

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestChecker(t *testing.T, clk *clock, mutate ...func(*Config)) (*Checker, *health.Static, *storage.MemoryStore) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Now = clk.Now
	for _, m := range mutate {
		m(&cfg)
	}
	static := health.NewStatic(true, "ok")
	store := storage.NewMemoryStore()
	c, err := New(cfg, health.NewMonitor(static, health.DefaultConfig()), store)
	require.NoError(t, err)
	return c, static, store
}

func usage(mem, tokens float64) types.ResourceUsage {
	return types.ResourceUsage{MemoryMB: mem, CPUSeconds: 60, Tokens: tokens, DurationMs: 60000}
}

func TestCalculateFeasibility(t *testing.T) {
	clk := &clock{now: time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC)}

	tests := []struct {
		name   string
		mutate func(*Config)
		setup  func(c *Checker, h *health.Static)
		req    types.ResourceUsage
		reason types.RejectionReason
		wait   time.Duration
	}{
		{
			name: "fits",
			req:  usage(1000, 1000),
		},
		{
			name:   "memory exhausted",
			mutate: func(cfg *Config) { cfg.MaxMemoryMB = 500 },
			req:    usage(600, 1000),
			reason: types.ReasonInsufficientMemory,
			wait:   5 * time.Minute,
		},
		{
			name:   "no worker slots",
			mutate: func(cfg *Config) { cfg.MaxConcurrentTasks = 1 },
			setup: func(c *Checker, _ *health.Static) {
				_, err := c.AllocateResources("busy", usage(100, 10))
				require.NoError(t, err)
			},
			req:    usage(100, 10),
			reason: types.ReasonNoWorkerSlots,
			wait:   5 * time.Minute,
		},
		{
			name:   "slots are checked before memory",
			mutate: func(cfg *Config) {
				cfg.MaxConcurrentTasks = 1
				cfg.MaxMemoryMB = 1000
			},
			setup: func(c *Checker, _ *health.Static) {
				_, err := c.AllocateResources("busy", usage(500, 10))
				require.NoError(t, err)
			},
			req:    usage(1000, 10),
			reason: types.ReasonNoWorkerSlots,
			wait:   5 * time.Minute,
		},
		{
			name:   "hourly budget waits for next hour",
			mutate: func(cfg *Config) { cfg.TokenBudgetPerHour = 5000 },
			req:    usage(100, 6000),
			reason: types.ReasonTokenBudgetExceeded,
			wait:   45 * time.Minute,
		},
		{
			name:   "daily budget waits for next day",
			mutate: func(cfg *Config) { cfg.TokenBudgetPerDay = 5000 },
			req:    usage(100, 6000),
			reason: types.ReasonTokenBudgetExceeded,
			wait:   13*time.Hour + 45*time.Minute,
		},
		{
			name:   "unhealthy host",
			setup:  func(_ *Checker, h *health.Static) { h.Set(false, "memory utilization 97%") },
			req:    usage(100, 10),
			reason: types.ReasonSystemUnhealthy,
			wait:   time.Minute,
		},
		{
			name:   "unhealthy host is advisory without overload rejection",
			mutate: func(cfg *Config) { cfg.RejectOnOverload = false },
			setup:  func(_ *Checker, h *health.Static) { h.Set(false, "memory utilization 97%") },
			req:    usage(100, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*Config)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			c, h, _ := newTestChecker(t, clk, mutate...)
			if tt.setup != nil {
				tt.setup(c, h)
			}

			v := c.CalculateFeasibility(context.Background(), tt.req)
			if tt.reason == types.ReasonNone {
				assert.True(t, v.Feasible)
				assert.Empty(t, v.Reason)
				assert.Zero(t, v.EstimatedWaitTime)
				return
			}
			assert.False(t, v.Feasible)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, tt.wait, v.EstimatedWaitTime)
		})
	}
}

func TestAllocateRelease(t *testing.T) {
	clk := &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	c, _, store := newTestChecker(t, clk)

	alloc, err := c.AllocateResources("t-1", usage(1024, 20000))
	require.NoError(t, err)
	assert.Equal(t, 1024.0, alloc.MemoryMB)
	assert.Equal(t, clk.now, alloc.AllocatedAt)

	_, err = c.AllocateResources("t-1", usage(1024, 20000))
	assert.ErrorIs(t, err, ErrAlreadyAllocated)

	snap := c.SystemCapacity()
	assert.Equal(t, 1024.0, snap.ReservedMemoryMB)
	assert.Equal(t, 3072.0, snap.AvailableMemoryMB)
	assert.Equal(t, 1, snap.CurrentTasks)
	assert.Equal(t, 3, snap.AvailableSlots)
	assert.Equal(t, 20000.0, snap.ReservedTokens)
	assert.Equal(t, 480000.0, snap.HourlyTokensRemaining, "reserved tokens count against the budget")

	released, ok := c.ReleaseResources("t-1", usage(900, 15000))
	require.True(t, ok)
	assert.Equal(t, alloc, released)

	_, ok = c.ReleaseResources("t-1", usage(900, 15000))
	assert.False(t, ok, "double release")

	snap = c.SystemCapacity()
	assert.Zero(t, snap.ReservedMemoryMB)
	assert.Zero(t, snap.CurrentTasks)
	assert.Equal(t, 15000.0, snap.HourlyTokensUsed)
	assert.Equal(t, 15000.0, snap.DailyTokensUsed)
	assert.Equal(t, 485000.0, snap.HourlyTokensRemaining)

	ledger, err := store.LoadTokenLedger()
	require.NoError(t, err)
	assert.Equal(t, 15000.0, ledger.Hourly["2026-05-04T10"])
	assert.Equal(t, 15000.0, ledger.Daily["2026-05-04"])
}

func TestAllocateRefusesOvercommit(t *testing.T) {
	clk := &clock{now: time.Now()}
	c, _, _ := newTestChecker(t, clk, func(cfg *Config) {
		cfg.MaxMemoryMB = 1000
		cfg.MaxConcurrentTasks = 2
	})

	_, err := c.AllocateResources("a", usage(800, 0))
	require.NoError(t, err)
	_, err = c.AllocateResources("b", usage(300, 0))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	_, err = c.AllocateResources("c", usage(200, 0))
	require.NoError(t, err)
	_, err = c.AllocateResources("d", usage(0, 0))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestBudgetRollover(t *testing.T) {
	clk := &clock{now: time.Date(2026, 5, 4, 23, 59, 59, 0, time.UTC)}
	c, _, _ := newTestChecker(t, clk, func(cfg *Config) {
		cfg.TokenBudgetPerHour = 100000
		cfg.TokenBudgetPerDay = 100000
	})

	_, err := c.AllocateResources("heavy", usage(100, 95000))
	require.NoError(t, err)
	c.ReleaseResources("heavy", usage(100, 95000))

	v := c.CalculateFeasibility(context.Background(), usage(100, 10000))
	assert.False(t, v.Feasible)
	assert.Equal(t, types.ReasonTokenBudgetExceeded, v.Reason)
	assert.Equal(t, time.Second, v.EstimatedWaitTime)

	clk.now = time.Date(2026, 5, 5, 0, 0, 1, 0, time.UTC)
	v = c.CalculateFeasibility(context.Background(), usage(100, 10000))
	assert.True(t, v.Feasible)
	assert.Zero(t, v.Snapshot.DailyTokensUsed)
}

func TestBucketsFollowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	clk := &clock{now: time.Date(2026, 5, 4, 22, 30, 0, 0, time.UTC)} // 00:30 next day locally
	c, _, store := newTestChecker(t, clk, func(cfg *Config) { cfg.Location = loc })

	_, err := c.AllocateResources("t", usage(100, 100))
	require.NoError(t, err)
	c.ReleaseResources("t", usage(100, 100))

	ledger, err := store.LoadTokenLedger()
	require.NoError(t, err)
	assert.Equal(t, 100.0, ledger.Daily["2026-05-05"])
	assert.Equal(t, 100.0, ledger.Hourly["2026-05-05T00"])
}

func TestLedgerRestoredFromStore(t *testing.T) {
	store := storage.NewMemoryStore()
	ledger := types.NewTokenLedger()
	ledger.Hourly["2026-05-04T10"] = 499000
	ledger.Hourly["2026-05-04T09"] = 1
	ledger.Daily["2026-05-04"] = 499001
	require.NoError(t, store.SaveTokenLedger(ledger))

	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) }
	c, err := New(cfg, nil, store)
	require.NoError(t, err)

	v := c.CalculateFeasibility(context.Background(), usage(100, 2000))
	assert.False(t, v.Feasible)
	assert.Equal(t, types.ReasonTokenBudgetExceeded, v.Reason)
	assert.Equal(t, 30*time.Minute, v.EstimatedWaitTime)
	assert.True(t, v.Snapshot.Healthy, "no monitor means healthy")
}
