/*
Package feasibility answers whether a predicted footprint fits the pool
right now.

The Checker keeps the live ledger for one host: one ResourceAllocation per
admitted task, the memory and tokens those reservations hold, and the
committed token budget in hour and day buckets. It never predicts and never
queues; it only accounts.

	┌───────────────────────────────────────────────────────────┐
	│                        Checker                            │
	│                                                           │
	│   allocations   map[taskID]ResourceAllocation             │
	│   reservedMem   Σ allocation.MemoryMB                     │
	│   reservedTok   Σ allocation.Tokens                       │
	│   ledger        committed tokens per hour and day         │
	│   monitor       *health.Monitor (optional)                │
	│   store         LedgerStore (optional)                    │
	└───────────────────────────────────────────────────────────┘

# Checks

CalculateFeasibility runs its checks in a fixed order and reports the first
failure with an advisory wait:

	reason                  fails when                                 wait
	─────────────────────── ────────────────────────────────────────── ────────────────────
	no-worker-slots         live reservations == MaxConcurrentTasks    AverageTaskDuration
	insufficient-memory     predicted > MaxMemoryMB - reserved         AverageTaskDuration
	token-budget-exceeded   predicted > hourly or daily remaining      next hour or day
	system-unhealthy        host over threshold (RejectOnOverload)     HealthRetryInterval

A task that overshoots both token windows is told to wait for the day
boundary, since the next hour would not help. The verdict always carries
the capacity snapshot the decision was made against.

Host health is observed through the Monitor on every call, outside the
checker lock. Without a monitor the host is always healthy. With
RejectOnOverload disabled the health check is skipped, but the snapshot
still reports the observed state.

# Token Budget

Token accounting has two parts:

	remaining(hour) = TokenBudgetPerHour - committed(hour) - reserved
	remaining(day)  = TokenBudgetPerDay  - committed(day)  - reserved

Reserved tokens count against both budget windows until the task reports
its outcome. ReleaseResources then drops the reservation and commits the
actual usage to the current buckets. A removed or expired task releases
with zero actuals and commits nothing.

Buckets are keyed by local time in Config.Location, so a budget can roll
over at the operator's midnight rather than UTC's:

	Location: America/Bogota
	2026-06-01 23:59 local  → Daily["2026-06-01"]
	2026-06-02 00:00 local  → Daily["2026-06-02"], yesterday pruned

Buckets other than the current hour and day are pruned whenever the ledger
is read.

# Persistence

After every release that commits tokens the checker hands a snapshot of
the ledger to its LedgerStore. In the scheduler that store is the
predictor's background persister, so the write happens on another
goroutine and the checker lock is never held across disk I/O. New loads
the ledger once at startup so budgets survive restarts. Live reservations
are not persisted; a restarted process starts with an empty pool.

# Allocation

AllocateResources and ReleaseResources are the only mutators and are paired
exactly once per task:

	alloc, err := checker.AllocateResources("t-1", pred.Resources)
	switch {
	case errors.Is(err, feasibility.ErrAlreadyAllocated):
		// duplicate admission
	case errors.Is(err, feasibility.ErrInsufficientCapacity):
		// state moved since CalculateFeasibility
	}

	// later, with what the task actually used
	checker.ReleaseResources("t-1", actual)

AllocateResources re-checks slots and memory, so the ledger can never be
overcommitted even by a caller that skips CalculateFeasibility. A second
release of the same task returns false and changes nothing.

# Usage

	checker, err := feasibility.New(feasibility.Config{
		MaxMemoryMB:        4096,
		MaxConcurrentTasks: 4,
		TokenBudgetPerHour: 500000,
		TokenBudgetPerDay:  5000000,
		RejectOnOverload:   true,
		Location:           time.UTC,
	}, health.NewMonitor(health.NewHostChecker(0, 0), health.DefaultConfig()), store)
	if err != nil {
		return err
	}

	verdict := checker.CalculateFeasibility(ctx, pred.Resources)
	if !verdict.Feasible {
		return verdict.Reason, verdict.EstimatedWaitTime
	}

The Checker is safe for concurrent use. The scheduler additionally holds its
own lock across CalculateFeasibility and AllocateResources so that the
verdict and the reservation see the same state.
*/
package feasibility
