/*
Package reconciler runs the scheduler's background maintenance loop.

# Why A Loop

Two things go stale in the scheduler without anyone submitting work:

  - Scores. SLA urgency and starvation grow with wall-clock time, so a
    queue sorted five minutes ago may no longer be in priority order.
  - Reservations. A worker that crashes after StartTask never reports an
    outcome, and its memory and worker slot would stay reserved forever.

The reconciler fixes both on a fixed interval.

# Cycle

	┌──────────────────────────────┐
	│  every interval (30s)        │
	└──────────────┬───────────────┘
	               ▼
	┌──────────────────────────────┐
	│  Target.ReapExpired()        │  running tasks past their TTL are
	│                              │  released with zero actuals
	└──────────────┬───────────────┘
	               ▼
	┌──────────────────────────────┐
	│  Target.RebalanceQueue()     │  every queued task is rescored
	└──────────────────────────────┘

Reaping runs first so the rescore already sees the memory and slots it
freed. A cycle that reaped something logs how many.

# Usage

	r := reconciler.NewReconciler(sched, 30*time.Second)
	r.Start()
	defer r.Stop()

Stop waits for an in-flight cycle to finish, so the target can be closed
right after it returns. Reconcile can also be called directly, which is
what tests do:

	r := reconciler.NewReconciler(fakeTarget, time.Hour)
	r.Reconcile()
*/
package reconciler
