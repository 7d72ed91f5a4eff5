/*
Package scheduler is Burrow's admission-control orchestrator.

Burrow sits in front of a pool of AI coding agents that share one host. Every
task is predicted before it runs, and the scheduler only admits work whose
predicted memory, worker slot and token footprint fits what is left of the
pool right now. Admitted tasks wait in a priority queue until a worker pulls
them; their outcomes are fed back so the next prediction is better.

The package ties together three collaborators and owns the lifecycle of every
task that passes through them:

	┌──────────────────────────────────────────────────────────────┐
	│                         Scheduler                            │
	│        (one mutex: ledger + queue + token budget)            │
	└──────┬──────────────────┬───────────────────────┬────────────┘
	       │                  │                       │
	       ▼                  ▼                       ▼
	┌─────────────┐   ┌────────────────┐     ┌────────────────┐
	│  predictor  │   │  feasibility   │     │   priority     │
	│  Predict    │   │  Calculate     │     │   AddTask      │
	│  Report     │   │  Allocate      │     │   GetNextTask  │
	│  BatchTrain │   │  Release       │     │   Rebalance    │
	└──────┬──────┘   └───────┬────────┘     └────────────────┘
	       │                  │
	       ▼                  ▼
	┌──────────────────────────────────┐
	│   Persister (async) → Store      │
	│   models, outcomes, token ledger │
	└──────────────────────────────────┘

# Task Lifecycle

Each task moves through these states:

	unscheduled ──ScheduleTask──▶ scheduled ──StartTask──▶ running ──ReportOutcome──▶ completed
	     │                            │                        │
	     └──▶ rejected                └──RemoveTask──▶ removed  └──TTL──▶ expired

  - scheduled: admitted, resources reserved, waiting in the queue
  - running: pulled by a worker, still holding its reservation
  - completed: outcome reported, reservation released, tokens committed
  - removed: withdrawn before it started, reservation released
  - expired: started but never reported within ReservationTTL
  - rejected: never admitted, nothing reserved

A task id is unique among live tasks. Once a task reaches a terminal state
its id may be submitted again.

ReportOutcome also accepts a task that is still scheduled; it is completed
as if it had been started, so a worker that skips StartTask does not leak a
reservation.

# Admission

ScheduleTask predicts the task before taking the lock, then runs the checks
in a fixed order and stops at the first failure:

	 1. duplicate-task          id already scheduled or running
	 2. queue-full              MaxQueueDepth pending entries
	 3. no-worker-slots         every slot reserved
	 4. insufficient-memory     predicted memory > unreserved memory
	 5. token-budget-exceeded   predicted tokens > hourly or daily remainder
	 6. system-unhealthy        host over threshold (RejectOnOverload)

Checks 3 to 6 belong to the feasibility checker. When every check passes
the predicted resources are reserved and the task is queued; the reply
carries its composite score and 1-based queue position.

A rejection is an ordinary result carrying a reason and an advisory wait;
it is never returned as an error:

	res := sched.ScheduleTask(ctx, task)
	if !res.Scheduled {
		log.Printf("rejected: %s, retry in %s", res.Reason, res.EstimatedWaitTime)
	}

Lookup misses on StartTask, ReportOutcome and RemoveTask are reported the
same way with the not-scheduled, not-found or not-running reasons.

CanAcceptTask is a read-only run of the same checks. It never reserves,
never queues and never publishes events. Scheduler statistics are left
alone too, so calling it twice in a row gives the same answer.

# Reservations

A reservation is made exactly once, at admission, and released exactly
once, when the task reaches a terminal state. The ledger therefore always
equals the sum of predicted footprints of scheduled and running tasks:

	reserved memory  = Σ predicted memory of live tasks  ≤ MaxMemoryMB
	reserved slots   = number of live tasks              ≤ MaxConcurrentTasks

Tokens are special. While a task is live its predicted tokens count against
both budget windows. On release the prediction is dropped and the actual
usage reported by the worker is committed to the current hour and day
buckets. Removed and expired tasks commit nothing.

# Ranking

Queued tasks are ordered by the priority engine's composite score. The
capacity handed to the engine is the live ledger, in which every queued
entry already holds its own memory and slot. GetNextTask rescores the queue
before it answers and skips entries still waiting on an unfinished
dependency. It does not dequeue; StartTask does.

A task's Dependencies list the tasks it blocks. A dependent stays queued but
is not offered by GetNextTask until the blocker completes, is removed or
expires.

# Learning

ReportOutcome releases the reservation under the lock, then hands the
outcome to the predictor after the lock is released. The predictor updates
its online models, records per-resource accuracy and switches from the
heuristic table to the learned models once MinSamplesForML outcomes exist.

RetrainModels rebuilds every model from the full outcome log. It runs
outside the scheduler lock; admission keeps serving from the previous
models until the new ones are swapped in.

# Concurrency

A single mutex covers the resource ledger, the queue and the token budget,
so a reservation is only made against the state the admission check saw.
Two concurrent submissions can never both pass a check that only one of
them fits. Predictions are computed before the lock is taken, and outcome
learning after it is released. Model snapshots, outcome appends and token
ledger snapshots go through the predictor's asynchronous persister, so no
storage write happens while the lock is held.

All exported methods are safe for concurrent use.

# Background Loop

Start launches a reconciler that every RebalanceInterval reaps expired
reservations and then rescores the queue:

	┌──────────────────────────────┐
	│   every RebalanceInterval    │
	└──────────────┬───────────────┘
	               ▼
	  ReapExpired: running tasks older than ReservationTTL
	               │ release with zero actuals, mark expired
	               ▼
	  RebalanceQueue: rescore against current capacity

A task that is started but never reported would otherwise hold its memory
and worker slot forever. Only running tasks are reaped; a queued task
that nobody pulls stays queued until RemoveTask withdraws it. A
ReservationTTL of zero disables the reaper.

Scores drift with wall-clock time (SLA urgency and starvation grow while a
task waits), which is why an idle queue still needs rebalancing.

# Events

When a Broker is given, every transition is published:

	task.scheduled   task.rejected   task.started   task.completed
	task.removed     task.expired    models.retrained

Publishing never blocks admission.

# Usage

Open builds every collaborator from a config.Config:

	cfg := config.Default()
	store, err := storage.Open(storage.BackendBolt, "/var/lib/burrow")
	if err != nil {
		return err
	}
	defer store.Close()

	sched, err := scheduler.Open(cfg, scheduler.Deps{
		Store:  store,
		Broker: events.NewBroker(),
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Close()

A worker loop then looks like this:

	for {
		next := sched.GetNextTask()
		if next == nil {
			time.Sleep(time.Second)
			continue
		}
		sched.StartTask(next.Task.ID)
		usage := run(next.Task)
		sched.ReportOutcome(next.Task.ID, usage)
	}

# Testing

Deps.Now injects the clock and Deps.Health the host health, so tests drive
budget rollover, SLA urgency and the reaper deterministically:

	clk := &fakeClock{now: time.Date(2026, 6, 1, 23, 59, 0, 0, time.UTC)}
	sched, _ := scheduler.Open(cfg, scheduler.Deps{
		Store:  storage.NewMemoryStore(),
		Health: health.NewStatic(true, ""),
		Now:    clk.Now,
	})

The property tests in this package check that reservations never exceed
capacity and always match the live tasks across random operation sequences.
*/
package scheduler
