/*
Package priority orders pending tasks by a composite score.

The Engine holds every admitted task that has not started yet, together with
the dependency edges between tasks. It answers one question for the
scheduler: which runnable task should a free worker take next?

	┌───────────────────────────────────────────────┐
	│                   Engine                      │
	│                                               │
	│   entries     map[taskID]*PriorityQueueEntry  │
	│   order       entries sorted by score         │
	│   dependents  blocker → tasks it blocks       │
	│   blockers    dependent → tasks it waits on   │
	└───────────────────────────────────────────────┘

# Composite Score

Each task gets five components, each bounded to [0,10] before weighting:

	component     raw value                                           weight
	───────────── ─────────────────────────────────────────────────── ──────
	base          type weight × priority multiplier, normalised       0.25
	urgency       piecewise over the elapsed share of the SLA window  0.30
	dependency    0/2/4/5 for 0, ≤2, ≤5 or more queued dependents ×2  0.15
	resource fit  5 when memory is 30-70% of what is free, ×2         0.15
	starvation    StarvationRatePerMinute × minutes queued            0.15

	score = Σ weight × component                                  ∈ [0,10]

## Base

The per-type weight (security 1.5, fix 1.3, scan 1.1, implementation 1.0,
review and pr-creation 0.9, test 0.8, unknown 0.7, documentation 0.6) is
multiplied by the priority multiplier and scaled so that the heaviest type
at P0 scores exactly 10:

	P0 3.0   P1 2.0   P2 1.0   P3 0.5

## Urgency

A task without an explicit deadline gets one from its type SLA, stretched or
shrunk by priority (P0 0.5, P1 0.75, P2 1.0, P3 1.5). Urgency rises through
four linear bands as the SLA window is consumed:

	elapsed   0 ─── 20% ─── 50% ─── 80% ─── 100%
	urgency   2 ──── 4 ───── 6 ───── 8 ───── 10   (10 once overdue)

## Dependency

Only dependents that are still queued count. A task that lists ids never
submitted, or whose dependents already finished, gets no dependency boost.

## Resource Fit

Fit rewards tasks that use a sensible share of the memory that is free for
them. The capacity passed to AddTask, GetNextTask and RebalancePriorities
is the live ledger, in which every queued entry already holds its own
reservation, so each entry is measured against the free memory plus its own
predicted memory:

	ratio = predicted / (available + own reservation)

	ratio   0 ──── 0.3 ════════ 0.7 ──── 1.0
	fit     0 ────  5  ════════  5  ────  0

The fit is halved when no worker slot would be free. ScoreTask, used for a
task that is not queued, measures against the capacity as given.

## Starvation

Starvation grows linearly from the moment a task is first enqueued and caps
at 10, so a low-priority task eventually overtakes a stream of fresh
higher-priority ones. Re-adding a queued task keeps its original enqueue
time.

# Ordering

Scores drift with time, so the queue is fully re-sorted on insertion, on
GetNextTask and on every RebalancePriorities call. Ties go to the earlier
enqueue, then the lower id, which keeps the order deterministic.

# Dependencies

A task's Dependencies field lists the tasks it blocks. Edges can also be
added and removed directly:

	engine.AddDependency("build", "deploy")   // build blocks deploy
	engine.Blocked("deploy")                  // true
	engine.CompleteTask("build")              // deploy is runnable again

GetNextTask skips blocked entries. Removing a blocker from the queue (it
started) leaves its edges in place; only CompleteTask, called when the
blocker reaches a terminal state, unblocks its dependents.

# Usage

	cfg := priority.DefaultConfig()
	cfg.TypeWeights = config.DefaultPriorityWeights()
	engine := priority.NewEngine(cfg)

	pos, entry := engine.AddTask(task, prediction, checker.SystemCapacity())
	fmt.Printf("queued at %d with score %.2f\n", pos, entry.Score)

	if next, ok := engine.GetNextTask(checker.SystemCapacity()); ok {
		engine.RemoveTask(next.Task.ID)
	}

The Engine is safe for concurrent use. Config.Now injects the clock for
tests.
*/
package priority
