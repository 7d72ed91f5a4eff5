/*
Package types defines the core data structures shared by every Burrow package.

The types in this package describe a task's journey through the admission
scheduler, from the descriptor a caller submits to the outcome that is fed
back into the predictor:

	TaskSpec ──Normalize──▶ Task
	                          │
	                          ▼
	                 ResourcePrediction ──▶ FeasibilityVerdict
	                                              │ admitted
	                                              ▼
	                 SchedulingDecision + ResourceAllocation
	                          │
	                          ▼
	                 PriorityQueueEntry ──▶ running ──▶ TrainingRecord

# Task vocabulary

Free-text task types are folded into a fixed vocabulary (implementation,
security, documentation, review, test, fix, scan, pr-creation, unknown) by
NormalizeTaskType. The order of TaskTypes is the one-hot encoding order used
by the feature extractor and must not change without retraining models.

Priorities are P0 (most urgent) through P3. They serialize as "P0".."P3" and
accept named equivalents (critical, high, medium, low) and bare integers on
input.

# Persistence shapes

ModelState, TrainingRecord and TokenLedger are the documents written through
the storage port. They carry JSON tags and are stable across releases.
*/
package types
