/*
Package predictor estimates the memory, CPU time, tokens and wall time a
task will consume, and learns from what tasks actually used.

# Architecture

	          Task
	            │ training.ExtractFeatures
	            ▼
	┌────────────────────────────────────────────────────────┐
	│                      Predictor                         │
	│                                                        │
	│   memory    ml.OnlineRegressor ─┐                      │
	│   cpu       ml.OnlineRegressor ─┤  < MinSamplesForML:  │
	│   tokens    ml.OnlineRegressor ─┤    heuristic table   │
	│   duration  ml.OnlineRegressor ─┘  ≥ MinSamplesForML:  │
	│                                      regressor         │
	│   training.Store (outcome log + per-type statistics)   │
	└───────────────┬────────────────────────────────────────┘
	                │ × ConservativeMultiplier, clamp
	                ▼
	        ResourcePrediction ──▶ feasibility, priority

	ReportOutcome ──▶ Update models ──▶ training.Store ──▶ Persister ──▶ Store

Each resource dimension has its own regressor, so a model that is good at
memory but poor at tokens does not drag the other dimensions down.

# Heuristic Mode

Until the outcome log holds MinSamplesForML records (50 by default) every
estimate comes from a fixed per-type table:

	type             memory MB   cpu s   tokens   duration
	──────────────── ─────────── ─────── ──────── ─────────
	implementation   1024        120     50000    10m
	security          768         90     30000     5m
	fix               640         60     30000     5m
	test              768        120     15000     5m
	review            512         45     25000     4m
	scan              512         90     10000     3m
	documentation     384         30     20000     3m
	pr-creation       256         15      8000     1m
	unknown           512         60     25000     5m

The table value is scaled by the task's complexity (0.75 to 1.25) and, once
five outcomes of the same type exist, pulled toward the observed mean for
that type, with the history weight growing to at most 0.8.

# Learned Mode

From MinSamplesForML outcomes on, the regressors answer. An output that is
not a positive finite number falls back to the heuristic for that dimension
alone, and the prediction as a whole is tagged heuristic-fallback:

	Method              meaning
	─────────────────── ───────────────────────────────────────────
	heuristic           too few outcomes, every dimension from the table
	ml                  every dimension from the regressors
	heuristic-fallback  learned mode, at least one dimension fell back

Every estimate, learned or not, is multiplied by the conservative
multiplier (1.2 by default) and clamped to fixed sanity bounds:

	memory 100-8192 MB   cpu 1-3600 s   tokens 100-200000   duration 1s-1h

Confidence is reported per dimension: high for a regressor trained on at
least twice MinSamplesForML outcomes, medium for a younger regressor or a
history-blended heuristic, low otherwise.

# Learning

ReportOutcome updates every regressor with one stochastic gradient step,
appends a TrainingRecord to the outcome log and, when the prediction is
known, records per-resource accuracy:

	accuracy = clamp(1 - |predicted - actual| / max(actual, 1), 0, 1)

Accuracy is averaged over a moving window of the last 100 outcomes per
resource and exported as burrow_prediction_accuracy. Negative or non-finite
actuals are skipped for that dimension.

Every ModelUpdateInterval outcomes the regressors are snapshotted.

# Persistence

Outcome records, model snapshots and token ledger snapshots are written by
a Persister goroutine:

	caller ──enqueue──▶ [ buffered queue ] ──▶ writer ──retry/backoff──▶ Store

The queue is ordered, so a later snapshot never lands before an earlier one.
Failed writes are retried with exponential backoff
(github.com/cenkalti/backoff/v4) and dropped after the last attempt with
burrow_persist_errors_total incremented. Enqueueing blocks only when the
queue is full, so the admission path never waits on storage in normal
operation. Flush waits for everything queued so far; Close drains the queue.

At startup New loads one ModelState per dimension and the outcome log. A
missing model starts fresh. A model that exists but cannot be decoded, or
was trained on a different feature layout, fails New with ErrCorruptModel
rather than silently discarding what was learned.

# Batch Training

BatchTrain rebuilds the regressors from the full outcome log over the given
number of epochs. For comparison it also fits a CART decision tree on the
same data and reports the mean absolute error of both. The new regressors
replace the online ones and are persisted synchronously, after the queued
snapshots of the old models have been flushed.

	report, err := pred.BatchTrain(10)
	for kind, r := range report.Resources {
		fmt.Printf("%s: %d samples, regressor MAE %.1f, tree MAE %.1f\n",
			kind, r.Samples, r.RegressorMAE, r.TreeMAE)
	}

# Usage

	pred, err := predictor.New(predictor.DefaultConfig(), store)
	if err != nil {
		return err
	}
	defer pred.Close()

	p := pred.Predict(task)
	fmt.Printf("%s: %.0f MB, %.0f tokens\n", p.Method, p.Resources.MemoryMB, p.Resources.Tokens)

	acc := pred.ReportOutcome(task, actual, &p)
	fmt.Printf("overall accuracy %.2f\n", acc.Overall)

The Predictor is safe for concurrent use.
*/
package predictor
