/*
Package storage persists the scheduler's learned and accounted state.

Three kinds of documents survive restarts:

  - one ModelState per resource dimension (memory, cpu, tokens, duration)
  - the append-only outcome log of TrainingRecords, oldest first
  - the TokenLedger of committed token usage in hour and day buckets

Live reservations are intentionally absent: they describe work in flight
and are rebuilt from scratch when the process starts.

# Backends

Store has three implementations selected with Open:

	memory   MemoryStore   nothing written to disk, used by tests
	file     FileStore     models/<resource>.json, outcomes.jsonl, token-usage.json
	bolt     BoltStore     <dataDir>/burrow.db with buckets models, outcomes, token_ledger

All documents are JSON. FileStore replaces whole documents through a temp
file and rename. BoltStore keys outcomes by the bucket sequence encoded
big-endian, so a cursor walk returns them in append order.

# Errors

A missing model is reported as ErrNotFound and callers start a fresh model.
A document that exists but cannot be decoded is reported as ErrCorrupt;
the predictor refuses to start on a corrupt model instead of silently
discarding what it learned. A missing ledger or outcome log is simply empty.

# Usage

	store, err := storage.Open(storage.BackendBolt, "/var/lib/burrow")
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.LoadModel(types.ResourceMemory)
	if errors.Is(err, storage.ErrNotFound) {
		// train from scratch
	}
*/
package storage
