package predictor

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

const (
	persistQueueSize  = 256
	persistMaxRetries = 5
)

type jobKind int

const (
	jobSaveModel jobKind = iota
	jobAppendOutcome
	jobTruncateOutcomes
	jobSaveLedger
	jobFlush
)

type persistJob struct {
	kind   jobKind
	model  *types.ModelState
	record *types.TrainingRecord
	ledger *types.TokenLedger
	keep   int
	done   chan struct{}
}

// Persister writes model snapshots, outcome records and token ledger
// snapshots in the background so storage latency never sits on the
// admission path. Failed writes are
// retried with exponential backoff and dropped after the last attempt.
type Persister struct {
	store      storage.Store
	jobs       chan persistJob
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
	newBackOff func() backoff.BackOff
	logger     zerolog.Logger
}

// NewPersister creates a persister over store. Call Start before use.
func NewPersister(store storage.Store) *Persister {
	return &Persister{
		store: store,
		jobs:  make(chan persistJob, persistQueueSize),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return backoff.WithMaxRetries(b, persistMaxRetries)
		},
		logger: log.WithComponent("persister"),
	}
}

// Start launches the writer goroutine
func (p *Persister) Start() {
	p.wg.Add(1)
	go p.run()
}

// SaveModel queues a model snapshot
func (p *Persister) SaveModel(state types.ModelState) {
	p.enqueue(persistJob{kind: jobSaveModel, model: &state})
}

// AppendOutcome queues an outcome record
func (p *Persister) AppendOutcome(record *types.TrainingRecord) {
	p.enqueue(persistJob{kind: jobAppendOutcome, record: record})
}

// TruncateOutcomes queues a rotation of the durable outcome log
func (p *Persister) TruncateOutcomes(keep int) {
	p.enqueue(persistJob{kind: jobTruncateOutcomes, keep: keep})
}

// SaveTokenLedger queues a ledger snapshot. The caller must not mutate
// ledger afterwards. It never fails; write errors are retried and counted.
func (p *Persister) SaveTokenLedger(ledger *types.TokenLedger) error {
	p.enqueue(persistJob{kind: jobSaveLedger, ledger: ledger})
	return nil
}

// LoadTokenLedger reads the ledger straight from the store
func (p *Persister) LoadTokenLedger() (*types.TokenLedger, error) {
	return p.store.LoadTokenLedger()
}

// Flush blocks until every job queued before the call has been attempted
func (p *Persister) Flush() {
	done := make(chan struct{})
	if !p.enqueue(persistJob{kind: jobFlush, done: done}) {
		return
	}
	<-done
}

// Close drains the queue and stops the writer
func (p *Persister) Close() {
	p.Flush()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// enqueue blocks while the queue is full; persistence applies backpressure
// rather than losing training data.
func (p *Persister) enqueue(job persistJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn().Int("kind", int(job.kind)).Msg("Persister closed, dropping job")
		return false
	}
	p.jobs <- job
	return true
}

func (p *Persister) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		if job.kind == jobFlush {
			close(job.done)
			continue
		}
		if err := backoff.Retry(func() error { return p.apply(job) }, p.newBackOff()); err != nil {
			metrics.PersistErrors.Inc()
			p.logger.Error().
				Err(err).
				Int("kind", int(job.kind)).
				Msg("Failed to persist after retries")
		}
	}
}

func (p *Persister) apply(job persistJob) error {
	switch job.kind {
	case jobSaveModel:
		return p.store.SaveModel(job.model)
	case jobAppendOutcome:
		return p.store.AppendOutcomes([]*types.TrainingRecord{job.record})
	case jobTruncateOutcomes:
		return p.store.TruncateOutcomes(job.keep)
	case jobSaveLedger:
		return p.store.SaveTokenLedger(job.ledger)
	}
	return nil
}
