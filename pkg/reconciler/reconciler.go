package reconciler

import (
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/rs/zerolog"
)

// Target is the state the reconciler keeps in shape
type Target interface {
	// RebalanceQueue rescores every pending task
	RebalanceQueue()

	// ReapExpired releases reservations past their TTL and returns how many
	// were reaped
	ReapExpired() int
}

// Reconciler periodically rebalances the queue and reaps stale reservations
type Reconciler struct {
	target   Target
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(target Target, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		target:   target,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   log.WithComponent("reconciler"),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop stops the loop and waits for an in-flight cycle to finish
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// run is the main reconciliation loop
func (r *Reconciler) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Reconcile()
		case <-r.stopCh:
			return
		}
	}
}

// Reconcile performs one cycle. Expired reservations are reaped before the
// queue is rescored.
func (r *Reconciler) Reconcile() {
	reaped := r.target.ReapExpired()
	r.target.RebalanceQueue()

	if reaped > 0 {
		r.logger.Info().Int("reaped", reaped).Msg("Released expired reservations")
	}
}
