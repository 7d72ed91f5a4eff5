package priority

import (
	"sort"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Config configures the scoring
type Config struct {
	Weights Weights

	// TypeWeights is the per-type base weight; missing types use the
	// unknown weight, or 1
	TypeWeights map[types.TaskType]float64

	// SLATimeouts is the per-type deadline used when a task has none
	SLATimeouts map[types.TaskType]time.Duration

	StarvationRatePerMinute float64

	Now func() time.Time
}

// DefaultConfig returns the standard scoring configuration
func DefaultConfig() Config {
	return Config{
		Weights:                 DefaultWeights(),
		SLATimeouts:             DefaultSLATimeouts(),
		StarvationRatePerMinute: 0.2,
		Now:                     time.Now,
	}
}

// Engine keeps pending tasks ordered by composite score along with the
// dependency graph between tasks. It is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	maxType float64
	entries map[string]*types.PriorityQueueEntry
	order   []*types.PriorityQueueEntry

	// blocker -> dependents and dependent -> blockers
	dependents map[string]map[string]struct{}
	blockers   map[string]map[string]struct{}

	logger zerolog.Logger
}

// NewEngine creates an empty engine
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.SLATimeouts == nil {
		cfg.SLATimeouts = def.SLATimeouts
	}
	if cfg.StarvationRatePerMinute < 0 {
		cfg.StarvationRatePerMinute = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	maxType := 0.0
	for _, w := range cfg.TypeWeights {
		maxType = max(maxType, w)
	}
	if maxType == 0 {
		maxType = 1
	}

	return &Engine{
		cfg:        cfg,
		maxType:    maxType,
		entries:    make(map[string]*types.PriorityQueueEntry),
		dependents: make(map[string]map[string]struct{}),
		blockers:   make(map[string]map[string]struct{}),
		logger:     log.WithComponent("priority"),
	}
}

// AddTask inserts a task, re-sorts the queue and returns the task's
// 1-based position with its scored entry. Re-adding a queued task keeps its
// original enqueue time. The task's own Dependencies are registered as
// tasks it blocks.
//
// capacity is the live ledger: every queued entry, the new one included,
// already holds its predicted memory and a slot in it.
func (e *Engine) AddTask(task *types.Task, prediction types.ResourcePrediction, capacity types.SystemCapacity) (int, types.PriorityQueueEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.cfg.Now()
	entry, ok := e.entries[task.ID]
	if !ok {
		entry = &types.PriorityQueueEntry{EnqueuedAt: now}
		e.entries[task.ID] = entry
		e.order = append(e.order, entry)
	}
	entry.Task = task.Copy()
	entry.Prediction = prediction

	for _, dep := range task.Dependencies {
		e.addEdgeLocked(task.ID, dep)
	}

	e.rescoreLocked(now, capacity)
	return e.positionLocked(task.ID), *entry
}

// GetNextTask rescores the queue and returns the highest scored entry that
// is not waiting on an unfinished blocker. It does not remove the entry.
func (e *Engine) GetNextTask(capacity types.SystemCapacity) (types.PriorityQueueEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rescoreLocked(e.cfg.Now(), capacity)
	for _, entry := range e.order {
		if e.blockedLocked(entry.Task.ID) {
			continue
		}
		return *entry, true
	}
	return types.PriorityQueueEntry{}, false
}

// RemoveTask drops a task from the queue. Its dependency edges stay until
// CompleteTask.
func (e *Engine) RemoveTask(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.entries[taskID]; !ok {
		return false
	}
	delete(e.entries, taskID)
	for i, entry := range e.order {
		if entry.Task.ID == taskID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// RebalancePriorities recomputes every score against the given capacity
// and re-sorts the queue.
func (e *Engine) RebalancePriorities(capacity types.SystemCapacity) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RebalanceDuration)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rescoreLocked(e.cfg.Now(), capacity)
	e.logger.Debug().
		Int("queued", len(e.order)).
		Dur("took", timer.Duration()).
		Msg("Queue rebalanced")
}

// AddDependency records that dependent cannot start before blocker completes
func (e *Engine) AddDependency(blocker, dependent string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addEdgeLocked(blocker, dependent)
}

// RemoveDependency deletes a single edge
func (e *Engine) RemoveDependency(blocker, dependent string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeEdgeLocked(blocker, dependent)
}

// CompleteTask drops every edge touching taskID, unblocking its dependents
func (e *Engine) CompleteTask(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for dep := range e.dependents[taskID] {
		e.removeEdgeLocked(taskID, dep)
	}
	for b := range e.blockers[taskID] {
		e.removeEdgeLocked(b, taskID)
	}
}

// Dependents returns the ids of tasks waiting on taskID, sorted
func (e *Engine) Dependents(taskID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.dependents[taskID])
}

// Blocked reports whether taskID waits on an unfinished blocker
func (e *Engine) Blocked(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blockedLocked(taskID)
}

// Entries returns the queue in order, highest score first
func (e *Engine) Entries() []types.PriorityQueueEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.PriorityQueueEntry, len(e.order))
	for i, entry := range e.order {
		out[i] = *entry
	}
	return out
}

// Entry returns the queued entry of taskID
func (e *Engine) Entry(taskID string) (types.PriorityQueueEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.entries[taskID]
	if !ok {
		return types.PriorityQueueEntry{}, false
	}
	return *entry, true
}

// Position returns the 1-based queue position of taskID, 0 if not queued
func (e *Engine) Position(taskID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked(taskID)
}

// Len returns the number of queued tasks
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// ScoreTask computes the composite score of a task without queueing it
func (e *Engine) ScoreTask(task *types.Task, prediction types.ResourcePrediction, capacity types.SystemCapacity, enqueuedAt time.Time) (float64, types.ScoreBreakdown) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scoreLocked(task, prediction, capacity, enqueuedAt, e.cfg.Now())
}

// Deadline returns the explicit deadline of the task or the default one
// derived from its type SLA and priority.
func (e *Engine) Deadline(task *types.Task) time.Time {
	if task.HasDeadline() {
		return task.Deadline
	}
	sla, ok := e.cfg.SLATimeouts[task.Type]
	if !ok {
		sla = e.cfg.SLATimeouts[types.TaskTypeUnknown]
	}
	if sla <= 0 {
		sla = DefaultSLATimeouts()[types.TaskTypeUnknown]
	}
	factor := slaFactors[task.Priority.Clamp()]
	return task.CreatedAt.Add(time.Duration(float64(sla) * factor))
}

func (e *Engine) typeWeight(tt types.TaskType) float64 {
	if w, ok := e.cfg.TypeWeights[tt]; ok {
		return w
	}
	if w, ok := e.cfg.TypeWeights[types.TaskTypeUnknown]; ok {
		return w
	}
	return 1
}

func (e *Engine) scoreLocked(task *types.Task, prediction types.ResourcePrediction, capacity types.SystemCapacity, enqueuedAt, now time.Time) (float64, types.ScoreBreakdown) {
	b := types.ScoreBreakdown{
		Base:        baseScore(e.typeWeight(task.Type), e.maxType, task.Priority),
		SLAUrgency:  urgencyScore(now, task.CreatedAt, e.Deadline(task)),
		Dependency:  dependencyScore(e.queuedDependentsLocked(task.ID)),
		ResourceFit: resourceFitScore(prediction.Resources.MemoryMB, capacity),
		Starvation:  starvationScore(e.cfg.StarvationRatePerMinute, now.Sub(enqueuedAt)),
	}

	w := e.cfg.Weights
	total := w.Base*b.Base +
		w.Urgency*b.SLAUrgency +
		w.Dependency*bound(b.Dependency*2) +
		w.ResourceFit*bound(b.ResourceFit*2) +
		w.Starvation*b.Starvation
	return total, b
}

func (e *Engine) rescoreLocked(now time.Time, capacity types.SystemCapacity) {
	for _, entry := range e.order {
		entry.Score, entry.Breakdown = e.scoreLocked(entry.Task, entry.Prediction, heldBy(capacity, entry), entry.EnqueuedAt, now)
		entry.ScoredAt = now
	}
	sort.SliceStable(e.order, func(i, j int) bool {
		a, b := e.order[i], e.order[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
			return a.EnqueuedAt.Before(b.EnqueuedAt)
		}
		return a.Task.ID < b.Task.ID
	})
}

// heldBy returns capacity as seen by a queued entry, whose predicted memory
// and slot are already reserved in the ledger.
func heldBy(capacity types.SystemCapacity, entry *types.PriorityQueueEntry) types.SystemCapacity {
	capacity.AvailableMemoryMB += entry.Prediction.Resources.MemoryMB
	capacity.AvailableSlots++
	return capacity
}

// queuedDependentsLocked counts the dependents of taskID still in the queue
func (e *Engine) queuedDependentsLocked(taskID string) int {
	n := 0
	for dep := range e.dependents[taskID] {
		if _, ok := e.entries[dep]; ok {
			n++
		}
	}
	return n
}

func (e *Engine) positionLocked(taskID string) int {
	for i, entry := range e.order {
		if entry.Task.ID == taskID {
			return i + 1
		}
	}
	return 0
}

func (e *Engine) blockedLocked(taskID string) bool {
	return len(e.blockers[taskID]) > 0
}

func (e *Engine) addEdgeLocked(blocker, dependent string) {
	if blocker == "" || dependent == "" || blocker == dependent {
		return
	}
	if e.dependents[blocker] == nil {
		e.dependents[blocker] = make(map[string]struct{})
	}
	if e.blockers[dependent] == nil {
		e.blockers[dependent] = make(map[string]struct{})
	}
	e.dependents[blocker][dependent] = struct{}{}
	e.blockers[dependent][blocker] = struct{}{}
}

func (e *Engine) removeEdgeLocked(blocker, dependent string) {
	if deps, ok := e.dependents[blocker]; ok {
		delete(deps, dependent)
		if len(deps) == 0 {
			delete(e.dependents, blocker)
		}
	}
	if bs, ok := e.blockers[dependent]; ok {
		delete(bs, blocker)
		if len(bs) == 0 {
			delete(e.blockers, dependent)
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
