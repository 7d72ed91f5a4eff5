package scheduler

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/feasibility"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/predictor"
	"github.com/cuemby/burrow/pkg/priority"
	"github.com/cuemby/burrow/pkg/reconciler"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Config holds the orchestration options
type Config struct {
	MaxQueueDepth     int
	RebalanceInterval time.Duration

	// ReservationTTL bounds how long a reservation may live without an
	// outcome report; zero disables the reaper
	ReservationTTL time.Duration

	Now func() time.Time
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxQueueDepth:     100,
		RebalanceInterval: 30 * time.Second,
		ReservationTTL:    2 * time.Hour,
		Now:               time.Now,
	}
}

type trackedTask struct {
	task     *types.Task
	state    types.TaskState
	decision types.SchedulingDecision
	started  time.Time
}

// Scheduler decides admission for incoming tasks, keeps admitted tasks
// ranked and learns from their outcomes. One mutex covers the ledger, the
// queue and the token budget; predictions are computed outside of it.
type Scheduler struct {
	mu         sync.Mutex
	cfg        Config
	predictor  *predictor.Predictor
	checker    *feasibility.Checker
	engine     *priority.Engine
	broker     *events.Broker
	reconciler *reconciler.Reconciler

	tasks     map[string]*trackedTask
	stats     Stats
	waitTotal time.Duration
	startedAt time.Time

	logger zerolog.Logger
}

// New wires the scheduler over its components. broker may be nil.
func New(cfg Config, pred *predictor.Predictor, checker *feasibility.Checker, engine *priority.Engine, broker *events.Broker) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = def.MaxQueueDepth
	}
	if cfg.RebalanceInterval <= 0 {
		cfg.RebalanceInterval = def.RebalanceInterval
	}
	if cfg.ReservationTTL < 0 {
		cfg.ReservationTTL = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Scheduler{
		cfg:       cfg,
		predictor: pred,
		checker:   checker,
		engine:    engine,
		broker:    broker,
		tasks:     make(map[string]*trackedTask),
		startedAt: cfg.Now(),
		logger:    log.WithComponent("scheduler"),
	}
	s.stats.RejectionsByReason = make(map[types.RejectionReason]int)
	s.reconciler = reconciler.NewReconciler(s, cfg.RebalanceInterval)
	return s
}

// Start begins the periodic rebalance and reservation reaper
func (s *Scheduler) Start() {
	s.reconciler.Start()
	s.logger.Info().
		Dur("rebalance_interval", s.cfg.RebalanceInterval).
		Dur("reservation_ttl", s.cfg.ReservationTTL).
		Msg("Scheduler started")
}

// Stop halts the background loop
func (s *Scheduler) Stop() {
	s.reconciler.Stop()
}

// Close stops the background loop and flushes the predictor
func (s *Scheduler) Close() {
	s.Stop()
	s.predictor.Close()
}

// CanAcceptTask predicts the task and runs every admission check without
// changing any state.
func (s *Scheduler) CanAcceptTask(ctx context.Context, task *types.Task) AdmissionCheck {
	pred := s.predictor.Predict(task)
	check := AdmissionCheck{
		Feasible:           true,
		EstimatedResources: pred.Resources,
		PredictionMethod:   pred.Method,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reason, wait, ok := s.admitLocked(ctx, task, pred); !ok {
		check.Feasible = false
		check.Reason = reason
		check.EstimatedWaitTime = wait
	}
	return check
}

// ScheduleTask admits the task if every check passes, reserves its
// predicted resources and queues it. A rejection is a normal result.
func (s *Scheduler) ScheduleTask(ctx context.Context, task *types.Task) ScheduleResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	task = task.Copy()
	pred := s.predictor.Predict(task)
	result := ScheduleResult{TaskID: task.ID, EstimatedResources: pred.Resources}
	logger := log.WithTaskID(task.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Submitted++

	reason, wait, ok := s.admitLocked(ctx, task, pred)
	if ok {
		alloc, err := s.checker.AllocateResources(task.ID, pred.Resources)
		if err != nil {
			reason, wait, ok = allocationReason(err), s.checker.AverageTaskDuration(), false
		} else {
			capacity := s.checker.SystemCapacity()
			position, entry := s.engine.AddTask(task, pred, capacity)

			s.tasks[task.ID] = &trackedTask{
				task:  task,
				state: types.TaskStateScheduled,
				decision: types.SchedulingDecision{
					TaskID:        task.ID,
					Priority:      entry.Score,
					QueuePosition: position,
					Prediction:    pred,
					Allocation:    alloc,
					DecidedAt:     s.cfg.Now(),
				},
			}
			s.stats.Admitted++
			s.updateGaugesLocked(capacity)

			result.Scheduled = true
			result.Priority = entry.Score
			result.QueuePosition = position

			metrics.AdmissionsTotal.WithLabelValues("accepted", "").Inc()
			logger.Debug().
				Str("type", string(task.Type)).
				Str("priority", task.Priority.String()).
				Float64("score", entry.Score).
				Int("position", position).
				Float64("memory_mb", pred.Resources.MemoryMB).
				Float64("tokens", pred.Resources.Tokens).
				Str("method", string(pred.Method)).
				Msg("Task scheduled")
			s.publish(events.EventTaskScheduled, task.ID, "", map[string]string{
				"position": strconv.Itoa(position),
				"method":   string(pred.Method),
			})
			return result
		}
	}

	s.stats.Rejected++
	s.stats.RejectionsByReason[reason]++
	result.Reason = reason
	result.EstimatedWaitTime = wait

	metrics.AdmissionsTotal.WithLabelValues("rejected", string(reason)).Inc()
	logger.Info().
		Str("reason", string(reason)).
		Dur("retry_after", wait).
		Float64("memory_mb", pred.Resources.MemoryMB).
		Float64("tokens", pred.Resources.Tokens).
		Msg("Task rejected")
	s.publish(events.EventTaskRejected, task.ID, string(reason), nil)
	return result
}

// admitLocked runs the admission checks in order: duplicate id, queue
// depth, then the feasibility checker.
func (s *Scheduler) admitLocked(ctx context.Context, task *types.Task, pred types.ResourcePrediction) (types.RejectionReason, time.Duration, bool) {
	if t, ok := s.tasks[task.ID]; ok && live(t.state) {
		return types.ReasonDuplicateTask, 0, false
	}
	if s.engine.Len() >= s.cfg.MaxQueueDepth {
		return types.ReasonQueueFull, s.checker.AverageTaskDuration(), false
	}
	verdict := s.checker.CalculateFeasibility(ctx, pred.Resources)
	if !verdict.Feasible {
		return verdict.Reason, verdict.EstimatedWaitTime, false
	}
	return types.ReasonNone, 0, true
}

// StartTask moves a scheduled task to running and takes it off the queue
func (s *Scheduler) StartTask(taskID string) StartResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok || t.state != types.TaskStateScheduled {
		return StartResult{Reason: ReasonNotScheduled}
	}

	now := s.cfg.Now()
	s.engine.RemoveTask(taskID)
	t.state = types.TaskStateRunning
	t.started = now

	s.stats.Started++
	s.waitTotal += now.Sub(t.decision.DecidedAt)
	s.updateGaugesLocked(s.checker.SystemCapacity())

	logger := log.WithTaskID(taskID)
	logger.Debug().
		Dur("waited", now.Sub(t.decision.DecidedAt)).
		Msg("Task started")
	s.publish(events.EventTaskStarted, taskID, "", nil)
	return StartResult{Started: true, StartedAt: now}
}

// ReportOutcome completes a task: its reservation is released, the actual
// token usage is committed to the budget and the predictor learns from the
// outcome. A task still queued is completed as if it had been started.
func (s *Scheduler) ReportOutcome(taskID string, actual types.ResourceUsage) OutcomeResult {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return OutcomeResult{Reason: ReasonNotFound}
	}
	if !live(t.state) {
		s.mu.Unlock()
		return OutcomeResult{Reason: ReasonNotRunning}
	}

	s.finishLocked(t, types.TaskStateCompleted, actual)
	s.stats.Completed++
	prediction := t.decision.Prediction
	task := t.task
	s.mu.Unlock()

	acc := s.predictor.ReportOutcome(task, actual, &prediction)

	logger := log.WithTaskID(taskID)
	logger.Debug().
		Float64("accuracy", acc.Overall).
		Float64("memory_mb", actual.MemoryMB).
		Float64("tokens", actual.Tokens).
		Msg("Outcome recorded")
	s.publish(events.EventTaskCompleted, taskID, "", nil)
	return OutcomeResult{Recorded: true, Accuracy: &acc}
}

// RemoveTask withdraws a task that has not started yet and releases its
// reservation. Running tasks must report an outcome instead.
func (s *Scheduler) RemoveTask(taskID string) RemoveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return RemoveResult{Reason: ReasonNotFound}
	}
	if t.state != types.TaskStateScheduled {
		return RemoveResult{Reason: ReasonNotScheduled}
	}

	s.finishLocked(t, types.TaskStateRemoved, types.ResourceUsage{})
	s.stats.Removed++

	logger := log.WithTaskID(taskID)
	logger.Info().Msg("Task removed")
	s.publish(events.EventTaskRemoved, taskID, "", nil)
	return RemoveResult{Removed: true}
}

// finishLocked moves t to a terminal state, releases its reservation
// exactly once and unblocks its dependents.
func (s *Scheduler) finishLocked(t *trackedTask, state types.TaskState, actual types.ResourceUsage) {
	id := t.task.ID
	if _, ok := s.checker.ReleaseResources(id, actual); !ok {
		s.logger.Warn().Str("task_id", id).Msg("No reservation to release")
	}
	if t.state == types.TaskStateScheduled {
		s.engine.RemoveTask(id)
	}
	s.engine.CompleteTask(id)
	t.state = state
	delete(s.tasks, id)

	capacity := s.checker.SystemCapacity()
	s.engine.RebalancePriorities(capacity)
	s.updateGaugesLocked(capacity)
}

// GetNextTask returns the highest ranked task that is not waiting on an
// unfinished dependency, or nil when there is none.
func (s *Scheduler) GetNextTask() *NextTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.engine.GetNextTask(s.checker.SystemCapacity())
	if !ok {
		return nil
	}
	return &NextTask{
		Task:               entry.Task,
		Priority:           entry.Score,
		EstimatedResources: entry.Prediction.Resources,
	}
}

// GetSchedule returns the queue in rank order and the running tasks
func (s *Scheduler) GetSchedule() Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.engine.Entries()
	sched := Schedule{
		Queued:  make([]QueuedTask, 0, len(entries)),
		Running: make([]RunningTask, 0),
	}
	for i, e := range entries {
		sched.Queued = append(sched.Queued, QueuedTask{
			Position:           i + 1,
			Task:               e.Task,
			Score:              e.Score,
			Breakdown:          e.Breakdown,
			EstimatedResources: e.Prediction.Resources,
			EnqueuedAt:         e.EnqueuedAt,
			Blocked:            s.engine.Blocked(e.Task.ID),
		})
	}
	for _, t := range s.tasks {
		if t.state != types.TaskStateRunning {
			continue
		}
		sched.Running = append(sched.Running, RunningTask{
			Task:               t.task.Copy(),
			EstimatedResources: t.decision.Prediction.Resources,
			StartedAt:          t.started,
		})
	}
	sort.Slice(sched.Running, func(i, j int) bool {
		a, b := sched.Running[i], sched.Running[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.Task.ID < b.Task.ID
	})
	return sched
}

// GetSystemCapacity returns the current ledger snapshot
func (s *Scheduler) GetSystemCapacity() types.SystemCapacity {
	return s.checker.SystemCapacity()
}

// QueueDepth returns the number of queued tasks
func (s *Scheduler) QueueDepth() int {
	return s.engine.Len()
}

// GetStats returns lifetime counters and current state counts
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.RejectionsByReason = make(map[types.RejectionReason]int, len(s.stats.RejectionsByReason))
	for r, n := range s.stats.RejectionsByReason {
		stats.RejectionsByReason[r] = n
	}
	stats.States = make(map[types.TaskState]int)
	for _, t := range s.tasks {
		stats.States[t.state]++
	}
	stats.QueueDepth = s.engine.Len()
	if s.stats.Started > 0 {
		stats.AverageWait = s.waitTotal / time.Duration(s.stats.Started)
	}
	stats.Uptime = s.cfg.Now().Sub(s.startedAt)
	stats.MLActive = s.predictor.MLActive()
	return stats
}

// GetAccuracyMetrics returns the predictor accuracy report
func (s *Scheduler) GetAccuracyMetrics() predictor.AccuracyMetrics {
	return s.predictor.AccuracyMetrics()
}

// RetrainModels rebuilds the models from the full outcome log
func (s *Scheduler) RetrainModels(epochs int) (predictor.TrainReport, error) {
	report, err := s.predictor.BatchTrain(epochs)
	if err != nil {
		return report, err
	}
	s.publish(events.EventModelsRetrained, "", "", map[string]string{"epochs": strconv.Itoa(report.Epochs)})
	return report, nil
}

// RebalanceQueue rescores every queued task against the current capacity
func (s *Scheduler) RebalanceQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	capacity := s.checker.SystemCapacity()
	s.engine.RebalancePriorities(capacity)
	s.updateGaugesLocked(capacity)
}

// ReapExpired releases the reservation of every running task older than
// the TTL with zero actuals and marks the task expired. Queued tasks are
// left to RemoveTask.
func (s *Scheduler) ReapExpired() int {
	if s.cfg.ReservationTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Now()
	var expired []string
	for id, t := range s.tasks {
		if t.state == types.TaskStateRunning && now.Sub(t.decision.Allocation.AllocatedAt) > s.cfg.ReservationTTL {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		t := s.tasks[id]
		age := now.Sub(t.decision.Allocation.AllocatedAt)
		s.finishLocked(t, types.TaskStateExpired, types.ResourceUsage{})
		s.stats.Expired++
		metrics.ReservationsReaped.Inc()

		logger := log.WithTaskID(id)
		logger.Warn().
			Dur("age", age).
			Msg("Reservation expired without an outcome")
		s.publish(events.EventTaskExpired, id, "reservation TTL exceeded", nil)
	}
	return len(expired)
}

func (s *Scheduler) updateGaugesLocked(capacity types.SystemCapacity) {
	metrics.QueueDepth.Set(float64(s.engine.Len()))
	metrics.RunningTasks.Set(float64(capacity.CurrentTasks))
	metrics.MemoryReservedMB.Set(capacity.ReservedMemoryMB)
	metrics.TokensUsed.WithLabelValues("hour").Set(capacity.HourlyTokensUsed)
	metrics.TokensUsed.WithLabelValues("day").Set(capacity.DailyTokensUsed)
}

func (s *Scheduler) publish(typ events.EventType, taskID, message string, metadata map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{
		Type:      typ,
		TaskID:    taskID,
		Timestamp: s.cfg.Now(),
		Message:   message,
		Metadata:  metadata,
	})
}

func live(state types.TaskState) bool {
	return state == types.TaskStateScheduled || state == types.TaskStateRunning
}

func allocationReason(err error) types.RejectionReason {
	if errors.Is(err, feasibility.ErrAlreadyAllocated) {
		return types.ReasonDuplicateTask
	}
	return types.ReasonInsufficientMemory
}
