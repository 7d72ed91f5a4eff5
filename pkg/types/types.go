package types

import (
	"time"
)

// TaskType is the normalized task category
type TaskType string

const (
	TaskTypeImplementation TaskType = "implementation"
	TaskTypeSecurity       TaskType = "security"
	TaskTypeDocumentation  TaskType = "documentation"
	TaskTypeReview         TaskType = "review"
	TaskTypeTest           TaskType = "test"
	TaskTypeFix            TaskType = "fix"
	TaskTypeScan           TaskType = "scan"
	TaskTypePRCreation     TaskType = "pr-creation"
	TaskTypeUnknown        TaskType = "unknown"
)

// TaskTypes lists the fixed vocabulary in one-hot encoding order
var TaskTypes = []TaskType{
	TaskTypeImplementation,
	TaskTypeSecurity,
	TaskTypeDocumentation,
	TaskTypeReview,
	TaskTypeTest,
	TaskTypeFix,
	TaskTypeScan,
	TaskTypePRCreation,
	TaskTypeUnknown,
}

// Index returns the one-hot slot of the task type
func (t TaskType) Index() int {
	for i, tt := range TaskTypes {
		if tt == t {
			return i
		}
	}
	return len(TaskTypes) - 1
}

// Valid reports whether t is part of the fixed vocabulary
func (t TaskType) Valid() bool {
	for _, tt := range TaskTypes {
		if tt == t {
			return true
		}
	}
	return false
}

// Priority is the task priority level, P0 being the most urgent
type Priority int

const (
	PriorityP0 Priority = 0
	PriorityP1 Priority = 1
	PriorityP2 Priority = 2
	PriorityP3 Priority = 3
)

// String returns the P-notation of the priority
func (p Priority) String() string {
	switch p {
	case PriorityP0:
		return "P0"
	case PriorityP1:
		return "P1"
	case PriorityP3:
		return "P3"
	default:
		return "P2"
	}
}

// Level returns the priority as a value in [0,1] where P0 is 1.0
func (p Priority) Level() float64 {
	return float64(PriorityP3-p.Clamp()) / float64(PriorityP3)
}

// Clamp bounds p to the P0-P3 range
func (p Priority) Clamp() Priority {
	if p < PriorityP0 {
		return PriorityP0
	}
	if p > PriorityP3 {
		return PriorityP3
	}
	return p
}

// Task is the canonical unit submitted to the scheduler
type Task struct {
	ID             string    `json:"id" yaml:"id"`
	Type           TaskType  `json:"type" yaml:"type"`
	Description    string    `json:"description" yaml:"description"`
	Priority       Priority  `json:"priority" yaml:"priority"`
	Deadline       time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	CreatedAt      time.Time `json:"createdAt" yaml:"createdAt"`
	Dependencies   []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"` // ids of tasks this task blocks
	EstimatedFiles int       `json:"estimatedFiles,omitempty" yaml:"estimatedFiles,omitempty"`
}

// HasDeadline reports whether an explicit deadline was set
func (t *Task) HasDeadline() bool {
	return !t.Deadline.IsZero()
}

// Copy returns a deep copy so callers' values are never shared
func (t *Task) Copy() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return &c
}

// ResourceKind names one predicted resource dimension
type ResourceKind string

const (
	ResourceMemory   ResourceKind = "memory"
	ResourceCPU      ResourceKind = "cpu"
	ResourceTokens   ResourceKind = "tokens"
	ResourceDuration ResourceKind = "duration"
)

// ResourceKinds lists every predicted dimension
var ResourceKinds = []ResourceKind{ResourceMemory, ResourceCPU, ResourceTokens, ResourceDuration}

// ResourceUsage is a resource footprint, predicted or actual
type ResourceUsage struct {
	MemoryMB   float64 `json:"memoryMB" yaml:"memoryMB"`
	CPUSeconds float64 `json:"cpuSeconds" yaml:"cpuSeconds"`
	Tokens     float64 `json:"tokens" yaml:"tokens"`
	DurationMs float64 `json:"durationMs" yaml:"durationMs"`
}

// Get returns the value of one dimension
func (u ResourceUsage) Get(kind ResourceKind) float64 {
	switch kind {
	case ResourceMemory:
		return u.MemoryMB
	case ResourceCPU:
		return u.CPUSeconds
	case ResourceTokens:
		return u.Tokens
	case ResourceDuration:
		return u.DurationMs
	}
	return 0
}

// Set assigns the value of one dimension
func (u *ResourceUsage) Set(kind ResourceKind, v float64) {
	switch kind {
	case ResourceMemory:
		u.MemoryMB = v
	case ResourceCPU:
		u.CPUSeconds = v
	case ResourceTokens:
		u.Tokens = v
	case ResourceDuration:
		u.DurationMs = v
	}
}

// PredictionMethod tags how a prediction was produced
type PredictionMethod string

const (
	MethodML                PredictionMethod = "ml"
	MethodHeuristic         PredictionMethod = "heuristic"
	MethodHeuristicFallback PredictionMethod = "heuristic-fallback"
)

// Confidence is a coarse confidence tag for a single predicted resource
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ResourcePrediction is the predictor output for one task
type ResourcePrediction struct {
	Resources   ResourceUsage                     `json:"resources"`
	Method      PredictionMethod                  `json:"method"`
	Confidence  map[ResourceKind]Confidence       `json:"confidence"`
	Methods     map[ResourceKind]PredictionMethod `json:"methods,omitempty"`
	PredictedAt time.Time                         `json:"predictedAt"`
}

// RejectionReason enumerates why a task was not admitted
type RejectionReason string

const (
	ReasonNone                RejectionReason = ""
	ReasonInsufficientMemory  RejectionReason = "insufficient-memory"
	ReasonNoWorkerSlots       RejectionReason = "no-worker-slots"
	ReasonTokenBudgetExceeded RejectionReason = "token-budget-exceeded"
	ReasonSystemUnhealthy     RejectionReason = "system-unhealthy"
	ReasonQueueFull           RejectionReason = "queue-full"
	ReasonDuplicateTask       RejectionReason = "duplicate-task"
)

// SystemCapacity is a snapshot of the live resource ledger
type SystemCapacity struct {
	MaxMemoryMB           float64   `json:"maxMemoryMB"`
	ReservedMemoryMB      float64   `json:"reservedMemoryMB"`
	AvailableMemoryMB     float64   `json:"availableMemoryMB"`
	MaxConcurrentTasks    int       `json:"maxConcurrentTasks"`
	CurrentTasks          int       `json:"currentTasks"`
	AvailableSlots        int       `json:"availableSlots"`
	ReservedTokens        float64   `json:"reservedTokens"`
	HourlyTokensUsed      float64   `json:"hourlyTokensUsed"`
	HourlyTokensRemaining float64   `json:"hourlyTokensRemaining"`
	DailyTokensUsed       float64   `json:"dailyTokensUsed"`
	DailyTokensRemaining  float64   `json:"dailyTokensRemaining"`
	Healthy               bool      `json:"healthy"`
	HealthMessage         string    `json:"healthMessage,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// FeasibilityVerdict answers whether a footprint can be admitted now
type FeasibilityVerdict struct {
	Feasible          bool            `json:"feasible"`
	Reason            RejectionReason `json:"reason,omitempty"`
	EstimatedWaitTime time.Duration   `json:"estimatedWaitTime,omitempty"`
	Snapshot          SystemCapacity  `json:"snapshot"`
}

// ResourceAllocation is a reservation against the live ledger
type ResourceAllocation struct {
	TaskID      string    `json:"taskId"`
	MemoryMB    float64   `json:"memoryMB"`
	Tokens      float64   `json:"tokens"`
	AllocatedAt time.Time `json:"allocatedAt"`
}

// SchedulingDecision is created only for admitted tasks
type SchedulingDecision struct {
	TaskID        string             `json:"taskId"`
	Priority      float64            `json:"priority"`
	QueuePosition int                `json:"queuePosition"`
	Prediction    ResourcePrediction `json:"prediction"`
	Allocation    ResourceAllocation `json:"allocation"`
	DecidedAt     time.Time          `json:"decidedAt"`
}

// TaskState is the scheduler lifecycle state of a task
type TaskState string

const (
	TaskStateUnscheduled TaskState = "unscheduled"
	TaskStateScheduled   TaskState = "scheduled"
	TaskStateRunning     TaskState = "running"
	TaskStateCompleted   TaskState = "completed"
	TaskStateRejected    TaskState = "rejected"
	TaskStateRemoved     TaskState = "removed"
	TaskStateExpired     TaskState = "expired"
)

// ScoreBreakdown holds the raw composite score components
type ScoreBreakdown struct {
	Base        float64 `json:"base"`
	SLAUrgency  float64 `json:"slaUrgency"`
	Dependency  float64 `json:"dependency"`
	ResourceFit float64 `json:"resourceFit"`
	Starvation  float64 `json:"starvation"`
}

// PriorityQueueEntry is a pending task and its last computed score
type PriorityQueueEntry struct {
	Task       *Task              `json:"task"`
	Score      float64            `json:"score"`
	Breakdown  ScoreBreakdown     `json:"breakdown"`
	Prediction ResourcePrediction `json:"prediction"`
	EnqueuedAt time.Time          `json:"enqueuedAt"`
	ScoredAt   time.Time          `json:"scoredAt"`
}

// TrainingRecord is one append-only outcome observation
type TrainingRecord struct {
	TaskID      string        `json:"taskId"`
	Timestamp   time.Time     `json:"timestamp"`
	TaskType    TaskType      `json:"taskType"`
	Features    Features      `json:"features"`
	Actual      ResourceUsage `json:"actual"`
	Description string        `json:"description"`
}

// Features is the resource-independent part of the model input
type Features struct {
	TypeOneHot    []float64 `json:"typeOneHot"`
	DescLength    float64   `json:"descLength"`
	WordCount     float64   `json:"wordCount"`
	Complexity    float64   `json:"complexity"`
	FileCount     float64   `json:"fileCount"`
	HasDeadline   float64   `json:"hasDeadline"`
	PriorityLevel float64   `json:"priorityLevel"`
	DependencyFan float64   `json:"dependencyFan"`
}

// ModelState is the persisted state of one per-resource regressor
type ModelState struct {
	Resource     ResourceKind `json:"resource"`
	Weights      []float64    `json:"weights"`
	Bias         float64      `json:"bias"`
	FeatureMeans []float64    `json:"featureMeans"`
	FeatureM2    []float64    `json:"featureM2"`
	TargetMean   float64      `json:"targetMean"`
	TargetM2     float64      `json:"targetM2"`
	Samples      int          `json:"samples"`
	LearningRate float64      `json:"learningRate"`
	InitialRate  float64      `json:"initialRate"`
	Decay        float64      `json:"decay"`
	L2           float64      `json:"l2"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// TokenLedger holds committed token usage in hour and day buckets
type TokenLedger struct {
	Hourly map[string]float64 `json:"hourly"`
	Daily  map[string]float64 `json:"daily"`
}

// NewTokenLedger returns an empty ledger
func NewTokenLedger() *TokenLedger {
	return &TokenLedger{
		Hourly: make(map[string]float64),
		Daily:  make(map[string]float64),
	}
}

// Copy returns a deep copy of the ledger
func (l *TokenLedger) Copy() *TokenLedger {
	c := NewTokenLedger()
	for k, v := range l.Hourly {
		c.Hourly[k] = v
	}
	for k, v := range l.Daily {
		c.Daily[k] = v
	}
	return c
}
