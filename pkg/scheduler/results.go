package scheduler

import (
	"time"

	"github.com/cuemby/burrow/pkg/predictor"
	"github.com/cuemby/burrow/pkg/types"
)

// Lookup miss reasons
const (
	ReasonNotScheduled = "not-scheduled"
	ReasonNotFound     = "not-found"
	ReasonNotRunning   = "not-running"
)

// AdmissionCheck is the answer of the read-only admission check
type AdmissionCheck struct {
	Feasible           bool                   `json:"feasible"`
	Reason             types.RejectionReason  `json:"reason,omitempty"`
	EstimatedResources types.ResourceUsage    `json:"estimatedResources"`
	EstimatedWaitTime  time.Duration          `json:"estimatedWaitTime,omitempty"`
	PredictionMethod   types.PredictionMethod `json:"predictionMethod"`
}

// ScheduleResult is the outcome of a submission
type ScheduleResult struct {
	Scheduled          bool                  `json:"scheduled"`
	TaskID             string                `json:"taskId"`
	Priority           float64               `json:"priority,omitempty"`
	QueuePosition      int                   `json:"queuePosition,omitempty"`
	EstimatedResources types.ResourceUsage   `json:"estimatedResources"`
	Reason             types.RejectionReason `json:"reason,omitempty"`
	EstimatedWaitTime  time.Duration         `json:"estimatedWaitTime,omitempty"`
}

// StartResult is the outcome of StartTask
type StartResult struct {
	Started   bool      `json:"started"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// OutcomeResult is the outcome of ReportOutcome
type OutcomeResult struct {
	Recorded bool                `json:"recorded"`
	Accuracy *predictor.Accuracy `json:"accuracy,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// RemoveResult is the outcome of RemoveTask
type RemoveResult struct {
	Removed bool   `json:"removed"`
	Reason  string `json:"reason,omitempty"`
}

// NextTask is the highest ranked runnable task
type NextTask struct {
	Task               *types.Task         `json:"task"`
	Priority           float64             `json:"priority"`
	EstimatedResources types.ResourceUsage `json:"estimatedResources"`
}

// QueuedTask is one pending entry of the schedule
type QueuedTask struct {
	Position           int                  `json:"position"`
	Task               *types.Task          `json:"task"`
	Score              float64              `json:"score"`
	Breakdown          types.ScoreBreakdown `json:"breakdown"`
	EstimatedResources types.ResourceUsage  `json:"estimatedResources"`
	EnqueuedAt         time.Time            `json:"enqueuedAt"`
	Blocked            bool                 `json:"blocked,omitempty"`
}

// RunningTask is one started task of the schedule
type RunningTask struct {
	Task               *types.Task         `json:"task"`
	EstimatedResources types.ResourceUsage `json:"estimatedResources"`
	StartedAt          time.Time           `json:"startedAt"`
}

// Schedule is the pending queue in rank order plus the running tasks
type Schedule struct {
	Queued  []QueuedTask  `json:"queued"`
	Running []RunningTask `json:"running"`
}

// Stats are lifetime counters of the scheduler
type Stats struct {
	Submitted          int                           `json:"submitted"`
	Admitted           int                           `json:"admitted"`
	Rejected           int                           `json:"rejected"`
	RejectionsByReason map[types.RejectionReason]int `json:"rejectionsByReason"`
	Started            int                           `json:"started"`
	Completed          int                           `json:"completed"`
	Removed            int                           `json:"removed"`
	Expired            int                           `json:"expired"`
	States             map[types.TaskState]int       `json:"states"`
	QueueDepth         int                           `json:"queueDepth"`
	AverageWait        time.Duration                 `json:"averageWait"`
	Uptime             time.Duration                 `json:"uptime"`
	MLActive           bool                          `json:"mlActive"`
}
