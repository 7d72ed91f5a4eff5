package priority

import (
	"math"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// Weights are the composite score weights. They should sum to 1.
type Weights struct {
	Base        float64
	Urgency     float64
	Dependency  float64
	ResourceFit float64
	Starvation  float64
}

// DefaultWeights returns the standard score weights
func DefaultWeights() Weights {
	return Weights{
		Base:        0.25,
		Urgency:     0.30,
		Dependency:  0.15,
		ResourceFit: 0.15,
		Starvation:  0.15,
	}
}

// Score is the upper bound of every normalised component
const Score = 10.0

var priorityMultipliers = map[types.Priority]float64{
	types.PriorityP0: 3.0,
	types.PriorityP1: 2.0,
	types.PriorityP2: 1.0,
	types.PriorityP3: 0.5,
}

// maxPriorityMultiplier is the P0 multiplier
const maxPriorityMultiplier = 3.0

// slaFactors stretch or shrink the type SLA per priority level
var slaFactors = map[types.Priority]float64{
	types.PriorityP0: 0.5,
	types.PriorityP1: 0.75,
	types.PriorityP2: 1.0,
	types.PriorityP3: 1.5,
}

// DefaultSLATimeouts returns the per-type time allowed from creation to
// completion when a task carries no explicit deadline.
func DefaultSLATimeouts() map[types.TaskType]time.Duration {
	return map[types.TaskType]time.Duration{
		types.TaskTypeSecurity:       2 * time.Hour,
		types.TaskTypeFix:            4 * time.Hour,
		types.TaskTypeScan:           2 * time.Hour,
		types.TaskTypeReview:         4 * time.Hour,
		types.TaskTypePRCreation:     4 * time.Hour,
		types.TaskTypeTest:           6 * time.Hour,
		types.TaskTypeImplementation: 8 * time.Hour,
		types.TaskTypeDocumentation:  24 * time.Hour,
		types.TaskTypeUnknown:        8 * time.Hour,
	}
}

// PriorityMultiplier returns the base-score multiplier of a priority level
func PriorityMultiplier(p types.Priority) float64 {
	return priorityMultipliers[p.Clamp()]
}

// baseScore maps type weight × priority multiplier onto [0,10]
func baseScore(typeWeight, maxTypeWeight float64, p types.Priority) float64 {
	if maxTypeWeight <= 0 {
		return 0
	}
	v := Score * typeWeight * PriorityMultiplier(p) / (maxTypeWeight * maxPriorityMultiplier)
	return bound(v)
}

// urgencyScore is piecewise linear over the fraction of the SLA window
// already elapsed. Each band covers two points of the [2,10] range.
func urgencyScore(now, created, deadline time.Time) float64 {
	if !now.Before(deadline) {
		return Score
	}
	window := deadline.Sub(created)
	if window <= 0 {
		return Score
	}
	elapsed := float64(now.Sub(created)) / float64(window)
	switch {
	case elapsed < 0:
		return 2
	case elapsed < 0.2:
		return 2 + 2*elapsed/0.2
	case elapsed < 0.5:
		return 4 + 2*(elapsed-0.2)/0.3
	case elapsed < 0.8:
		return 6 + 2*(elapsed-0.5)/0.3
	default:
		return 8 + 2*(elapsed-0.8)/0.2
	}
}

// dependencyScore steps with the number of tasks waiting on this one.
// The raw value is in [0,5].
func dependencyScore(dependents int) float64 {
	switch {
	case dependents <= 0:
		return 0
	case dependents <= 2:
		return 2
	case dependents <= 5:
		return 4
	default:
		return 5
	}
}

// resourceFitScore peaks at 5 when the predicted memory takes 30-70% of
// what is currently available and tapers linearly to 0 at both ends.
func resourceFitScore(memoryMB float64, capacity types.SystemCapacity) float64 {
	avail := capacity.AvailableMemoryMB
	if avail <= 0 || memoryMB <= 0 {
		return 0
	}
	ratio := memoryMB / avail
	var fit float64
	switch {
	case ratio < 0.3:
		fit = 5 * ratio / 0.3
	case ratio <= 0.7:
		fit = 5
	case ratio < 1:
		fit = 5 * (1 - ratio) / 0.3
	}
	if capacity.AvailableSlots <= 0 {
		fit /= 2
	}
	return fit
}

// starvationScore grows with time spent in the queue, capped at 10
func starvationScore(ratePerMinute float64, waited time.Duration) float64 {
	if waited <= 0 {
		return 0
	}
	return math.Min(Score, ratePerMinute*waited.Minutes())
}

func bound(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, Score)
}
