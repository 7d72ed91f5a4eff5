package predictor

import (
	"math"

	"github.com/cuemby/burrow/pkg/training"
	"github.com/cuemby/burrow/pkg/types"
)

// heuristicTable holds the fixed per-type estimates used until enough
// outcomes have been observed to trust the models.
var heuristicTable = map[types.TaskType]types.ResourceUsage{
	types.TaskTypeImplementation: {MemoryMB: 1024, CPUSeconds: 120, Tokens: 50000, DurationMs: 600000},
	types.TaskTypeSecurity:       {MemoryMB: 768, CPUSeconds: 90, Tokens: 30000, DurationMs: 300000},
	types.TaskTypeDocumentation:  {MemoryMB: 384, CPUSeconds: 30, Tokens: 20000, DurationMs: 180000},
	types.TaskTypeReview:         {MemoryMB: 512, CPUSeconds: 45, Tokens: 25000, DurationMs: 240000},
	types.TaskTypeTest:           {MemoryMB: 768, CPUSeconds: 120, Tokens: 15000, DurationMs: 300000},
	types.TaskTypeFix:            {MemoryMB: 640, CPUSeconds: 60, Tokens: 30000, DurationMs: 300000},
	types.TaskTypeScan:           {MemoryMB: 512, CPUSeconds: 90, Tokens: 10000, DurationMs: 180000},
	types.TaskTypePRCreation:     {MemoryMB: 256, CPUSeconds: 15, Tokens: 8000, DurationMs: 60000},
	types.TaskTypeUnknown:        {MemoryMB: 512, CPUSeconds: 60, Tokens: 25000, DurationMs: 300000},
}

const (
	// minHistoryForBlend is the number of same-type outcomes needed before
	// the heuristic leans toward the observed mean
	minHistoryForBlend = 5
	maxHistoryWeight   = 0.8
	historySaturation  = 20.0
)

// bounds are the sanity limits applied to every final prediction
var bounds = map[types.ResourceKind][2]float64{
	types.ResourceMemory:   {100, 8192},
	types.ResourceCPU:      {1, 3600},
	types.ResourceTokens:   {100, 200000},
	types.ResourceDuration: {1000, 3600000},
}

// heuristic estimates one resource from the type table, scaled by task
// complexity and blended toward the type's observed mean.
func heuristic(taskType types.TaskType, kind types.ResourceKind, complexity float64, hist training.TypeStat) float64 {
	base, ok := heuristicTable[taskType]
	if !ok {
		base = heuristicTable[types.TaskTypeUnknown]
	}
	v := base.Get(kind) * (0.75 + 0.5*complexity)

	if hist.Count >= minHistoryForBlend && hist.Mean > 0 {
		w := math.Min(maxHistoryWeight, float64(hist.Count)/historySaturation)
		v = (1-w)*v + w*hist.Mean
	}
	return v
}

func clampResource(kind types.ResourceKind, v float64) float64 {
	b := bounds[kind]
	if math.IsNaN(v) || v < b[0] {
		return b[0]
	}
	if v > b[1] {
		return b[1]
	}
	return v
}
