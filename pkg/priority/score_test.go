package priority

import (
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBaseScore(t *testing.T) {
	tests := []struct {
		name     string
		weight   float64
		priority types.Priority
		want     float64
	}{
		{"heaviest type at P0", 1.5, types.PriorityP0, 10},
		{"heaviest type at P2", 1.5, types.PriorityP2, 10.0 / 3},
		{"half weight at P1", 0.75, types.PriorityP1, 10.0 / 3},
		{"P3", 1.5, types.PriorityP3, 10.0 / 6},
		{"out of range priority is clamped", 1.5, types.Priority(9), 10.0 / 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, baseScore(tt.weight, 1.5, tt.priority), 1e-9)
		})
	}
	assert.Zero(t, baseScore(1, 0, types.PriorityP0))
}

func TestUrgencyScore(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := created.Add(100 * time.Minute)

	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{-time.Minute, 2},
		{0, 2},
		{10 * time.Minute, 3},
		{20 * time.Minute, 4},
		{35 * time.Minute, 5},
		{50 * time.Minute, 6},
		{80 * time.Minute, 8},
		{90 * time.Minute, 9},
		{100 * time.Minute, 10},
		{300 * time.Minute, 10},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, urgencyScore(created.Add(tt.elapsed), created, deadline), 1e-9)
		})
	}

	assert.Equal(t, Score, urgencyScore(created, created, created), "empty window is overdue")
}

func TestDependencyScore(t *testing.T) {
	for n, want := range map[int]float64{0: 0, 1: 2, 2: 2, 3: 4, 5: 4, 6: 5, 40: 5} {
		assert.Equal(t, want, dependencyScore(n), "dependents=%d", n)
	}
}

func TestResourceFitScore(t *testing.T) {
	capacity := types.SystemCapacity{AvailableMemoryMB: 1000, AvailableSlots: 2}

	tests := []struct {
		name     string
		memory   float64
		capacity types.SystemCapacity
		want     float64
	}{
		{"nothing predicted", 0, capacity, 0},
		{"small", 150, capacity, 2.5},
		{"band start", 300, capacity, 5},
		{"band middle", 500, capacity, 5},
		{"band end", 700, capacity, 5},
		{"large", 850, capacity, 2.5},
		{"does not fit", 1200, capacity, 0},
		{"no free slot halves", 500, types.SystemCapacity{AvailableMemoryMB: 1000}, 2.5},
		{"no free memory", 500, types.SystemCapacity{AvailableSlots: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, resourceFitScore(tt.memory, tt.capacity), 1e-9)
		})
	}
}

func TestStarvationScore(t *testing.T) {
	assert.Zero(t, starvationScore(0.2, 0))
	assert.Zero(t, starvationScore(0.2, -time.Minute))
	assert.InDelta(t, 2.0, starvationScore(0.2, 10*time.Minute), 1e-9)
	assert.Equal(t, Score, starvationScore(0.2, 3*time.Hour))
}
