package training

import (
	"strings"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFeatures(t *testing.T) {
	task := &types.Task{
		ID:           "t-1",
		Type:         types.TaskTypeSecurity,
		Description:  "Refactor the database layer for concurrent access and audit security",
		Priority:     types.PriorityP0,
		Deadline:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Dependencies: []string{"a", "b"},
	}

	f := ExtractFeatures(task)

	require.Len(t, f.TypeOneHot, len(types.TaskTypes))
	assert.Equal(t, 1.0, f.TypeOneHot[types.TaskTypeSecurity.Index()])
	sum := 0.0
	for _, v := range f.TypeOneHot {
		sum += v
	}
	assert.Equal(t, 1.0, sum)

	// refactor, database, concurrent, security
	assert.InDelta(t, 0.8, f.Complexity, 1e-9)
	assert.Equal(t, 1.0, f.HasDeadline)
	assert.Equal(t, 1.0, f.PriorityLevel)
	assert.InDelta(t, 0.2, f.DependencyFan, 1e-9)
	assert.InDelta(t, float64(len(task.Description))/2000, f.DescLength, 1e-9)
}

func TestExtractFeaturesClamps(t *testing.T) {
	task := &types.Task{
		Type:           types.TaskTypeImplementation,
		Description:    strings.Repeat("refactor architecture migrate security distributed concurrent performance database integration multiple ", 40),
		Priority:       types.PriorityP3,
		EstimatedFiles: 500,
		Dependencies:   make([]string, 25),
	}

	f := ExtractFeatures(task)
	assert.Equal(t, 1.0, f.DescLength)
	assert.Equal(t, 1.0, f.WordCount)
	assert.Equal(t, 1.0, f.Complexity)
	assert.Equal(t, 1.0, f.FileCount)
	assert.Equal(t, 1.0, f.DependencyFan)
	assert.Equal(t, 0.0, f.PriorityLevel)
	assert.Equal(t, 0.0, f.HasDeadline)
}

func TestEstimateFiles(t *testing.T) {
	tests := []struct {
		name string
		desc string
		hint int
		want int
	}{
		{"explicit hint wins", "touch 30 files", 4, 4},
		{"files mention", "update 12 files across the repo", 0, 12},
		{"file paths", "edit pkg/api/server.go and docs/README.md and pkg/api/server.go", 0, 2},
		{"nothing", "improve things", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &types.Task{Description: tt.desc, EstimatedFiles: tt.hint}
			assert.Equal(t, tt.want, estimateFiles(task, strings.ToLower(tt.desc)))
		})
	}
}

func TestVector(t *testing.T) {
	task := &types.Task{Type: types.TaskTypeFix, Description: "fix bug", Priority: types.PriorityP2}
	f := ExtractFeatures(task)

	x := Vector(f, TypeStat{Count: 10, Mean: 4096, Std: 1024}, types.ResourceMemory)
	require.Len(t, x, FeatureDim)
	assert.Equal(t, 1.0, x[types.TaskTypeFix.Index()])
	assert.InDelta(t, 0.5, x[16], 1e-9)
	assert.InDelta(t, 0.125, x[17], 1e-9)
	for i, v := range x {
		assert.GreaterOrEqual(t, v, 0.0, "slot %d", i)
		assert.LessOrEqual(t, v, 1.0, "slot %d", i)
	}

	// Records written with a malformed one-hot still produce a full vector
	x = Vector(types.Features{}, TypeStat{}, types.ResourceCPU)
	require.Len(t, x, FeatureDim)
	assert.Equal(t, 1.0, x[types.TaskTypeUnknown.Index()])
}

func TestTruncateDescription(t *testing.T) {
	short := "short"
	assert.Equal(t, short, TruncateDescription(short))

	long := strings.Repeat("é", 300)
	got := TruncateDescription(long)
	assert.Equal(t, DescriptionLimit, len([]rune(got)))
}
