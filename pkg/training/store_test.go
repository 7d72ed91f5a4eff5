package training

import (
	"sync"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	appended  []*types.TrainingRecord
	truncated []int
}

func (r *recordingSink) AppendOutcome(rec *types.TrainingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, rec)
}

func (r *recordingSink) TruncateOutcomes(keep int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.truncated = append(r.truncated, keep)
}

func outcome(id string, tt types.TaskType, mem float64) *types.TrainingRecord {
	task := &types.Task{ID: id, Type: tt, Description: "task " + id}
	return NewRecord(task, ExtractFeatures(task), types.ResourceUsage{
		MemoryMB:   mem,
		CPUSeconds: 10,
		Tokens:     1000,
		DurationMs: 5000,
	}, time.Now())
}

func TestStoreAppendAndStats(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(100, sink)

	s.Append(outcome("a", types.TaskTypeFix, 100))
	s.Append(outcome("b", types.TaskTypeFix, 300))
	s.Append(outcome("c", types.TaskTypeReview, 50))

	assert.Equal(t, 3, s.Count())
	assert.Len(t, sink.appended, 3)

	stat := s.TypeStats(types.TaskTypeFix, types.ResourceMemory)
	assert.Equal(t, 2, stat.Count)
	assert.InDelta(t, 200, stat.Mean, 1e-9)
	assert.InDelta(t, 141.421356, stat.Std, 1e-5)

	assert.Equal(t, TypeStat{}, s.TypeStats(types.TaskTypeScan, types.ResourceMemory))
}

func TestStoreVectors(t *testing.T) {
	s := NewStore(100, nil)
	s.Append(outcome("a", types.TaskTypeFix, 100))
	s.Append(outcome("b", types.TaskTypeTest, 200))

	bad := outcome("c", types.TaskTypeTest, -1)
	s.Append(bad)

	X, y := s.Vectors(types.ResourceMemory)
	require.Len(t, X, 2)
	assert.Equal(t, []float64{100, 200}, y)
	for _, row := range X {
		assert.Len(t, row, FeatureDim)
	}

	// Negative memory is skipped, but the CPU target of the same record is valid
	_, y = s.Vectors(types.ResourceCPU)
	assert.Len(t, y, 3)
}

func TestStoreRotation(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(20, sink)

	for i := 0; i < 21; i++ {
		s.Append(outcome(string(rune('a'+i)), types.TaskTypeFix, float64(i)))
	}

	assert.Equal(t, 18, s.Count())
	assert.Equal(t, []int{18}, sink.truncated)

	records := s.Records()
	assert.Equal(t, string(rune('a'+3)), records[0].TaskID, "oldest records are dropped first")

	stat := s.TypeStats(types.TaskTypeFix, types.ResourceMemory)
	assert.Equal(t, 18, stat.Count, "stats are rebuilt after rotation")
}

func TestStoreLoad(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(2, sink)

	s.Load([]*types.TrainingRecord{
		outcome("a", types.TaskTypeFix, 100),
		outcome("b", types.TaskTypeFix, 200),
		outcome("c", types.TaskTypeFix, 300),
	})

	assert.Equal(t, 2, s.Count())
	assert.Empty(t, sink.appended, "replay must not be written back")
	assert.InDelta(t, 250, s.TypeStats(types.TaskTypeFix, types.ResourceMemory).Mean, 1e-9)
}

func TestNewRecordTruncatesDescription(t *testing.T) {
	task := &types.Task{ID: "x", Type: types.TaskTypeDocumentation, Description: string(make([]byte, 500))}
	rec := NewRecord(task, ExtractFeatures(task), types.ResourceUsage{}, time.Now())
	assert.Len(t, rec.Description, DescriptionLimit)
	assert.Equal(t, types.TaskTypeDocumentation, rec.TaskType)
}
