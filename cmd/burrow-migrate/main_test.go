package main

import (
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s storage.Store) {
	t.Helper()
	require.NoError(t, s.SaveModel(&types.ModelState{Resource: types.ResourceMemory, Weights: []float64{0.5, 1.5}, Samples: 60}))
	require.NoError(t, s.SaveModel(&types.ModelState{Resource: types.ResourceTokens, Weights: []float64{2}, Samples: 60}))

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendOutcomes([]*types.TrainingRecord{
		{TaskID: "a", Timestamp: now, TaskType: types.TaskTypeFix, Actual: types.ResourceUsage{MemoryMB: 500}},
		{TaskID: "b", Timestamp: now.Add(time.Minute), TaskType: types.TaskTypeReview, Actual: types.ResourceUsage{MemoryMB: 400}},
	}))

	ledger := types.NewTokenLedger()
	ledger.Hourly["2026-05-04T10"] = 1200
	ledger.Daily["2026-05-04"] = 5400
	require.NoError(t, s.SaveTokenLedger(ledger))
}

func TestMigrateFileToBolt(t *testing.T) {
	src, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer src.Close()
	seed(t, src)

	dst, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer dst.Close()

	summary, err := migrate(src, dst)
	require.NoError(t, err)
	assert.Equal(t, Summary{Models: 2, Outcomes: 2, LedgerBuckets: 2}, summary)

	model, err := dst.LoadModel(types.ResourceMemory)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, model.Weights)

	_, err = dst.LoadModel(types.ResourceCPU)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := dst.LoadOutcomes()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].TaskID)
	assert.Equal(t, "b", records[1].TaskID)

	ledger, err := dst.LoadTokenLedger()
	require.NoError(t, err)
	assert.Equal(t, 5400.0, ledger.Daily["2026-05-04"])
}

func TestMigrateDryRunCountsOnly(t *testing.T) {
	src := storage.NewMemoryStore()
	seed(t, src)

	summary, err := migrate(src, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Models)
	assert.Equal(t, 2, summary.Outcomes)
}
