package predictor

import (
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first n model saves
type flakyStore struct {
	*storage.MemoryStore
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyStore) SaveModel(state *types.ModelState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("disk busy")
	}
	return f.MemoryStore.SaveModel(state)
}

func testPersister(store storage.Store) *Persister {
	p := NewPersister(store)
	p.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	p.Start()
	return p
}

func TestPersisterRetries(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failures: 2}
	p := testPersister(store)
	defer p.Close()

	p.SaveModel(types.ModelState{Resource: types.ResourceCPU, Samples: 3})
	p.Flush()

	state, err := store.LoadModel(types.ResourceCPU)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Samples)
	assert.Equal(t, 3, store.attempts)
}

func TestPersisterGivesUp(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failures: 100}
	p := testPersister(store)
	defer p.Close()

	p.SaveModel(types.ModelState{Resource: types.ResourceCPU})
	p.Flush()

	_, err := store.LoadModel(types.ResourceCPU)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 4, store.attempts, "one attempt plus three retries")
}

func TestPersisterOrdering(t *testing.T) {
	store := storage.NewMemoryStore()
	p := testPersister(store)

	for i := 0; i < 10; i++ {
		p.AppendOutcome(&types.TrainingRecord{TaskID: string(rune('a' + i))})
	}
	p.TruncateOutcomes(4)
	p.Close()

	records, err := store.LoadOutcomes()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "g", records[0].TaskID)

	// Jobs after close are dropped without panicking
	p.AppendOutcome(&types.TrainingRecord{TaskID: "late"})
	p.Flush()
	p.Close()
}

func TestPersisterQueuesLedger(t *testing.T) {
	store := storage.NewMemoryStore()
	p := testPersister(store)
	defer p.Close()

	ledger := types.NewTokenLedger()
	ledger.Daily["2026-06-01"] = 1500
	require.NoError(t, p.SaveTokenLedger(ledger))
	p.Flush()

	got, err := p.LoadTokenLedger()
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got.Daily["2026-06-01"])
}
