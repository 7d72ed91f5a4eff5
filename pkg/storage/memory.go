package storage

import (
	"fmt"
	"sync"

	"github.com/cuemby/burrow/pkg/types"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by deployments that accept losing learned state on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	models   map[types.ResourceKind]*types.ModelState
	outcomes []*types.TrainingRecord
	ledger   *types.TokenLedger
	closed   bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models: make(map[types.ResourceKind]*types.ModelState),
		ledger: types.NewTokenLedger(),
	}
}

func (s *MemoryStore) SaveModel(state *types.ModelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[state.Resource] = copyModel(state)
	return nil
}

func (s *MemoryStore) LoadModel(resource types.ResourceKind) (*types.ModelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.models[resource]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", resource, ErrNotFound)
	}
	return copyModel(state), nil
}

func (s *MemoryStore) AppendOutcomes(records []*types.TrainingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		c := *rec
		s.outcomes = append(s.outcomes, &c)
	}
	return nil
}

func (s *MemoryStore) LoadOutcomes() ([]*types.TrainingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.TrainingRecord, len(s.outcomes))
	for i, rec := range s.outcomes {
		c := *rec
		out[i] = &c
	}
	return out, nil
}

func (s *MemoryStore) TruncateOutcomes(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	if len(s.outcomes) > keep {
		s.outcomes = append([]*types.TrainingRecord(nil), s.outcomes[len(s.outcomes)-keep:]...)
	}
	return nil
}

func (s *MemoryStore) SaveTokenLedger(ledger *types.TokenLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = ledger.Copy()
	return nil
}

func (s *MemoryStore) LoadTokenLedger() (*types.TokenLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Copy(), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyModel(state *types.ModelState) *types.ModelState {
	c := *state
	c.Weights = append([]float64(nil), state.Weights...)
	c.FeatureMeans = append([]float64(nil), state.FeatureMeans...)
	c.FeatureM2 = append([]float64(nil), state.FeatureM2...)
	return &c
}
