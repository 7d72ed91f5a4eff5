package training

import (
	"math"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/ml"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultMaxRecords bounds the in-memory and durable outcome log
const DefaultMaxRecords = 10000

// Sink receives outcome records for durable storage. Implementations are
// expected to return quickly; the predictor's persister queues the work.
type Sink interface {
	AppendOutcome(record *types.TrainingRecord)
	TruncateOutcomes(keep int)
}

// TypeStat summarizes observed actuals of one resource for one task type
type TypeStat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// Store is the append-only training log with per-type running statistics.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	records    []*types.TrainingRecord
	stats      map[types.TaskType]map[types.ResourceKind]*ml.RunningStats
	maxRecords int
	sink       Sink
	logger     zerolog.Logger
}

// NewStore creates an empty store. A nil sink keeps records in memory only.
func NewStore(maxRecords int, sink Sink) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Store{
		stats:      make(map[types.TaskType]map[types.ResourceKind]*ml.RunningStats),
		maxRecords: maxRecords,
		sink:       sink,
		logger:     log.WithComponent("training"),
	}
}

// NewRecord builds an immutable outcome record for task
func NewRecord(task *types.Task, features types.Features, actual types.ResourceUsage, now time.Time) *types.TrainingRecord {
	return &types.TrainingRecord{
		TaskID:      task.ID,
		Timestamp:   now,
		TaskType:    task.Type,
		Features:    features,
		Actual:      actual,
		Description: TruncateDescription(task.Description),
	}
}

// Load replays persisted records without writing them back to the sink
func (s *Store) Load(records []*types.TrainingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) > s.maxRecords {
		records = records[len(records)-s.maxRecords:]
	}
	s.records = append(s.records[:0], records...)
	s.rebuildStats()
}

// Append adds a record, updates the type statistics and forwards the
// record to the sink. The log rotates once it exceeds the record limit.
func (s *Store) Append(record *types.TrainingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	s.observe(record)
	if s.sink != nil {
		s.sink.AppendOutcome(record)
	}

	if len(s.records) > s.maxRecords {
		s.rotate()
	}
}

// rotate drops the oldest tenth of the log so rotation is amortized over
// many appends. Statistics are rebuilt from what remains.
func (s *Store) rotate() {
	keep := s.maxRecords - s.maxRecords/10
	if keep < 1 {
		keep = 1
	}
	dropped := len(s.records) - keep
	s.records = append([]*types.TrainingRecord(nil), s.records[dropped:]...)
	s.rebuildStats()
	if s.sink != nil {
		s.sink.TruncateOutcomes(keep)
	}
	s.logger.Info().
		Int("dropped", dropped).
		Int("kept", keep).
		Msg("Rotated training log")
}

func (s *Store) rebuildStats() {
	s.stats = make(map[types.TaskType]map[types.ResourceKind]*ml.RunningStats)
	for _, rec := range s.records {
		s.observe(rec)
	}
}

func (s *Store) observe(rec *types.TrainingRecord) {
	byResource, ok := s.stats[rec.TaskType]
	if !ok {
		byResource = make(map[types.ResourceKind]*ml.RunningStats)
		s.stats[rec.TaskType] = byResource
	}
	for _, kind := range types.ResourceKinds {
		v := rec.Actual.Get(kind)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		rs, ok := byResource[kind]
		if !ok {
			rs = &ml.RunningStats{}
			byResource[kind] = rs
		}
		rs.Add(v)
	}
}

// Count returns the number of records currently held
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns the held records, oldest first
func (s *Store) Records() []*types.TrainingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*types.TrainingRecord(nil), s.records...)
}

// TypeStats returns the running statistics for a task type and resource
func (s *Store) TypeStats(taskType types.TaskType, resource types.ResourceKind) TypeStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typeStat(taskType, resource)
}

func (s *Store) typeStat(taskType types.TaskType, resource types.ResourceKind) TypeStat {
	rs, ok := s.stats[taskType][resource]
	if !ok {
		return TypeStat{}
	}
	return TypeStat{Count: rs.N, Mean: rs.Mean, Std: rs.Std()}
}

// Vectors builds the training matrix for one resource dimension. Records
// with a non-finite or negative target are skipped.
func (s *Store) Vectors(resource types.ResourceKind) ([][]float64, []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	X := make([][]float64, 0, len(s.records))
	y := make([]float64, 0, len(s.records))
	for _, rec := range s.records {
		target := rec.Actual.Get(resource)
		if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
			continue
		}
		X = append(X, Vector(rec.Features, s.typeStat(rec.TaskType, resource), resource))
		y = append(y, target)
	}
	return X, y
}
