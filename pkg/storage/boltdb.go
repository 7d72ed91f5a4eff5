package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/burrow/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketModels   = []byte("models")
	bucketOutcomes = []byte("outcomes")
	bucketLedger   = []byte("token_ledger")

	keyLedger = []byte("ledger")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := ensureDir(dataDir); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dataDir, "burrow.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketModels,
			bucketOutcomes,
			bucketLedger,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Model operations
func (s *BoltStore) SaveModel(state *types.ModelState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketModels)
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return b.Put([]byte(state.Resource), data)
	})
}

func (s *BoltStore) LoadModel(resource types.ResourceKind) (*types.ModelState, error) {
	var state types.ModelState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketModels)
		data := b.Get([]byte(resource))
		if data == nil {
			return fmt.Errorf("model %s: %w", resource, ErrNotFound)
		}
		if err := json.Unmarshal(data, &state); err != nil {
			return corrupt(fmt.Sprintf("model %s", resource), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Outcome operations. Keys are the bucket sequence in big-endian so the
// cursor walks records oldest first.
func (s *BoltStore) AppendOutcomes(records []*types.TrainingRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutcomes)
		for _, rec := range records {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(seqKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LoadOutcomes() ([]*types.TrainingRecord, error) {
	var records []*types.TrainingRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutcomes)
		return b.ForEach(func(k, v []byte) error {
			var rec types.TrainingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return corrupt(fmt.Sprintf("outcome %d", binary.BigEndian.Uint64(k)), err)
			}
			records = append(records, &rec)
			return nil
		})
	})
	return records, err
}

func (s *BoltStore) TruncateOutcomes(keep int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutcomes)
		excess := b.Stats().KeyN - keep
		if excess <= 0 {
			return nil
		}
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Token ledger operations
func (s *BoltStore) SaveTokenLedger(ledger *types.TokenLedger) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLedger)
		data, err := json.Marshal(ledger)
		if err != nil {
			return err
		}
		return b.Put(keyLedger, data)
	})
}

func (s *BoltStore) LoadTokenLedger() (*types.TokenLedger, error) {
	ledger := types.NewTokenLedger()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLedger)
		data := b.Get(keyLedger)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, ledger); err != nil {
			return corrupt("token ledger", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	normalizeLedger(ledger)
	return ledger, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
