package storage

import (
	"errors"
	"fmt"

	"github.com/cuemby/burrow/pkg/types"
)

var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when a persisted document cannot be decoded
	ErrCorrupt = errors.New("corrupt document")
)

// Store is the storage port for the scheduler's durable state: one model
// per resource dimension, the append-only outcome log and the token ledger.
// Implementations must be safe for concurrent use.
type Store interface {
	// Models
	SaveModel(state *types.ModelState) error
	LoadModel(resource types.ResourceKind) (*types.ModelState, error)

	// Outcome log (append-only, oldest first)
	AppendOutcomes(records []*types.TrainingRecord) error
	LoadOutcomes() ([]*types.TrainingRecord, error)
	TruncateOutcomes(keep int) error

	// Token ledger
	SaveTokenLedger(ledger *types.TokenLedger) error
	LoadTokenLedger() (*types.TokenLedger, error)

	// Utility
	Close() error
}

// Backend names a Store implementation
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendBolt   Backend = "bolt"
)

// Open creates the store for the given backend rooted at dataDir
func Open(backend Backend, dataDir string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(dataDir)
	case BackendBolt:
		return NewBoltStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
}
