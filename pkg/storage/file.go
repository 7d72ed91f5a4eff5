package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/burrow/pkg/types"
)

const (
	modelsDirName   = "models"
	outcomesLogName = "outcomes.jsonl"
	ledgerFileName  = "token-usage.json"
)

// FileStore persists state as plain files under a data directory:
//
//	<dataDir>/models/<resource>.json   one model per resource dimension
//	<dataDir>/outcomes.jsonl           append-only outcome log
//	<dataDir>/token-usage.json         token ledger keyed by hour/day bucket
//
// Whole-document writes go through a temp file and rename so a crash never
// leaves a half-written model behind.
type FileStore struct {
	mu      sync.Mutex
	dataDir string
}

// NewFileStore creates a file-backed store rooted at dataDir
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := ensureDir(filepath.Join(dataDir, modelsDirName)); err != nil {
		return nil, err
	}
	return &FileStore{dataDir: dataDir}, nil
}

// DataDir returns the root directory of the store
func (s *FileStore) DataDir() string {
	return s.dataDir
}

func (s *FileStore) modelPath(resource types.ResourceKind) string {
	return filepath.Join(s.dataDir, modelsDirName, string(resource)+".json")
}

func (s *FileStore) SaveModel(state *types.ModelState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.modelPath(state.Resource), data)
}

func (s *FileStore) LoadModel(resource types.ResourceKind) (*types.ModelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.modelPath(resource)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("model %s: %w", resource, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var state types.ModelState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, corrupt(path, err)
	}
	return &state, nil
}

func (s *FileStore) AppendOutcomes(records []*types.TrainingRecord) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dataDir, outcomesLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open outcome log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to append outcomes: %w", err)
	}
	return f.Close()
}

func (s *FileStore) LoadOutcomes() ([]*types.TrainingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOutcomes()
}

func (s *FileStore) readOutcomes() ([]*types.TrainingRecord, error) {
	path := filepath.Join(s.dataDir, outcomesLogName)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome log: %w", err)
	}
	defer f.Close()

	var records []*types.TrainingRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec types.TrainingRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, corrupt(fmt.Sprintf("%s line %d", path, line), err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outcome log: %w", err)
	}
	return records, nil
}

func (s *FileStore) TruncateOutcomes(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readOutcomes()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	if len(records) <= keep {
		return nil
	}

	var buf bytes.Buffer
	for _, rec := range records[len(records)-keep:] {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return writeFileAtomic(filepath.Join(s.dataDir, outcomesLogName), buf.Bytes())
}

func (s *FileStore) SaveTokenLedger(ledger *types.TokenLedger) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(filepath.Join(s.dataDir, ledgerFileName), data)
}

func (s *FileStore) LoadTokenLedger() (*types.TokenLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dataDir, ledgerFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return types.NewTokenLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token ledger: %w", err)
	}

	ledger := types.NewTokenLedger()
	if err := json.Unmarshal(data, ledger); err != nil {
		return nil, corrupt(path, err)
	}
	normalizeLedger(ledger)
	return ledger, nil
}

func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

func normalizeLedger(l *types.TokenLedger) {
	if l.Hourly == nil {
		l.Hourly = make(map[string]float64)
	}
	if l.Daily == nil {
		l.Daily = make(map[string]float64)
	}
}
