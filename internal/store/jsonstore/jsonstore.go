package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ledger/internal/core"
	"ledger/internal/store"
)

// JSON-backed storage. Single file, human-readable, portable.
// The mutex serializes writers inside one process only.

var _ store.Store = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	path string
}

type fileFormat struct {
	Entries     json.RawMessage `json:"entries"`
	Assignments json.RawMessage `json:"assignments"`
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Snapshot(_ context.Context) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) AppendEntry(_ context.Context, e core.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load()
	if err != nil {
		return "", err
	}
	snap.Entries = append(snap.Entries, e)
	if err := s.save(snap); err != nil {
		return "", err
	}
	return fmt.Sprintf("json:entry:%d", len(snap.Entries)), nil
}

func (s *Store) AppendAssignment(_ context.Context, a core.Assignment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load()
	if err != nil {
		return "", err
	}
	snap.Assignments = append(snap.Assignments, a)
	if err := s.save(snap); err != nil {
		return "", err
	}
	return fmt.Sprintf("json:assignment:%d", len(snap.Assignments)), nil
}

func (s *Store) load() (store.Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.Snapshot{}, nil
		}
		return store.Snapshot{}, fmt.Errorf("read file: %w", err)
	}
	var raw fileFormat
	if err := json.Unmarshal(b, &raw); err != nil {
		return store.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}

	var snap store.Snapshot
	if len(raw.Entries) > 0 {
		if snap.Entries, err = core.DecodeEntries(raw.Entries, core.CodeEntryInvalidCollection); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode entries: %w", err)
		}
	}
	if len(raw.Assignments) > 0 {
		if snap.Assignments, err = core.DecodeAssignments(raw.Assignments, core.CodeAssignInvalidCollection); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode assignments: %w", err)
		}
	}
	return snap, nil
}

func (s *Store) save(snap store.Snapshot) error {
	if snap.Entries == nil {
		snap.Entries = []core.Entry{}
	}
	if snap.Assignments == nil {
		snap.Assignments = []core.Assignment{}
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
