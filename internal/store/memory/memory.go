package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu          sync.Mutex
	entries     []core.Entry
	assignments []core.Assignment
}

func New(entries []core.Entry) *Store {
	return &Store{entries: append([]core.Entry(nil), entries...)}
}

// NewFromFiles seeds entries from seed_entries.txt in base, one name per
// line. Blank lines, comments and case-insensitive duplicates are skipped.
func NewFromFiles(base string, clock core.Clock) *Store {
	var entries []core.Entry
	for _, name := range readLines(filepath.Join(base, "seed_entries.txt")) {
		_, next, err := core.EnsureUniqueEntry(entries, name, clock)
		if err != nil {
			continue
		}
		entries = next
	}
	return New(entries)
}

// AppendEntry stores the entry and returns a synthetic reference.
func (s *Store) AppendEntry(_ context.Context, e core.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return fmt.Sprintf("mem:entry:%d", len(s.entries)), nil
}

// AppendAssignment stores the assignment and returns a synthetic reference.
func (s *Store) AppendAssignment(_ context.Context, a core.Assignment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, a)
	return fmt.Sprintf("mem:assignment:%d", len(s.assignments)), nil
}

// Snapshot returns copies of the stored collections.
func (s *Store) Snapshot(_ context.Context) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Snapshot{
		Entries:     append([]core.Entry(nil), s.entries...),
		Assignments: append([]core.Assignment(nil), s.assignments...),
	}, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
