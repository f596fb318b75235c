// Package ledger hosts the ledger core: it owns the current collections,
// serializes read-then-write calls, persists every new record and
// announces it to an optional publisher.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishEntryCreated(ctx context.Context, e core.Entry) error
	PublishAssignmentRecorded(ctx context.Context, a core.Assignment) error
}

// Service orchestrates core operations across a store and a publisher.
type Service struct {
	mu          sync.RWMutex
	store       store.Store
	publisher   Publisher
	clock       core.Clock
	logger      *log.Logger
	events      *log.StructuredLogger
	entries     []core.Entry
	assignments []core.Assignment
	revision    uint64
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified after each successful write.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock sets the time source used for createdAt stamps.
func WithClock(c core.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Load replaces the in-memory state with the store's snapshot.
func (s *Service) Load(ctx context.Context) error {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = core.SortEntries(snap.Entries)
	s.assignments = append([]core.Assignment(nil), snap.Assignments...)
	s.revision++

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		"entries", len(s.entries),
		"assignments", len(s.assignments))
	return nil
}

// AddEntry creates a uniquely named entry.
func (s *Service) AddEntry(ctx context.Context, name string) (core.Entry, error) {
	s.mu.Lock()
	entry, entries, err := core.EnsureUniqueEntry(s.entries, name, s.clock)
	if err != nil {
		s.mu.Unlock()
		return core.Entry{}, err
	}
	ref, err := s.store.AppendEntry(ctx, entry)
	if err != nil {
		s.mu.Unlock()
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	s.entries = entries
	s.revision++
	s.mu.Unlock()

	s.events.LogEntryCreated(ctx, entry.Name, entry.NormalizedName, ref)

	if s.publisher != nil {
		if err := s.publisher.PublishEntryCreated(ctx, entry); err != nil {
			s.events.LogError(ctx, "Failed to publish entry event", err, log.ComponentAMQP, log.OpPublish,
				log.NewFields().WithEntry(entry.Name, entry.NormalizedName))
		}
	}
	return entry, nil
}

// Assign records amount against the entry matching name. amount may be a
// number or numeric text.
func (s *Service) Assign(ctx context.Context, name string, amount any) (core.Assignment, error) {
	s.mu.Lock()
	record, assignments, err := core.RecordAssignment(s.assignments, s.entries, name, amount, s.clock)
	if err != nil {
		s.mu.Unlock()
		return core.Assignment{}, err
	}
	ref, err := s.store.AppendAssignment(ctx, record)
	if err != nil {
		s.mu.Unlock()
		return core.Assignment{}, fmt.Errorf("save assignment: %w", err)
	}
	s.assignments = assignments
	s.revision++
	s.mu.Unlock()

	s.events.LogAssignmentRecorded(ctx, record.Name, record.NormalizedName, record.Amount, record.CreatedAt.String(), ref)

	if s.publisher != nil {
		if err := s.publisher.PublishAssignmentRecorded(ctx, record); err != nil {
			s.events.LogError(ctx, "Failed to publish assignment event", err, log.ComponentAMQP, log.OpPublish,
				log.NewFields().WithAssignment(record.Name, record.NormalizedName, record.Amount, record.CreatedAt.String()))
		}
	}
	return record, nil
}

// Entries returns the entries, most recently created first.
func (s *Service) Entries(_ context.Context) []core.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SortEntries(s.entries)
}

// Assignments returns every assignment in recording order.
func (s *Service) Assignments(_ context.Context) []core.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Assignment{}, s.assignments...)
}

// Totals returns per-entry sums ordered by name.
func (s *Service) Totals(_ context.Context) []core.Total {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CalculateTotals(s.assignments)
}

// Recent returns up to limit assignments, newest first.
func (s *Service) Recent(_ context.Context, limit int) []core.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.RecentAssignments(s.assignments, limit)
}

// Revision increases with every state change; caches key on it.
func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Close releases the store and publisher when they hold resources.
func (s *Service) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	return errors.Join(errs...)
}
