package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
	"ledger/internal/store/memory"
)

type fakePublisher struct {
	mu          sync.Mutex
	entries     []core.Entry
	assignments []core.Assignment
	err         error
	closed      bool
}

func (p *fakePublisher) PublishEntryCreated(_ context.Context, e core.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return p.err
}

func (p *fakePublisher) PublishAssignmentRecorded(_ context.Context, a core.Assignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assignments = append(p.assignments, a)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type failingStore struct{ store.Store }

func (failingStore) AppendEntry(context.Context, core.Entry) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) AppendAssignment(context.Context, core.Assignment) (string, error) {
	return "", errors.New("disk full")
}

func quietLogger() *log.Logger {
	return log.NewText(io.Discard, slog.LevelError, log.ComponentApp)
}

func tickingClock(start time.Time) core.Clock {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Hour)
		return t
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New(nil)
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithClock(tickingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
	}, opts...)
	return NewService(st, opts...), st
}

func TestServiceAddEntryAndAssign(t *testing.T) {
	pub := &fakePublisher{}
	svc, st := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	for _, name := range []string{" Alice ", "Bob"} {
		if _, err := svc.AddEntry(ctx, name); err != nil {
			t.Fatalf("add %q: %v", name, err)
		}
	}
	if _, err := svc.AddEntry(ctx, "ALICE"); !errors.Is(err, core.ErrEntryDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	rec, err := svc.Assign(ctx, "bob", "15.5")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if rec.Name != "Bob" || rec.Amount != 15.5 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := svc.Assign(ctx, "alice", 4.5); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Assign(ctx, "carol", 1); !errors.Is(err, core.ErrAssignUnknownEntry) {
		t.Fatalf("expected unknown entry, got %v", err)
	}

	entries := svc.Entries(ctx)
	if len(entries) != 2 || entries[0].Name != "Bob" || entries[1].Name != "Alice" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	totals := svc.Totals(ctx)
	if len(totals) != 2 || totals[0].Name != "Alice" || totals[0].Total != 4.5 || totals[1].Total != 15.5 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	recent := svc.Recent(ctx, 1)
	if len(recent) != 1 || recent[0].Name != "Alice" {
		t.Fatalf("unexpected recent: %+v", recent)
	}

	snap, _ := st.Snapshot(ctx)
	if len(snap.Entries) != 2 || len(snap.Assignments) != 2 {
		t.Fatalf("store not updated: %+v", snap)
	}
	if len(pub.entries) != 2 || len(pub.assignments) != 2 {
		t.Fatalf("unexpected published events: %d entries, %d assignments", len(pub.entries), len(pub.assignments))
	}
	if svc.Revision() != 4 {
		t.Fatalf("revision = %d, want 4", svc.Revision())
	}
}

func TestServicePublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, WithPublisher(pub))

	if _, err := svc.AddEntry(context.Background(), "Alice"); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
	if len(svc.Entries(context.Background())) != 1 {
		t.Fatalf("entry not kept")
	}
}

func TestServiceStoreFailureKeepsState(t *testing.T) {
	svc := NewService(failingStore{Store: memory.New(nil)}, WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := svc.AddEntry(ctx, "Alice"); err == nil {
		t.Fatalf("expected store error")
	}
	if len(svc.Entries(ctx)) != 0 || svc.Revision() != 0 {
		t.Fatalf("state changed after failed write")
	}
}

func TestServiceLoad(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)
	older := core.NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := core.NewTimestamp(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	st.AppendEntry(ctx, core.Entry{Name: "Old", NormalizedName: "old", CreatedAt: older})
	st.AppendEntry(ctx, core.Entry{Name: "New", NormalizedName: "new", CreatedAt: newer})
	st.AppendAssignment(ctx, core.Assignment{Name: "Old", NormalizedName: "old", Amount: 2, CreatedAt: newer})

	svc := NewService(st, WithLogger(quietLogger()))
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	entries := svc.Entries(ctx)
	if len(entries) != 2 || entries[0].Name != "New" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if _, err := svc.AddEntry(ctx, "old"); !errors.Is(err, core.ErrEntryDuplicate) {
		t.Fatalf("loaded entries not used for uniqueness: %v", err)
	}
	if len(svc.Assignments(ctx)) != 1 {
		t.Fatalf("assignments not loaded")
	}
}

func TestServiceConcurrentAddsStayUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddEntry(ctx, "Shared"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 || len(svc.Entries(ctx)) != 1 {
		t.Fatalf("expected exactly one entry, got success=%d entries=%d", success, len(svc.Entries(ctx)))
	}
}

func TestServiceClose(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, WithPublisher(pub))
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Fatalf("publisher not closed")
	}
}
