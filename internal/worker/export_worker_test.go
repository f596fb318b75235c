package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

type fakeExporter struct {
	rows []core.Assignment
	ref  string
	err  error
}

func (f *fakeExporter) AppendAssignment(_ context.Context, a core.Assignment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, a)
	return f.ref, nil
}

func quietLogger() *log.Logger {
	return log.NewText(io.Discard, slog.LevelError, log.ComponentWorker)
}

func TestHandleEvent(t *testing.T) {
	a := core.Assignment{
		Name:           "Coffee",
		NormalizedName: "coffee",
		Amount:         3,
		CreatedAt:      core.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
	e := core.Entry{Name: "Coffee", NormalizedName: "coffee", CreatedAt: a.CreatedAt}

	tests := []struct {
		name     string
		event    *amqp.LedgerEvent
		ref      string
		exported int
	}{
		{"assignment exported", amqp.NewAssignmentRecordedEvent(a), "Assignments!A2:C2", 1},
		{"duplicate assignment", amqp.NewAssignmentRecordedEvent(a), "", 1},
		{"entry ignored", amqp.NewEntryCreatedEvent(e), "unused", 0},
		{"unknown type ignored", &amqp.LedgerEvent{Type: "entry.renamed"}, "unused", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &fakeExporter{ref: tt.ref}
			w := NewExportWorker(exp, quietLogger())
			if err := w.HandleEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}
			if len(exp.rows) != tt.exported {
				t.Fatalf("exported %d rows, want %d", len(exp.rows), tt.exported)
			}
		})
	}
}

func TestHandleEventExportFailure(t *testing.T) {
	boom := errors.New("sheets unavailable")
	w := NewExportWorker(&fakeExporter{err: boom}, quietLogger())

	event := amqp.NewAssignmentRecordedEvent(core.Assignment{Name: "Rent", NormalizedName: "rent", Amount: 900})
	if err := w.HandleEvent(context.Background(), event); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped export error, got %v", err)
	}
}
