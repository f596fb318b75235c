package store

import (
	"context"

	"ledger/internal/core"
)

// Ports for persistence adapters.
type (
	EntryWriter interface {
		// AppendEntry persists a newly created entry and returns a backend reference.
		AppendEntry(ctx context.Context, e core.Entry) (ref string, err error)
	}

	AssignmentWriter interface {
		// AppendAssignment persists a newly recorded assignment and returns a backend reference.
		AppendAssignment(ctx context.Context, a core.Assignment) (ref string, err error)
	}

	// SnapshotReader loads the full ledger state.
	SnapshotReader interface {
		// Snapshot returns all entries and all assignments in insertion order.
		Snapshot(ctx context.Context) (Snapshot, error)
	}

	// Store is implemented by every backend.
	Store interface {
		EntryWriter
		AssignmentWriter
		SnapshotReader
	}

	// Snapshot is the persisted state of a ledger.
	Snapshot struct {
		Entries     []core.Entry      `json:"entries"`
		Assignments []core.Assignment `json:"assignments"`
	}
)
