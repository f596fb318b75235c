package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
)

func TestSnapshotMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ledger.json"))
	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Entries) != 0 || len(snap.Assignments) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestAppendPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.json")
	ctx := context.Background()
	at := core.NewTimestamp(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	s := New(path)
	if ref, err := s.AppendEntry(ctx, core.Entry{Name: "Alice", NormalizedName: "alice", CreatedAt: at}); err != nil || ref != "json:entry:1" {
		t.Fatalf("append entry: ref=%q err=%v", ref, err)
	}
	if ref, err := s.AppendAssignment(ctx, core.Assignment{Name: "Alice", NormalizedName: "alice", Amount: 15.5, CreatedAt: at}); err != nil || ref != "json:assignment:1" {
		t.Fatalf("append assignment: ref=%q err=%v", ref, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"createdAt": "2024-01-01T12:00:00.000Z"`) {
		t.Fatalf("unexpected file contents: %s", raw)
	}

	snap, err := New(path).Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].Name != "Alice" {
		t.Fatalf("unexpected entries: %+v", snap.Entries)
	}
	if len(snap.Assignments) != 1 || snap.Assignments[0].Amount != 15.5 || !snap.Assignments[0].CreatedAt.Equal(at.Time) {
		t.Fatalf("unexpected assignments: %+v", snap.Assignments)
	}
}

func TestSnapshotRejectsMalformedCollections(t *testing.T) {
	cases := []struct {
		content string
		code    core.Code
	}{
		{`{"entries": {"name": "x"}}`, core.CodeEntryInvalidCollection},
		{`{"entries": [], "assignments": "nope"}`, core.CodeAssignInvalidCollection},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "ledger.json")
		if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := New(path).Snapshot(context.Background())
		if core.CodeOf(err) != tc.code {
			t.Fatalf("%s: expected %s, got %v", tc.content, tc.code, err)
		}
	}
}
