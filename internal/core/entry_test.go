package core

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

func mustTimestamp(t *testing.T, s string) Timestamp {
	t.Helper()
	return NewTimestamp(mustTime(t, s))
}

func TestSanitizeAndNormalizeName(t *testing.T) {
	cases := []struct {
		in        string
		sanitized string
		key       string
	}{
		{" Alice ", "Alice", "alice"},
		{"BOB", "BOB", "bob"},
		{"\tCarol Smith\n", "Carol Smith", "carol smith"},
	}
	for _, tc := range cases {
		got, err := SanitizeName(tc.in)
		if err != nil || got != tc.sanitized {
			t.Fatalf("SanitizeName(%q) = %q, %v; want %q", tc.in, got, err, tc.sanitized)
		}
		key := NormalizeName(got)
		if key != tc.key {
			t.Fatalf("NormalizeName(%q) = %q; want %q", got, key, tc.key)
		}
		if again := NormalizeName(key); again != key {
			t.Fatalf("normalization not idempotent: %q -> %q", key, again)
		}
	}

	if _, err := SanitizeName("   "); !errors.Is(err, ErrEntryEmpty) {
		t.Fatalf("expected ErrEntryEmpty, got %v", err)
	}
}

func TestNameFromValue(t *testing.T) {
	if s, err := NameFromValue("Bob"); err != nil || s != "Bob" {
		t.Fatalf("unexpected: %q %v", s, err)
	}
	for _, v := range []any{nil, 42, 1.5, []string{"x"}} {
		if _, err := NameFromValue(v); CodeOf(err) != CodeEntryInvalidType {
			t.Fatalf("%v: expected ENTRY_INVALID_TYPE, got %v", v, err)
		}
	}
}

func TestEnsureUniqueEntryCreatesEntry(t *testing.T) {
	now := mustTime(t, "2024-01-01T12:00:00Z")
	entry, entries, err := EnsureUniqueEntry(nil, " Alice ", FixedClock(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Name != "Alice" || entry.NormalizedName != "alice" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if got := entry.CreatedAt.String(); got != "2024-01-01T12:00:00.000Z" {
		t.Fatalf("createdAt = %q", got)
	}
	if len(entries) != 1 || entries[0] != entry {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestEnsureUniqueEntryRejectsDuplicates(t *testing.T) {
	existing := []Entry{
		{Name: "Alice", NormalizedName: "alice", CreatedAt: mustTimestamp(t, "2024-01-01T12:00:00Z")},
	}
	for _, name := range []string{"alice", "ALICE", "  Alice\t"} {
		_, _, err := EnsureUniqueEntry(existing, name, nil)
		if !errors.Is(err, ErrEntryDuplicate) {
			t.Fatalf("%q: expected ErrEntryDuplicate, got %v", name, err)
		}
	}
}

func TestEnsureUniqueEntryRejectsEmpty(t *testing.T) {
	_, _, err := EnsureUniqueEntry(nil, "  ", nil)
	if CodeOf(err) != CodeEntryEmpty {
		t.Fatalf("expected ENTRY_EMPTY, got %v", err)
	}
}

func TestEnsureUniqueEntryOrdersAndDoesNotMutate(t *testing.T) {
	existing := []Entry{
		{Name: "Old", NormalizedName: "old", CreatedAt: mustTimestamp(t, "2024-01-01T00:00:00Z")},
		{Name: "Newer", NormalizedName: "newer", CreatedAt: mustTimestamp(t, "2024-01-03T00:00:00Z")},
		{Name: "Mid", NormalizedName: "mid", CreatedAt: mustTimestamp(t, "2024-01-02T00:00:00Z")},
	}
	snapshot := append([]Entry(nil), existing...)

	_, entries, err := EnsureUniqueEntry(existing, "Fresh", FixedClock(mustTime(t, "2024-02-01T00:00:00Z")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Fresh", "Newer", "Mid", "Old"}
	if len(entries) != len(want) {
		t.Fatalf("len = %d, want %d", len(entries), len(want))
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].Name, name)
		}
	}
	for i := range existing {
		if existing[i] != snapshot[i] {
			t.Fatalf("input mutated at %d: %+v", i, existing[i])
		}
	}
}

func TestEnsureUniqueEntryUsesCurrentTimeForZeroClock(t *testing.T) {
	before := time.Now().Add(-time.Second)
	entry, _, err := EnsureUniqueEntry(nil, "Dana", FixedClock(time.Time{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.CreatedAt.Before(before) {
		t.Fatalf("expected current time, got %s", entry.CreatedAt)
	}
}

func TestSortEntriesIsStable(t *testing.T) {
	same := mustTimestamp(t, "2024-01-01T00:00:00Z")
	entries := []Entry{
		{Name: "A", CreatedAt: same},
		{Name: "B", CreatedAt: mustTimestamp(t, "2024-01-05T00:00:00Z")},
		{Name: "C", CreatedAt: same},
		{Name: "D", CreatedAt: same},
	}
	got := SortEntries(entries)
	want := []string{"B", "A", "C", "D"}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("got[%d] = %q, want %q", i, got[i].Name, name)
		}
	}
	if entries[0].Name != "A" || entries[1].Name != "B" {
		t.Fatalf("input mutated: %+v", entries)
	}
}

func TestResolveEntryFirstMatchWins(t *testing.T) {
	entries := []Entry{
		{Name: "Bob", NormalizedName: "bob"},
		{Name: "BOB", NormalizedName: "bob"},
	}
	e, err := ResolveEntry(entries, "  bOb ")
	if err != nil || e.Name != "Bob" {
		t.Fatalf("unexpected: %+v %v", e, err)
	}
	if _, err := ResolveEntry(entries, "carol"); !errors.Is(err, ErrAssignUnknownEntry) {
		t.Fatalf("expected ErrAssignUnknownEntry, got %v", err)
	}
}
