package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendEntry implements store.EntryWriter. A second entry with the same
// normalized name is rejected by the unique index and reported as
// core.ErrEntryDuplicate.
func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.Entry) (string, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (name, normalized_name, created_at) VALUES (?, ?, ?)`,
		e.Name, e.NormalizedName, e.CreatedAt.String())
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("create entry: %w", core.ErrEntryDuplicate)
		}
		return "", fmt.Errorf("create entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("entry id: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", id,
		"name", e.Name,
		"normalized_name", e.NormalizedName)

	return strconv.FormatInt(id, 10), nil
}

// AppendAssignment implements store.AssignmentWriter
func (r *SQLiteRepository) AppendAssignment(ctx context.Context, a core.Assignment) (string, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO assignments (name, normalized_name, amount, created_at) VALUES (?, ?, ?, ?)`,
		a.Name, a.NormalizedName, a.Amount, a.CreatedAt.String())
	if err != nil {
		return "", fmt.Errorf("create assignment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("assignment id: %w", err)
	}

	slog.InfoContext(ctx, "Assignment saved to SQLite",
		"id", id,
		"name", a.Name,
		"amount", a.Amount,
		"created_at", a.CreatedAt.String())

	return strconv.FormatInt(id, 10), nil
}

// Snapshot implements store.SnapshotReader
func (r *SQLiteRepository) Snapshot(ctx context.Context) (store.Snapshot, error) {
	entries, err := r.listEntries(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	assignments, err := r.listAssignments(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Entries: entries, Assignments: assignments}, nil
}

func (r *SQLiteRepository) listEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, normalized_name, created_at FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			e         core.Entry
			createdAt string
		)
		if err := rows.Scan(&e.Name, &e.NormalizedName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CreatedAt, err = core.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) listAssignments(ctx context.Context) ([]core.Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, normalized_name, amount, created_at FROM assignments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []core.Assignment
	for rows.Next() {
		var (
			a         core.Assignment
			createdAt string
		)
		if err := rows.Scan(&a.Name, &a.NormalizedName, &a.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if a.CreatedAt, err = core.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("assignment %q: %w", a.Name, err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
