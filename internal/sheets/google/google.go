package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var _ store.AssignmentWriter = (*Exporter)(nil)

// valuesAPI is the slice of the Sheets values API the exporter needs.
type valuesAPI interface {
	appendRow(ctx context.Context, rng string, row []any) (string, error)
	readRows(ctx context.Context, rng string) ([][]any, error)
}

// Exporter appends assignments as rows [createdAt, name, amount] to one
// sheet. Rows already present in the sheet are not appended twice, so
// redelivered events are harmless.
type Exporter struct {
	values    valuesAPI
	sheetName string

	mu     sync.Mutex
	seen   map[string]bool
	loaded bool
}

// NewExporter creates an exporter for the given spreadsheet and sheet,
// authenticating with service account credentials from the environment.
func NewExporter(ctx context.Context, spreadsheetID, sheetName string) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Assignments"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return newExporter(&sheetsValues{svc: svc, spreadsheetID: spreadsheetID}, sheetName), nil
}

func newExporter(values valuesAPI, sheetName string) *Exporter {
	return &Exporter{
		values:    values,
		sheetName: sheetName,
		seen:      make(map[string]bool),
	}
}

// newSheetsService initializes a Sheets Service. Service account credentials
// win; an OAuth client plus a saved token is the fallback.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	case hasOAuthClient():
		return newOAuthSheetsService(ctx)
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_CLIENT_JSON)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// AppendAssignment writes a as a new row and returns the updated range.
// An assignment already present in the sheet returns an empty reference.
func (e *Exporter) AppendAssignment(ctx context.Context, a core.Assignment) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadSeen(ctx); err != nil {
		return "", err
	}

	key := rowKey(a)
	if e.seen[key] {
		slog.InfoContext(ctx, "Assignment already exported, skipping",
			"name", a.Name,
			"created_at", a.CreatedAt.String())
		return "", nil
	}

	rng := fmt.Sprintf("%s!A:C", e.sheetName)
	ref, err := e.values.appendRow(ctx, rng, assignmentRow(a))
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", e.sheetName, err)
	}
	e.seen[key] = true
	return ref, nil
}

// ReadAssignments parses every valid row of the sheet. Header and
// malformed rows are skipped.
func (e *Exporter) ReadAssignments(ctx context.Context) ([]core.Assignment, error) {
	rows, err := e.values.readRows(ctx, fmt.Sprintf("%s!A:C", e.sheetName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.sheetName, err)
	}
	out, skipped := parseAssignmentRows(rows)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed sheet rows",
			"sheet", e.sheetName,
			"skipped", skipped)
	}
	return out, nil
}

// loadSeen reads the sheet once so redeliveries across restarts are detected.
func (e *Exporter) loadSeen(ctx context.Context) error {
	if e.loaded {
		return nil
	}
	rows, err := e.values.readRows(ctx, fmt.Sprintf("%s!A:C", e.sheetName))
	if err != nil {
		return fmt.Errorf("read %s: %w", e.sheetName, err)
	}
	existing, _ := parseAssignmentRows(rows)
	for _, a := range existing {
		e.seen[rowKey(a)] = true
	}
	e.loaded = true
	return nil
}

// rowKey identifies an exported row by timestamp, entry and amount, so two
// assignments to one entry in the same millisecond stay distinct unless
// their amounts match too.
func rowKey(a core.Assignment) string {
	normalized := a.NormalizedName
	if normalized == "" {
		normalized = core.NormalizeName(a.Name)
	}
	return a.CreatedAt.String() + "|" + normalized + "|" + strconv.FormatFloat(a.Amount, 'f', -1, 64)
}

// sheetsValues adapts *gsheet.Service to valuesAPI.
type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *sheetsValues) appendRow(ctx context.Context, rng string, row []any) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}

func (s *sheetsValues) readRows(ctx context.Context, rng string) ([][]any, error) {
	// Unformatted values return amounts as numbers, matching what was written.
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
