package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/store/memory"
)

func quietLogger() *log.Logger {
	return log.NewText(io.Discard, slog.LevelError, log.ComponentHTTP)
}

func tickingClock() core.Clock {
	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	svc := ledger.NewService(memory.New(nil),
		ledger.WithClock(tickingClock()),
		ledger.WithLogger(quietLogger()))
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}

	notReady := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rr := do(t, notReady, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable || decodeError(t, rr).Code != CodeNotReady {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}

func TestCreateEntry(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/v1/entries", `{"name":"  Coffee "}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var entry core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Name != "Coffee" || entry.NormalizedName != "coffee" || entry.CreatedAt.IsZero() {
		t.Fatalf("unexpected entry %+v", entry)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", `{"name":"COFFEE"}`, http.StatusConflict, string(core.CodeEntryDuplicate)},
		{"empty", `{"name":"   "}`, http.StatusBadRequest, string(core.CodeEntryEmpty)},
		{"not a string", `{"name":42}`, http.StatusBadRequest, string(core.CodeEntryInvalidType)},
		{"missing name", `{}`, http.StatusBadRequest, string(core.CodeEntryInvalidType)},
		{"malformed", `{"name":`, http.StatusBadRequest, CodeInvalidRequest},
		{"array body", `["Coffee"]`, http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/v1/entries", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if got := decodeError(t, rr).Code; got != tt.code {
				t.Fatalf("code=%s want %s", got, tt.code)
			}
		})
	}

	rr = do(t, srv, http.MethodGet, "/v1/entries", "")
	var list entriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(list.Entries))
	}
}

func TestCreateAssignment(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/v1/entries", `{"name":"Rent"}`)

	rr := do(t, srv, http.MethodPost, "/v1/assignments", `{"name":"rent","amount":"12.5 EUR"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("assign status=%d body=%s", rr.Code, rr.Body.String())
	}
	var record core.Assignment
	if err := json.Unmarshal(rr.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}
	if record.Name != "Rent" || record.Amount != 12.5 {
		t.Fatalf("unexpected assignment %+v", record)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown entry", `{"name":"Food","amount":1}`, http.StatusNotFound, string(core.CodeAssignUnknownEntry)},
		{"bad amount", `{"name":"Rent","amount":"abc"}`, http.StatusBadRequest, string(core.CodeAssignInvalidNumber)},
		{"missing amount", `{"name":"Rent"}`, http.StatusBadRequest, string(core.CodeAssignInvalidNumber)},
		{"bool amount", `{"name":"Rent","amount":true}`, http.StatusBadRequest, string(core.CodeAssignInvalidNumber)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/v1/assignments", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if got := decodeError(t, rr).Code; got != tt.code {
				t.Fatalf("code=%s want %s", got, tt.code)
			}
		})
	}
}

func TestTotalsFollowRevisions(t *testing.T) {
	srv := newTestServer(t, Options{CacheTTL: time.Hour})
	do(t, srv, http.MethodPost, "/v1/entries", `{"name":"Rent"}`)
	do(t, srv, http.MethodPost, "/v1/entries", `{"name":"Coffee"}`)
	do(t, srv, http.MethodPost, "/v1/assignments", `{"name":"Rent","amount":100}`)

	totalOf := func(name string) float64 {
		rr := do(t, srv, http.MethodGet, "/v1/totals", "")
		var resp totalsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode totals: %v", err)
		}
		for _, tot := range resp.Totals {
			if tot.Name == name {
				return tot.Total
			}
		}
		return 0
	}

	if got := totalOf("Rent"); got != 100 {
		t.Fatalf("Rent total = %v, want 100", got)
	}
	do(t, srv, http.MethodPost, "/v1/assignments", `{"name":"Rent","amount":0.5}`)
	if got := totalOf("Rent"); got != 100.5 {
		t.Fatalf("Rent total after write = %v, want 100.5", got)
	}
}

func TestRecent(t *testing.T) {
	srv := newTestServer(t, Options{RecentLimit: 2})
	do(t, srv, http.MethodPost, "/v1/entries", `{"name":"Coffee"}`)
	for _, amount := range []string{"1", "2", "3"} {
		do(t, srv, http.MethodPost, "/v1/assignments", `{"name":"Coffee","amount":`+amount+`}`)
	}

	tests := []struct {
		path  string
		count int
		first float64
	}{
		{"/v1/assignments/recent", 2, 3},
		{"/v1/assignments/recent?limit=1", 1, 3},
		{"/v1/assignments/recent?limit=0", 3, 3},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodGet, tt.path, "")
		var resp assignmentsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", tt.path, err)
		}
		if len(resp.Assignments) != tt.count || resp.Assignments[0].Amount != tt.first {
			t.Fatalf("%s: got %+v", tt.path, resp.Assignments)
		}
	}

	rr := do(t, srv, http.MethodGet, "/v1/assignments/recent?limit=ten", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit status=%d", rr.Code)
	}
}

func TestComputeEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	body := `[
		{"name":"Rent","normalizedName":"rent","amount":10,"createdAt":"2024-01-01T00:00:00.000Z"},
		{"name":"rent","amount":5,"createdAt":"2024-01-02T00:00:00.000Z"},
		{"name":"Coffee","normalizedName":"coffee","amount":2,"createdAt":"2024-01-03T00:00:00.000Z"}
	]`

	rr := do(t, srv, http.MethodPost, "/v1/compute/totals", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("compute totals status=%d body=%s", rr.Code, rr.Body.String())
	}
	var totals totalsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(totals.Totals) != 2 || totals.Totals[0].Name != "Coffee" || totals.Totals[1].Total != 15 {
		t.Fatalf("unexpected totals %+v", totals.Totals)
	}

	rr = do(t, srv, http.MethodPost, "/v1/compute/recent?limit=1", body)
	var recent assignmentsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &recent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recent.Assignments) != 1 || recent.Assignments[0].Name != "Coffee" {
		t.Fatalf("unexpected recent %+v", recent.Assignments)
	}

	for _, bad := range []string{`{"name":"x"}`, `null`, `[1,`} {
		rr := do(t, srv, http.MethodPost, "/v1/compute/totals", bad)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", bad, rr.Code)
		}
		if got := decodeError(t, rr).Code; got != string(core.CodeSummaryInvalidCollection) {
			t.Fatalf("%s: code=%s", bad, got)
		}
	}
}

func TestMethodAndRouteErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodDelete, "/v1/entries", "")
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "GET, POST" {
		t.Fatalf("DELETE status=%d allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
	rr = do(t, srv, http.MethodGet, "/v1/compute/totals", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET compute status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/v2/nothing", "")
	if rr.Code != http.StatusNotFound || decodeError(t, rr).Code != CodeNotFound {
		t.Fatalf("unknown route status=%d", rr.Code)
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{WriteLimit: 2})
	for i, name := range []string{"a", "b"} {
		rr := do(t, srv, http.MethodPost, "/v1/entries", `{"name":"`+name+`"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/v1/entries", `{"name":"c"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("third write status=%d", rr.Code)
	}
	// Reads are not limited
	if rr := do(t, srv, http.MethodGet, "/v1/entries", ""); rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, Options{WriteLimit: 2})
	do(t, srv, http.MethodPost, "/v1/entries", `{"name":"Rent"}`)
	do(t, srv, http.MethodPost, "/v1/assignments", `{"name":"Rent","amount":10}`)
	if rr := do(t, srv, http.MethodPost, "/v1/entries", `{"name":"Coffee"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status=%d", rr.Code)
	}
	do(t, srv, http.MethodGet, "/v1/entries?file=../../etc/passwd", "")
	do(t, srv, http.MethodGet, "/v1/totals", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"# TYPE http_requests_total counter",
		"http_requests_total 6\n",
		"ledger_entries 1\n",
		"ledger_assignments 1\n",
		"ledger_revision 2\n",
		`cache_entries{type="totals"} 1`,
		`cache_entries{type="recent"} 0`,
		"rate_limit_hits_total 1\n",
		"suspicious_requests_total 1\n",
		"active_rate_limit_clients 1\n",
		"uptime_seconds ",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}

	fresh := newTestServer(t, Options{})
	if rr := do(t, fresh, http.MethodPost, "/metrics", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /metrics status=%d", rr.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5000", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "198.51.100.1"},
		{"trusted proxy bad header", "10.0.0.2:5000", "garbage", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
