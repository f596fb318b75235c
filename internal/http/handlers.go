package http

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

type entriesResponse struct {
	Entries []core.Entry `json:"entries"`
}

type assignmentsResponse struct {
	Assignments []core.Assignment `json:"assignments"`
}

type totalsResponse struct {
	Totals []core.Total `json:"totals"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, CodeNotReady, "Service is not ready.").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusNotFound, CodeNotFound, "Route not found.").Write(w)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		NewJSONResponse().Body(entriesResponse{Entries: s.ledger.Entries(r.Context())}).Write(w)
	case http.MethodPost:
		s.handleCreateEntry(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := decodeObject(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	name, err := core.NameFromValue(payload["name"])
	if err != nil {
		s.writeLedgerError(w, r, err, log.OpCreate)
		return
	}

	entry, err := s.ledger.AddEntry(ctx, name)
	if err != nil {
		s.writeLedgerError(w, r, err, log.OpCreate)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(entry).
		Write(w)
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		NewJSONResponse().Body(assignmentsResponse{Assignments: s.ledger.Assignments(r.Context())}).Write(w)
	case http.MethodPost:
		s.handleCreateAssignment(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := decodeObject(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	name, err := core.NameFromValue(payload["name"])
	if err != nil {
		s.writeLedgerError(w, r, err, log.OpAssign)
		return
	}

	record, err := s.ledger.Assign(ctx, name, payload["amount"])
	if err != nil {
		s.writeLedgerError(w, r, err, log.OpAssign)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(record).
		Write(w)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	limit, err := parseLimit(r.URL.Query(), s.recentLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(assignmentsResponse{Assignments: s.recent(r.Context(), limit)}).Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	NewJSONResponse().Body(totalsResponse{Totals: s.totals(r.Context())}).Write(w)
}

// handleComputeTotals aggregates a posted assignments array without
// touching the ledger.
func (s *Server) handleComputeTotals(w http.ResponseWriter, r *http.Request) {
	assignments, ok := s.decodeAssignments(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(totalsResponse{Totals: core.CalculateTotals(assignments)}).Write(w)
}

func (s *Server) handleComputeRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), s.recentLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	assignments, ok := s.decodeAssignments(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(assignmentsResponse{Assignments: core.RecentAssignments(assignments, limit)}).Write(w)
}

func (s *Server) decodeAssignments(w http.ResponseWriter, r *http.Request) ([]core.Assignment, bool) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(w)
		return nil, false
	}
	body, err := readBody(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return nil, false
	}
	assignments, err := core.DecodeAssignments(body, core.CodeSummaryInvalidCollection)
	if err != nil {
		s.writeLedgerError(w, r, err, log.OpParse)
		return nil, false
	}
	return assignments, true
}

// writeLedgerError logs err and writes the matching JSON error.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	var le *core.Error
	if errors.As(err, &le) {
		log.FromContext(ctx).InfoContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldErrorCode, string(le.Code))
	} else {
		s.events.LogError(ctx, "Ledger operation failed", err, log.ComponentLedger, op, nil)
	}
	LedgerError(err).Write(w)
}

// handleMetrics reports request, security, cache and ledger counters in the
// Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", atomic.LoadInt64(&s.requests))
	metric("ledger_entries", "gauge", "Entries in the ledger", len(s.ledger.Entries(ctx)))
	metric("ledger_assignments", "gauge", "Assignments in the ledger", len(s.ledger.Assignments(ctx)))
	metric("ledger_revision", "gauge", "Current ledger revision", s.ledger.Revision())

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"totals\"} %d\n", s.totalsCache.Size())
	fmt.Fprintf(w, "cache_entries{type=\"recent\"} %d\n\n", s.recentCache.Size())

	metric("rate_limit_hits_total", "counter", "Total rate limit hits", atomic.LoadInt64(&s.metrics.rateLimitHits))
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", atomic.LoadInt64(&s.metrics.suspiciousRequests))
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", s.rateLimiter.activeClients())
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}
