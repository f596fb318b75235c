package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
)

// Ledger is the service the API exposes.
type Ledger interface {
	AddEntry(ctx context.Context, name string) (core.Entry, error)
	Assign(ctx context.Context, name string, amount any) (core.Assignment, error)
	Entries(ctx context.Context) []core.Entry
	Assignments(ctx context.Context) []core.Assignment
	Totals(ctx context.Context) []core.Total
	Recent(ctx context.Context, limit int) []core.Assignment
	Revision() uint64
}

// Options tunes a Server. Zero values select defaults.
type Options struct {
	// RecentLimit is used when a recent request has no limit parameter.
	RecentLimit int
	// CacheTTL bounds how long summaries of old revisions are kept.
	CacheTTL time.Duration
	// WriteLimit is the number of POST requests allowed per client per minute.
	WriteLimit int
	// Ready reports whether dependencies are usable; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	ledger      Ledger
	logger      *log.Logger
	events      *log.StructuredLogger
	recentLimit int
	ready       func(ctx context.Context) error
	rateLimiter *rateLimiter
	metrics     securityMetrics
	requests    int64
	started     time.Time

	// Summaries keyed by ledger revision
	totalsCache *cache.LRUCache[[]core.Total]
	recentCache *cache.LRUCache[[]core.Assignment]
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = core.DefaultRecentLimit
	}
	if opts.WriteLimit <= 0 {
		opts.WriteLimit = 60
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:      ledger,
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
		recentLimit: opts.RecentLimit,
		ready:       opts.Ready,
		rateLimiter: newRateLimiter(opts.WriteLimit, time.Minute),
		totalsCache: cache.NewLRUCache[[]core.Total](16, opts.CacheTTL),
		recentCache: cache.NewLRUCache[[]core.Assignment](64, opts.CacheTTL),
		caches:      cache.NewManager(opts.Logger),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleNotFound)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/v1/entries", s.handleEntries)
	mux.HandleFunc("/v1/assignments", s.handleAssignments)
	mux.HandleFunc("/v1/assignments/recent", s.handleRecent)
	mux.HandleFunc("/v1/totals", s.handleTotals)
	mux.HandleFunc("/v1/compute/totals", s.handleComputeTotals)
	mux.HandleFunc("/v1/compute/recent", s.handleComputeRecent)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.caches.Register(s.totalsCache)
	s.caches.Register(s.recentCache)
	cleanup := opts.CacheTTL
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	s.caches.StartCleanup(cleanup)
	go s.rateLimiter.startCleanup(5 * time.Minute)

	return s
}

// withMiddleware injects the logger and request ID, applies security
// headers and write rate limiting, and logs request completion.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		atomic.AddInt64(&s.requests, 1)

		setSecurityHeaders(w)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if detectSuspiciousRequest(r, &s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, &s.metrics) {
			ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Please try again later.").
				Header("Retry-After", "60").
				Write(rw)
		} else {
			next.ServeHTTP(rw, r)
		}

		s.events.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})

	return log.Middleware(s.logger)(log.RequestIDMiddleware(requestID)(inner))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// totals returns the per-entry totals for the current revision.
func (s *Server) totals(ctx context.Context) []core.Total {
	key := "r" + strconv.FormatUint(s.ledger.Revision(), 10)
	return s.totalsCache.GetOrCompute(key, func() []core.Total {
		log.FromContext(ctx).DebugContext(ctx, "Totals cache miss", log.FieldRevision, key)
		return s.ledger.Totals(ctx)
	})
}

// recent returns the newest assignments for the current revision.
func (s *Server) recent(ctx context.Context, limit int) []core.Assignment {
	key := "r" + strconv.FormatUint(s.ledger.Revision(), 10) + ":" + strconv.Itoa(limit)
	return s.recentCache.GetOrCompute(key, func() []core.Assignment {
		return s.ledger.Recent(ctx, limit)
	})
}
