package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/report"
	"fintrack/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	summaryCacheSize     = 100
	summaryCacheTTL      = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
	readyTimeout         = 2 * time.Second
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the server's collaborators. Service is required; the rest
// fall back to defaults.
type Options struct {
	Service   *services.TransactionService
	Reports   *report.Gateway
	Store     Pinger
	Location  *time.Location
	RateLimit ratelimit.Config
	Registry  *prometheus.Registry
	Logger    *log.Logger
	Clock     func() time.Time
}

type Server struct {
	http.Server
	svc     *services.TransactionService
	reports *report.Gateway
	store   Pinger
	loc     *time.Location
	clock   func() time.Time

	logger     *log.Logger
	structured *log.StructuredLogger

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	registry    *prometheus.Registry

	// aggregation responses, purged on every write
	summaryCache *cache.LRUCache[cachedSummary]
	cacheManager *cache.Manager
	// bumped on every write; cached summaries from older generations are stale
	generation atomic.Uint64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	if opts.Reports == nil {
		opts.Reports = report.NewGateway(report.Config{})
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:          opts.Service,
		reports:      opts.Reports,
		store:        opts.Store,
		loc:          opts.Location,
		clock:        opts.Clock,
		logger:       logger,
		structured:   log.NewStructuredLogger(logger),
		rateLimiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector:     security.NewDetector(),
		registry:     opts.Registry,
		summaryCache: cache.NewLRUCache[cachedSummary](summaryCacheSize, summaryCacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(cacheCleanupInterval)
	s.svc.OnChange(func() { s.generation.Add(1) }, s.cacheManager.InvalidateAll)

	s.registerCollectors()

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.HandleFunc("/transactions/export", s.handleExport)
	mux.HandleFunc("/transactions/import", s.handleImport)
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/quarterly-report", s.handleQuarterlyReport)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.handleNotFound)

	s.Handler = s.buildChain(mux, opts.Logger.WithComponent(log.ComponentTrace))
	return s
}

// buildChain wraps mux, outermost first: security headers, suspicious
// request detection, rate limiting, request logger, tracing. Tracing sits
// next to the mux so it sees the matched route pattern.
func (s *Server) buildChain(mux http.Handler, traceLogger *log.Logger) http.Handler {
	metrics := trace.NewMetrics(s.registry)

	handler := trace.NewMiddleware(traceLogger, s.detector.ExtractClientIP, metrics).Middleware(mux)
	handler = log.Middleware(s.logger)(handler)
	handler = s.exemptHealthChecks(
		s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
		})(handler),
		handler,
	)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	return handler
}

// exemptHealthChecks routes health, readiness and metrics scrapes around the
// rate limiter.
func (s *Server) exemptHealthChecks(limited, direct http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			direct.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func (s *Server) registerCollectors() {
	s.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fintrack",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter.",
		}, func() float64 { return float64(s.rateLimiter.Rejected()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fintrack",
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged by the suspicious request detector.",
		}, func() float64 { return float64(s.detector.SuspiciousCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fintrack",
			Subsystem: "cache",
			Name:      "summary_entries",
			Help:      "Entries in the summary cache.",
		}, func() float64 { return float64(s.summaryCache.Size()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fintrack",
			Subsystem: "cache",
			Name:      "summary_hits_total",
			Help:      "Summary cache hits.",
		}, func() float64 { return float64(s.summaryCache.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fintrack",
			Subsystem: "cache",
			Name:      "summary_misses_total",
			Help:      "Summary cache misses.",
		}, func() float64 { return float64(s.summaryCache.Stats().Misses) }),
	)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
