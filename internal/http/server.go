package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cashbot/internal/cache"
	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/middleware/ratelimit"
	"cashbot/internal/middleware/security"
	"cashbot/internal/middleware/trace"
	"cashbot/internal/services"
)

// Store is everything the API needs from persistence.
type Store interface {
	services.Store

	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	CreateRecurringRule(ctx context.Context, rule *core.RecurringRule) error
	UpdateRecurringRule(ctx context.Context, rule core.RecurringRule) error
	SetRecurringRuleActive(ctx context.Context, userID, id string, active bool) error
	DeleteRecurringRule(ctx context.Context, userID, id string) error

	SetMonthlySalary(ctx context.Context, userID string, salary decimal.Decimal) error
	CreateLinkCode(ctx context.Context, userID, code string, expiresAt time.Time) error
}

// Options tune the server beyond its collaborators.
type Options struct {
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int
	LinkCodeTTL      time.Duration
	Location         *time.Location
}

func (o *Options) fillDefaults() {
	if o.SummaryCacheTTL <= 0 {
		o.SummaryCacheTTL = time.Minute
	}
	if o.SummaryCacheSize <= 0 {
		o.SummaryCacheSize = 256
	}
	if o.LinkCodeTTL <= 0 {
		o.LinkCodeTTL = 10 * time.Minute
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

type Server struct {
	http.Server

	store     Store
	summaries *services.SummaryBuilder
	logger    *log.Logger
	loc       *time.Location

	linkCodeTTL time.Duration

	summaryCache *cache.LRUCache[*services.DashboardSummary]
	limiter      *ratelimit.Limiter

	cancelJanitor context.CancelFunc
	shutdownOnce  sync.Once

	// test seam; defaults to time.Now
	now func() time.Time
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(addr string, store Store, logger *log.Logger, opts Options) *Server {
	opts.fillDefaults()

	janitorCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		store:         store,
		summaries:     services.NewSummaryBuilder(store, opts.Location),
		logger:        logger.WithComponent(log.ComponentHTTP),
		loc:           opts.Location,
		linkCodeTTL:   opts.LinkCodeTTL,
		summaryCache:  cache.NewLRUCache[*services.DashboardSummary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		cancelJanitor: cancel,
		now:           time.Now,
	}
	s.summaryCache.StartJanitor(janitorCtx, 10*time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	api := http.NewServeMux()
	api.HandleFunc("/api/dashboard", s.requireUser(s.handleDashboard))
	api.HandleFunc("/api/transactions", s.requireUser(s.handleTransactions))
	api.HandleFunc("/api/transactions/", s.requireUser(s.handleTransactionByID))
	api.HandleFunc("/api/recurring", s.requireUser(s.handleRecurring))
	api.HandleFunc("/api/recurring/", s.requireUser(s.handleRecurringByID))
	api.HandleFunc("/api/settings", s.requireUser(s.handleSettings))
	api.HandleFunc("/api/link-code", s.requireUser(s.handleLinkCode))
	mux.Handle("/api/", s.withWriteLimit(api))

	// trace first so the request ID exists by the time the request-scoped
	// logger is enriched with it.
	tracer := trace.NewMiddleware(extractClientIP)
	handler := tracer.Middleware(
		security.Middleware(security.DefaultHeadersConfig())(
			log.Middleware(logger)(
				log.RequestIDMiddleware(func(r *http.Request) string {
					return trace.GetRequestID(r.Context())
				})(mux))))

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// withWriteLimit rate-limits mutating requests per user (falling back to the
// client IP before authentication is known).
func (s *Server) withWriteLimit(next http.Handler) http.Handler {
	limit := s.limiter.Middleware(func(r *http.Request) string {
		if userID := r.Header.Get(userIDHeader); userID != "" {
			return userID
		}
		return extractClientIP(r)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			limit.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i > 0 {
			return strings.TrimSpace(ip[:i])
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Shutdown stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cancelJanitor()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
