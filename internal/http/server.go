package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"tally/internal/auth"
	"tally/internal/cache"
	tlog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/present"
	"tally/internal/services"
	"tally/internal/store"
	appweb "tally/web"
)

// Deps are the collaborators of the dashboard server.
type Deps struct {
	Store     store.Ledger
	Publisher services.Publisher // optional
	Auth      *auth.Authenticator
	Formatter present.Formatter
	Location  *time.Location
	CacheSize int
	CacheTTL  time.Duration
	Logger    *tlog.Logger
}

type Server struct {
	http.Server
	templates *template.Template

	store     store.Ledger
	ledger    *services.LedgerService
	loader    *services.Loader
	sessions  *services.Sessions
	formatter present.Formatter
	loc       *time.Location

	auth             *auth.Authenticator
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	dashboardCache *cache.LRUCache[services.Dashboard]
	cacheManager   *cache.Manager
	appMetrics     *appMetrics
	logger         *tlog.Logger
	structured     *tlog.StructuredLogger
	shutdownOnce   sync.Once
}

type appMetrics struct {
	transactionsCreated int64
	balancesCreated     int64
	saveFailures        int64
	supersededRefreshes int64
	loadFailures        int64
	uptime              time.Time
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = tlog.New(tlog.DefaultConfig())
	}
	if deps.Auth == nil {
		deps.Auth = auth.New("", "")
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Formatter.Symbol == "" {
		deps.Formatter = present.NewFormatter("")
	}
	if deps.CacheSize <= 0 {
		deps.CacheSize = 100
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 5 * time.Minute
	}
	logger := deps.Logger.WithComponent(tlog.ComponentHTTP)

	dashboardCache := cache.NewLRUCache[services.Dashboard](deps.CacheSize, deps.CacheTTL)
	loader := services.NewLoader(deps.Store, dashboardCache)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:            deps.Store,
		ledger:           services.NewLedgerService(deps.Store, deps.Publisher, loader),
		loader:           loader,
		sessions:         services.NewSessions(),
		formatter:        deps.Formatter,
		loc:              deps.Location,
		auth:             deps.Auth,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(),
		dashboardCache:   dashboardCache,
		cacheManager:     cache.NewManager(logger.Logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
		logger:           logger,
		structured:       tlog.NewStructuredLogger(logger),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(dashboardCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := appweb.ParseTemplates(templateFuncs)
	if err != nil {
		logger.Error("Failed parsing templates", "error", err)
	}
	s.templates = t

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static)).Methods(http.MethodGet)
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	r.Handle("/", s.protected(s.handleIndex)).Methods(http.MethodGet)
	r.Handle("/ui/dashboard", s.protected(s.handleDashboard)).Methods(http.MethodGet)
	r.Handle("/transactions", s.protected(s.handleCreateTransaction)).Methods(http.MethodPost)
	r.Handle("/balances", s.protected(s.handleCreateBalance)).Methods(http.MethodPost)
	r.Handle("/export.xlsx", s.protected(s.handleExport)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/totals", s.protected(s.handleAPITotals)).Methods(http.MethodGet)
	api.Handle("/transactions", s.protected(s.handleAPITransactions)).Methods(http.MethodGet)
	api.Handle("/balances", s.protected(s.handleAPIBalances)).Methods(http.MethodGet)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.traceMiddleware.Middleware(
		s.securityDetector.Middleware(
			headers.Middleware(r)))

	return s
}

// protected requires an identity and limits POST bursts per client.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, http.MethodPost)
	return s.auth.Middleware(limit(security.NoStore(h)))
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		if err := s.ledger.Close(); err != nil {
			s.logger.WarnContext(ctx, "Failed to close publisher", "error", err)
		}
	})
	return shutdownErr
}

// owner returns the identity attached by the auth middleware.
func owner(r *http.Request) auth.Identity {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id
	}
	return auth.Identity{ID: auth.LocalOwnerID}
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

var templateFuncs = template.FuncMap{
	"selected": func(current, value string) bool {
		return current == value
	},
}
