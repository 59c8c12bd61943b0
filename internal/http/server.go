// Package http exposes the spendlog JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendlog/internal/auth"
	applog "spendlog/internal/log"
	"spendlog/internal/middleware/ratelimit"
	"spendlog/internal/middleware/security"
	"spendlog/internal/middleware/trace"
	"spendlog/internal/services"
	"spendlog/internal/storage"
)

const maxBodyBytes = 1 << 20

// Options configures the listener and the middleware chain.
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

// Services groups what the handlers call into.
type Services struct {
	Accounts   *services.AccountService
	Expenses   *services.ExpenseService
	Categories *services.CategoryService
	Dashboard  *services.DashboardService
	Export     *services.ExportService
	Issuer     *auth.Issuer
	// Store is pinged by the readiness check.
	Store storage.Store
}

type Server struct {
	http.Server
	svc Services

	logger      *applog.Logger
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer wires the router: trace, security, CORS and rate limiting apply
// to every route; the /api group behind auth requires a bearer token.
func NewServer(opts Options, svc Services, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	detector, err := security.NewDetector(logger)
	if err != nil {
		return nil, err
	}

	rlConfig := ratelimit.DefaultConfig()
	rlConfig.RequestsPerWindow = opts.RateLimitPerMinute

	s := &Server{
		svc:         svc,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		detector:    detector,
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		started:     time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, detector.ExtractClientIP)

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID},
		MaxAge:         300,
	}))
	r.Use(s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(svc.Issuer, s.handleUnauthorized))

			r.Post("/auth/verify", s.handleVerify)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", s.handleListExpenses)
				r.Post("/", s.handleCreateExpense)

				r.Get("/dashboard/summary", s.handleDashboardSummary)
				r.Get("/categories", s.handleListCategories)
				r.Post("/categories", s.handleCreateCategory)
				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleUpdateSettings)
				r.Get("/export/csv", s.handleExportCSV)
				r.Get("/export/xlsx", s.handleExportXLSX)

				r.Get("/{id}", s.handleGetExpense)
				r.Put("/{id}", s.handleUpdateExpense)
				r.Delete("/{id}", s.handleDeleteExpense)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Rejected unauthenticated request",
		applog.FieldPath, r.URL.Path, applog.FieldError, err)
	ErrorResponse(http.StatusUnauthorized, "authentication required").Write(w)
}

// owner returns the authenticated user id placed by auth.Middleware.
func owner(r *http.Request) int64 {
	id, _ := auth.OwnerFrom(r.Context())
	return id
}
