package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/httputil"
	"github.com/platinummonkey/pfcatalog/pkg/middleware"
	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
)

// Catalog lists normalized records per environment
type Catalog interface {
	Connections(ctx context.Context, envName string) ([]normalize.Connection, error)
	Clients(ctx context.Context, envName string) ([]normalize.Client, error)
	Environments() []string
	CacheStatus(ctx context.Context, envName string, populate bool) ([]refcache.PopulationStatus, error)
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the base request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records HTTP and export metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithCORSOrigins allows browser access from the given origins
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRateLimit limits per-client requests to routes that reach the admin API
func WithRateLimit(limiter middleware.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// Server represents our API server
type Server struct {
	catalog     Catalog
	router      *mux.Router
	logger      *observability.Logger
	metrics     *observability.Metrics
	corsOrigins []string
	limiter     middleware.Limiter
	handler     http.Handler
}

// NewServer creates a new API server
func NewServer(catalog Catalog, opts ...Option) *Server {
	s := &Server{
		catalog: catalog,
		router:  mux.NewRouter(),
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	limit := middleware.RateLimit(s.limiter, s.logger)

	connections := limit(listHandler(s, normalize.ConnectionColumns(), s.catalog.Connections))
	clients := limit(listHandler(s, normalize.ClientColumns(), s.catalog.Clients))

	s.router.Handle("/connections", connections).Methods(http.MethodGet)
	s.router.Handle("/api/saml-connections", connections).Methods(http.MethodGet)
	s.router.Handle("/clients", clients).Methods(http.MethodGet)
	s.router.Handle("/api/oauth-connections", clients).Methods(http.MethodGet)

	s.router.Handle("/connections/export",
		limit(exportHandler(s, catalog.DatasetConnections, normalize.ConnectionColumns(), s.catalog.Connections))).Methods(http.MethodGet)
	s.router.Handle("/clients/export",
		limit(exportHandler(s, catalog.DatasetClients, normalize.ClientColumns(), s.catalog.Clients))).Methods(http.MethodGet)

	s.router.HandleFunc("/environments", s.listEnvironments).Methods(http.MethodGet)
	s.router.Handle("/cache/status", populateLimited(limit, http.HandlerFunc(s.cacheStatus))).Methods(http.MethodGet)

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMethodNotAllowed(w, "method not allowed")
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})

	s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate)))
}

// populateLimited applies limit only to requests that populate reference
// tables, the one case where the status route reaches the admin API
func populateLimited(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if populate, err := httputil.ParseQueryBool(r, "populate", false); err == nil && populate {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) buildHandler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.CORSMiddleware(s.corsOrigins),
	)
	return otelhttp.NewHandler(chain(s.router), "pfcatalog",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// routeTemplate labels metrics with the matched route instead of the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
