// Package api provides the HTTP API server and handlers for PageTrail.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pagetrail/pagetrail-server/internal/media/images"
	"github.com/pagetrail/pagetrail-server/internal/projection"
	"github.com/pagetrail/pagetrail-server/internal/ratelimit"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store"
	"github.com/pagetrail/pagetrail-server/internal/telemetry"
)

// Options tunes the HTTP surface.
type Options struct {
	Version        string
	CORSOrigins    []string
	LoginRateLimit int   // attempts per minute per client
	MaxCoverBytes  int64 // largest raw cover upload; sizes book request bodies
	Telemetry      *telemetry.Provider
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	covers          *images.Storage
	feed            *projection.Feed
	sseManager      *sse.Manager
	sseHandler      *sse.Handler
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *ratelimit.KeyedRateLimiter
	bookBodyLimit   int64
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st store.Store,
	services *Services,
	covers *images.Storage,
	feed *projection.Feed,
	sseManager *sse.Manager,
	opts Options,
	logger *slog.Logger,
) *Server {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = defaultLoginRateLimit
	}
	if opts.MaxCoverBytes <= 0 {
		opts.MaxCoverBytes = defaultMaxCoverBytes
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Noop()
	}

	s := &Server{
		store:           st,
		services:        services,
		covers:          covers,
		feed:            feed,
		sseManager:      sseManager,
		sseHandler:      sse.NewHandler(logger),
		router:          chi.NewRouter(),
		logger:          logger,
		authRateLimiter: ratelimit.PerMinute(opts.LoginRateLimit),
		bookBodyLimit:   bookBodyLimit(opts.MaxCoverBytes),
	}

	s.setupMiddleware(opts.CORSOrigins, opts.Telemetry)

	humaConfig := huma.DefaultConfig("PageTrail API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources owned by the server.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string, tel *telemetry.Provider) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(tracing(tel))
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	s.router.Use(authMiddleware(s.services.Auth))
}

// registerRoutes wires huma operations and the raw chi routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerBookRoutes()
	s.registerSessionRoutes()
	s.registerStatsRoutes()

	// Streaming and file serving bypass huma's JSON pipeline.
	s.router.Get("/api/v1/books/stream", s.handleBookStream)
	s.router.Get("/covers/{owner}/{name}", s.handleGetCover)
}
