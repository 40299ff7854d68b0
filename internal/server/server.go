// Package server provides the HTTP surface of spec.md §6: chi routing,
// middleware stack and handlers wired to the orchestrator, notification
// service, ingestion jobs and rate limiter. Grounded on the teacher's
// internal/server/server.go (Config/Server struct shape, New()
// construction order, setupMiddleware's exact middleware chain,
// setupRoutes' inline-constructed-handler style, loggingMiddleware,
// Start/Shutdown).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/marketpulse/ingestor/internal/datasource"
	"github.com/marketpulse/ingestor/internal/ingestion"
	"github.com/marketpulse/ingestor/internal/notify"
	"github.com/marketpulse/ingestor/internal/orchestrator"
	"github.com/marketpulse/ingestor/internal/ratelimit"
	"github.com/marketpulse/ingestor/internal/store"
	"github.com/marketpulse/ingestor/internal/taskqueue"
	"github.com/marketpulse/ingestor/internal/wsfanout"
)

// Config holds everything New needs to assemble a Server. Services are
// constructed upstream by internal/di and handed in ready-to-use, the
// way the teacher's Config carries a *di.Container rather than building
// services inline.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool

	Store             *store.Store
	Orchestrator      *orchestrator.Orchestrator
	Notify            *notify.Service
	Queue             *taskqueue.Queue
	Hub               *wsfanout.Hub
	DatasourceManager *datasource.Manager
	MultiSourceBasics *ingestion.MultiSourceBasicsSync
	RateLimiter       *ratelimit.Limiter
}

// Server is the HTTP front door: one chi router plus the service handles
// its handlers close over.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	store             *store.Store
	orch              *orchestrator.Orchestrator
	notify            *notify.Service
	queue             *taskqueue.Queue
	hub               *wsfanout.Hub
	dsManager         *datasource.Manager
	multiSourceBasics *ingestion.MultiSourceBasicsSync
	limiter           *ratelimit.Limiter
}

// New builds the router, installs middleware and routes, and wraps it in
// an *http.Server — mirroring the teacher's New(): middleware then
// routes then the http.Server struct literal, in that order.
func New(cfg Config) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		log:               cfg.Log.With().Str("component", "server").Logger(),
		store:             cfg.Store,
		orch:              cfg.Orchestrator,
		notify:            cfg.Notify,
		queue:             cfg.Queue,
		hub:               cfg.Hub,
		dsManager:         cfg.DatasourceManager,
		multiSourceBasics: cfg.MultiSourceBasics,
		limiter:           cfg.RateLimiter,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupMiddleware installs the same chain, in the same order, as the
// teacher: panic recovery, request id, real ip, structured logging,
// a 60s timeout, permissive CORS, and gzip compression outside dev mode.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}

	if s.limiter != nil {
		s.router.Use(s.limiter.RateLimit)
		s.router.Use(s.limiter.Quota)
	}
}

// setupRoutes registers the health check ahead of the API tree, then
// nests everything else under /api, matching the teacher's layout.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/analysis", func(r chi.Router) {
			r.Post("/single", s.handleAnalyzeSingle)
			r.Post("/batch", s.handleAnalyzeBatch)
			r.Route("/tasks/{taskID}", func(r chi.Router) {
				r.Get("/status", s.handleTaskStatus)
				r.Get("/result", s.handleTaskResult)
				r.Post("/cancel", s.handleTaskCancel)
				r.Delete("/", s.handleTaskDelete)
			})
		})

		r.Route("/sync/multi-source", func(r chi.Router) {
			r.Post("/stock_basics/run", s.handleMultiSourceBasicsRun)
			r.Get("/status", s.handleMultiSourceStatus)
			r.Post("/test-sources", s.handleTestSources)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Get("/unread-count", s.handleUnreadCount)
			r.Post("/{notificationID}/read", s.handleMarkRead)
			r.Post("/read-all", s.handleMarkAllRead)
		})

		r.Get("/admin/tasks/zombies", s.handleZombieTasks)
	})

	s.router.Get("/ws/task/{taskID}", s.handleTaskWebSocket)
}

// loggingMiddleware logs one line per request, identical fields to the
// teacher's (method, path, status, bytes, duration, request id).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
