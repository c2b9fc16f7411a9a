package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tripreport/internal/compose"
	"tripreport/internal/config"
	"tripreport/internal/logger"
	"tripreport/internal/metrics"
	"tripreport/internal/session"
	"tripreport/internal/store"
)

// Deps are the components the server drives.
type Deps struct {
	Store     store.Repository
	Session   *session.Session
	Generator session.Generator
	Composer  *compose.Composer
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      store.Repository
	session    *session.Session
	generator  session.Generator
	composer   *compose.Composer
	config     config.Server
	log        *slog.Logger
	pages      *pageRenderer
}

// New creates a new HTTP server instance
func New(deps Deps, cfg config.Server) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		store:     deps.Store,
		session:   deps.Session,
		generator: deps.Generator,
		composer:  deps.Composer,
		config:    cfg,
		log:       logger.Get(),
		pages:     newPageRenderer(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Report generation waits on rate limit backoff, so this is generous.
	s.router.Use(middleware.Timeout(5 * time.Minute))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Public gallery
	s.router.Get("/", s.handleGalleryPage)
	s.router.Get("/reports/{id}", s.handleReportPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdminAPI)

			r.Delete("/reports/{id}", s.handleDeleteReport)
			r.Post("/reports/{id}/load", s.handleLoadReport)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)
				r.Post("/", s.handleCreateEntry)
				r.Post("/reorder", s.handleReorderEntries)
				r.Post("/caption-all", s.handleCaptionAll)
				r.Get("/{id}", s.handleGetEntry)
				r.Put("/{id}", s.handleUpdateEntry)
				r.Delete("/{id}", s.handleDeleteEntry)
				r.Get("/{id}/status", s.handleEntryStatus)
				r.Post("/{id}/caption", s.handleEntryCaption)
				r.Post("/{id}/copy", s.handleEntryCopy)
				r.Post("/{id}/title", s.handleEntryTitle)
				r.Post("/{id}/image", s.handleEntryImage)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", s.handleGetSettings)
				r.Put("/", s.handleUpdateSettings)
				r.Get("/export", s.handleExportSettings)
				r.Post("/import", s.handleImportSettings)
				r.Post("/analyze", s.handleAnalyzeURL)
				r.Post("/refine-contexts", s.handleRefineContexts)
				r.Post("/refine-themes", s.handleRefineThemes)
			})

			r.Get("/draft", s.handleGetDraft)
			r.Put("/draft", s.handleUpdateDraft)
			r.Post("/draft/section", s.handleDraftSection)
			r.Post("/draft/import-themes", s.handleImportThemes)
			r.Post("/replace", s.handleReplace)

			r.Get("/report", s.handleGetCurrentReport)
			r.Put("/report", s.handleUpdateCurrentReport)
			r.Post("/generate", s.handleGenerate)
			r.Post("/publish", s.handlePublish)

			r.Get("/report-data/export", s.handleExportReportData)
			r.Post("/report-data/import", s.handleImportReportData)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
