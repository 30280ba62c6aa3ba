// Package server provides the HTTP server and routing.
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

	"github.com/peterbitar/wealthyrabbit/internal/database"
	alerthandlers "github.com/peterbitar/wealthyrabbit/internal/modules/alerts/handlers"
	userhandlers "github.com/peterbitar/wealthyrabbit/internal/modules/users/handlers"
	"github.com/peterbitar/wealthyrabbit/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Port          int
	Log           zerolog.Logger
	DB            *database.DB
	UserHandlers  *userhandlers.Handlers
	AlertHandlers *alerthandlers.Handlers
	FeedService   *pipeline.FeedService
	DevMode       bool
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates the HTTP server and mounts all routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	systemHandlers := NewSystemHandlers(cfg.Log, cfg.DB)
	s.router.Get("/health", systemHandlers.HandleHealth)
	s.router.Get("/api/system/stats", systemHandlers.HandleStats)

	cfg.UserHandlers.RegisterRoutes(s.router)
	cfg.AlertHandlers.RegisterRoutes(s.router)

	if cfg.FeedService != nil {
		feedHandlers := NewFeedHandlers(cfg.FeedService, cfg.Log)
		s.router.Get("/api/feed/{userId}", feedHandlers.HandleGetFeed)
		s.router.Post("/api/feed/{userId}/refresh", feedHandlers.HandleRefresh)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the router (tests).
func (s *Server) Router() http.Handler {
	return s.router
}
