package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/taskpilot/internal/api/auth"
	"github.com/taskpilot/internal/chat"
	"github.com/taskpilot/internal/store"
)

// Server represents the API server
type Server struct {
	echo         *echo.Echo
	port         int
	store        store.ConversationStore
	orchestrator *chat.Orchestrator
}

// Options configures a Server.
type Options struct {
	Port          int
	JWTSecret     string
	RatePerMinute int
	RateBurst     int
}

// NewServer creates a new API server
func NewServer(opts Options, st store.ConversationStore, orchestrator *chat.Orchestrator) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:         e,
		port:         opts.Port,
		store:        st,
		orchestrator: orchestrator,
	}

	server.setupRoutes(opts)

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(opts Options) {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/readyz", s.handleReady)

	limiter := newUserRateLimiter(opts.RatePerMinute, opts.RateBurst)

	v1 := s.echo.Group("/api/v1")
	v1.Use(auth.RequireAuth([]byte(opts.JWTSecret)))
	v1.Use(limiter.Middleware())

	v1.POST("/users/:user_id/turns", s.handleSendTurn)
	v1.GET("/users/:user_id/conversations/:id/messages", s.handleListMessages)
}

// handleHealth reports process liveness only.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleReady reports whether the server can serve turns. A turn needs the
// conversation store; the reasoning backend is not required since the
// orchestrator degrades gracefully without it.
func (s *Server) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "store unreachable",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Start begins the API server and blocks until an interrupt arrives, then
// shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	log.Info().Int("port", s.port).Msg("API server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
