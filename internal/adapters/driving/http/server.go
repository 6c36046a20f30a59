package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	layout     domain.LayoutParams

	reader driving.ReaderService
	auth   *AuthMiddleware
	cors   *CORSMiddleware

	// Infrastructure
	store Pinger // Bookmark store health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// JWTSecret enables HS256 bearer authentication on /api/v1 when set
	JWTSecret string

	// AllowedOrigins for CORS; empty disables CORS headers
	AllowedOrigins []string

	// DefaultLayout is used when an open request carries no geometry
	DefaultLayout domain.LayoutParams
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
		DefaultLayout: domain.LayoutParams{
			Width:                 80,
			Height:                24,
			LineSpacingMultiplier: 1,
		},
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, reader driving.ReaderService, store Pinger) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		version: cfg.Version,
		layout:  cfg.DefaultLayout,
		reader:  reader,
		auth:    NewAuthMiddleware(cfg.JWTSecret),
		cors:    NewCORSMiddleware(cfg.AllowedOrigins),
		store:   store,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in recovery, logging and CORS middleware
func (s *Server) Handler() http.Handler {
	return NewRecoveryMiddleware().Handler(
		NewLoggingMiddleware().Handler(
			s.cors.Handler(s.router)))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	protect := func(h http.HandlerFunc) http.Handler {
		return s.auth.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Book lifecycle
	s.router.Handle("POST /api/v1/books/open", protect(s.handleOpenBook))
	s.router.Handle("GET /api/v1/books/current", protect(s.handleCurrentBook))
	s.router.Handle("POST /api/v1/books/close", protect(s.handleCloseBook))

	// Pages
	s.router.Handle("GET /api/v1/pages/{index}", protect(s.handleGetPage))

	// Navigation
	s.router.Handle("POST /api/v1/navigation/page", protect(s.handleGoToPage))
	s.router.Handle("POST /api/v1/navigation/offset", protect(s.handleGoToOffset))
	s.router.Handle("POST /api/v1/navigation/next", protect(s.handleNextPage))
	s.router.Handle("POST /api/v1/navigation/prev", protect(s.handlePrevPage))

	// Bookmarks of the open book
	s.router.Handle("GET /api/v1/bookmarks", protect(s.handleListBookmarks))
	s.router.Handle("POST /api/v1/bookmarks", protect(s.handleCreateBookmark))
	s.router.Handle("DELETE /api/v1/bookmarks", protect(s.handleDeleteBookmark))

	// Reading history
	s.router.Handle("GET /api/v1/history", protect(s.handleListHistory))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Save the open book before the listener goes away
	if err := s.reader.Close(ctx); err != nil {
		log.Printf("failed to close book: %v", err)
	}

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
