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

	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driving"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	authService      driving.AuthService
	discoveryService driving.DiscoveryService
	issuanceService  driving.IssuanceService
	claimService     driving.ClaimService

	// Infrastructure. Used for single-document reads and health checks.
	cache driven.CacheStore
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	discoveryService driving.DiscoveryService,
	issuanceService driving.IssuanceService,
	claimService driving.ClaimService,
	cache driven.CacheStore,
) *Server {
	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		authService:      authService,
		discoveryService: discoveryService,
		issuanceService:  issuanceService,
		claimService:     claimService,
		cache:            cache,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // discovery scans can take a while
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)

	// Auth endpoints (authenticated)
	s.router.Handle("POST /api/v1/auth/logout",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLogout)))

	// Holder document endpoints. Holders only reach their own address;
	// RequireOwner enforces that from the token's bound address.
	s.router.Handle("GET /api/v1/holders/{address}/documents",
		authMiddleware.Authenticate(
			authMiddleware.RequireOwner(http.HandlerFunc(s.handleGetCachedDocuments))))
	s.router.Handle("POST /api/v1/holders/{address}/discover",
		authMiddleware.Authenticate(
			authMiddleware.RequireOwner(http.HandlerFunc(s.handleDiscover))))
	s.router.Handle("POST /api/v1/holders/{address}/poll",
		authMiddleware.Authenticate(
			authMiddleware.RequireOwner(http.HandlerFunc(s.handlePoll))))
	s.router.Handle("GET /api/v1/holders/{address}/status",
		authMiddleware.Authenticate(
			authMiddleware.RequireOwner(http.HandlerFunc(s.handleDiscoveryStatus))))

	// Document endpoints
	s.router.Handle("GET /api/v1/documents/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetDocument)))
	s.router.Handle("POST /api/v1/documents",
		authMiddleware.Authenticate(
			authMiddleware.RequireIssuer(http.HandlerFunc(s.handleIssueDocument))))
	s.router.Handle("POST /api/v1/documents/{id}/claim",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleClaimDocument)))

	// Issuer registry endpoints
	s.router.Handle("GET /api/v1/issuers",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListIssuers)))
	s.router.Handle("POST /api/v1/issuers",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRegisterIssuer))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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
