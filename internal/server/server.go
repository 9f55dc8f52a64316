// Package server exposes the session engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jeffr-K/metagate/internal/security"
	"github.com/Jeffr-K/metagate/internal/session/service"
)

// Auth is the slice of the session engine the HTTP layer needs.
type Auth interface {
	Login(ctx context.Context, identity, secret string) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	VerifyAccess(ctx context.Context, accessToken string) (*security.AccessClaims, error)
}

// Server is the HTTP front of the gate.
type Server struct {
	router *gin.Engine
	auth   Auth
	http   *http.Server
}

// NewServer builds the router and returns a Server listening on addr when Run
// is called.
func NewServer(addr string, auth Auth) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router: router,
		auth:   auth,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

// Router returns the underlying gin engine, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		auth.POST("/login", s.handleLogin())
		auth.POST("/refresh", s.handleRefresh())
		auth.POST("/logout", s.handleLogout())
		auth.GET("/session", RequireAuth(s.auth), s.handleSession())
	}

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gate"})
	})
}
