// Package httpapi exposes the credential flows over a JSON HTTP API.
// Handlers stay thin: request parsing, calling the auth service, and mapping
// errors to uniform caller-facing responses.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmanankin/authvault/internal/logging"
	"github.com/dmanankin/authvault/internal/server/auth"
	"github.com/dmanankin/authvault/internal/server/services"
)

// Server serves the HTTP API.
type Server struct {
	address string
	logger  logging.Logger
	svc     *services.Service
	issuer  *auth.Issuer
}

// NewServer constructs a Server for the given bind address.
func NewServer(address string, l logging.Logger, svc *services.Service, issuer *auth.Issuer) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		svc:     svc,
		issuer:  issuer,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/ping", s.ping)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)
	authGroup.POST("/refresh", s.refresh)
	authGroup.POST("/logout", s.logout)

	usersGroup := api.Group("/users")
	usersGroup.Use(s.accessTokenMiddleware())
	usersGroup.GET("/me", s.me)

	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
