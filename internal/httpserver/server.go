// Package httpserver exposes a small read-only status API next to the
// provisioning listener. It never mutates network state.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP status surface.
type Server struct {
	http *http.Server
}

// NewServer builds the gin router and the underlying http.Server.
func NewServer(port int, api *API, secret string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if secret != "" {
		router.Use(authMiddleware(secret))
	}
	api.RegisterRoutes(router)

	s := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{http: s}
}

// Run serves until the listener fails or the server is shut down.
func (s *Server) Run() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
