package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"webauthz/pkg/logging"
	"webauthz/pkg/webauthz"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses. It
	// covers a full token exchange with an authorization server.
	DefaultWriteTimeout = 60 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultUserHeader is the trusted header carrying the caller's user id.
	DefaultUserHeader = "X-Webauthz-User"

	userKey = "webauthz.user"
)

// Options configures the HTTP API.
type Options struct {
	// ListenAddr is the address to bind to.
	ListenAddr string
	// UserHeader names the header set by the host application's own
	// authentication in front of this server.
	UserHeader string
	// Debug enables gin's debug mode and request logging at Debug level.
	Debug bool
}

// Server exposes a webauthz.Client over HTTP.
type Server struct {
	client     *webauthz.Client
	userHeader string
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a Server for client.
func New(client *webauthz.Client, opts Options) *Server {
	if opts.UserHeader == "" {
		opts.UserHeader = DefaultUserHeader
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		client:     client,
		userHeader: opts.UserHeader,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1", userMiddleware(s.userHeader))
	v1.POST("/negotiations", s.startNegotiation)
	v1.GET("/negotiations/:client_state", s.getNegotiation)
	v1.GET("/grant", s.grant)
	v1.POST("/exchange", s.exchange)
	v1.GET("/token", s.token)

	return router
}

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on listener until ctx is done, then shuts down
// gracefully.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	logging.Info("Server", "Listening on %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logging.Info("Server", "Shutdown signal received, shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// userMiddleware rejects requests that do not carry a user id in header.
func userMiddleware(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(header)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + header + " header"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("Server", "%s %s -> %d (%s)",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userKey)
}
