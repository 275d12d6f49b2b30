package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/ruler/pkg/api/middleware"
	"mercator-hq/ruler/pkg/config"
)

// Server is the HTTP server for the rule API.
type Server struct {
	config  *config.ServerConfig
	handler http.Handler
	logger  *slog.Logger

	tlsConfig  *tls.Config
	middleware []func(http.Handler) http.Handler

	httpServer   *http.Server
	hooks        []func() error
	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
	addr      string
}

// NewServer creates a server for handler.
func NewServer(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		handler:      handler,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// WithTLS serves HTTPS with c. A nil c serves plain HTTP.
func (s *Server) WithTLS(c *tls.Config) *Server {
	s.tlsConfig = c
	return s
}

// Use adds middleware applied inside request logging, so its responses are
// logged with their request IDs. The first middleware added is outermost.
func (s *Server) Use(mw ...func(http.Handler) http.Handler) *Server {
	s.middleware = append(s.middleware, mw...)
	return s
}

// OnShutdown registers fn to run after the HTTP server has stopped. Hooks
// run in reverse registration order.
func (s *Server) OnShutdown(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Start listens and serves until shutdown. It blocks.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting rule server", "address", s.addr, "tls", s.tlsConfig != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
	return s.Shutdown(context.Background())
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown stops accepting connections, waits for in-flight requests up to
// ShutdownTimeout and then runs the shutdown hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		hooks := append([]func() error(nil), s.hooks...)
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](); err != nil {
				s.logger.Error("shutdown hook failed", "error", err)
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("rule server stopped")
	})

	return shutdownErr
}

// Handler returns the API handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	handler := s.handler

	// Body limit
	handler = middleware.MaxBody(s.config.MaxBodyBytes)(handler)

	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}

	// Logging sees the request ID set outside it
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.RequestID(handler)

	// Recovery middleware (outermost)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
