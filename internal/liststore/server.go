package liststore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
	StatusStopped  ServerStatus = "stopped"
)

// Server wraps the HTTP listener serving a list handler.
type Server struct {
	settings Settings
	handler  http.Handler
	logger   *zap.Logger

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	status   ServerStatus
	errs     chan error
}

// NewServer prepares a server for handler using the provided settings.
func NewServer(settings Settings, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		settings: settings,
		handler:  handler,
		logger:   logger,
		status:   StatusStarting,
		errs:     make(chan error, 1),
	}
}

// Start binds the TCP listener and begins serving HTTP traffic in the
// background. Serve failures are reported on Errors.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("liststore: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("liststore: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("liststore: listen %s: %w", addr, err)
	}
	s.listener = listener
	server := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", zap.Error(err))
			s.errs <- err
		}
		close(s.errs)
	}()
	s.logger.Info("listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("site", s.settings.SiteURL(listener.Addr().String())),
		zap.String("list", s.settings.List))
	return nil
}

// Errors yields a serve failure, then closes when the server stops.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	s.status = StatusStopped
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SiteURL returns the base URL roster clients should use.
func (s *Server) SiteURL() string {
	return s.settings.SiteURL(s.Addr())
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
