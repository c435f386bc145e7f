// Package server exposes the HTTP surface of wsedge: passthrough pages, the
// connection-info page and the tunnel endpoints that upgrade to WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/koltyakov/wsedge/internal/config"
	"github.com/koltyakov/wsedge/internal/session"
	"github.com/koltyakov/wsedge/internal/target"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	drainTimeout      = 15 * time.Second
)

type Server struct {
	cfg      config.ServerConfig
	resolver *target.Resolver
	dialer   session.Dialer
	pages    *http.Client
	log      *slog.Logger
	hub      *hub
	reporter session.Reporter
	upgrader websocket.Upgrader
}

func New(cfg config.ServerConfig, resolver *target.Resolver, dialer session.Dialer, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		dialer:   dialer,
		pages:    &http.Client{Timeout: cfg.FetchTimeout},
		log:      logger,
		hub:      newHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.reporter = &logReporter{log: logger}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleLanding)
	r.Get("/sub", s.handleSubscription)
	r.Get("/link", s.handleLink)
	r.HandleFunc("/{token}", s.handleTunnel)
	if s.cfg.PathPrefix != "" {
		r.HandleFunc(s.cfg.PathPrefix+"/{token}", s.handleTunnel)
	}
	return r
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or serving fails.
// On return every tunnel session has been closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          log.New(&errorLogWriter{log: s.log}, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", ln.Addr().String(), "path_prefix", s.cfg.PathPrefix)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	// Hijacked connections are not tracked by http.Server, so sessions are
	// closed explicitly before waiting for them.
	s.hub.closeAll()
	if shutdownErr := shutdownServer(httpServer, shutdownTimeout); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	if !waitGroupWait(&s.hub.wg, drainTimeout) {
		s.log.Warn("tunnel sessions did not finish before drain timeout", "active", s.hub.count())
	}
	return err
}

func shutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// waitGroupWait blocks until wg reaches zero or timeout elapses.
// Returns false if the timeout fired before all goroutines finished.
func waitGroupWait(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

type errorLogWriter struct {
	log *slog.Logger
}

func (w *errorLogWriter) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		w.log.Warn("http server error", "err", line)
	}
	return len(p), nil
}
