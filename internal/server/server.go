package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/price-relay/internal/auth"
	"github.com/rickgao/price-relay/internal/relay"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Server accepts downstream WebSocket connections.
type Server struct {
	cfg     Config
	handler *Handler
	logger  *slog.Logger
}

// New creates a Server that routes sessions through coord.
func New(cfg Config, coord *relay.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	return &Server{
		cfg:     cfg,
		handler: NewHandler(coord, cfg.Conn, logger),
		logger:  logger.With("component", "server"),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Handler returns the WebSocket handler.
func (s *Server) Handler() *Handler {
	return s.handler
}

// ListenAndServe binds the configured address and serves until ctx is cancelled.
// TLS material is loaded before binding; a failure there is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var tlsCfg *tls.Config
	if s.cfg.TLSEnabled() {
		var err error
		tlsCfg, err = auth.LoadServerTLS(s.cfg.CertFile, s.cfg.KeyFile)
		if err != nil {
			return fmt.Errorf("load TLS material: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}

	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
		s.logger.Info("serving wss", "addr", ln.Addr().String(), "path", s.cfg.Path, "cert", auth.Subject(tlsCfg))
	} else {
		s.logger.Info("serving ws", "addr", ln.Addr().String(), "path", s.cfg.Path)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
// It closes every open session before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s.handler)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.handler.CloseAll()
		return fmt.Errorf("serve: %w", err)

	case <-ctx.Done():
		s.logger.Info("shutting down", "sessions", s.handler.Len())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked connections are not tracked by http.Server.
		err := srv.Shutdown(shutdownCtx)
		s.handler.CloseAll()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
