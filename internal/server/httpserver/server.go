package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/yndnr/stockgate/internal/infra/tlsroots"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// Server is the stockgate HTTP(S) listener.
type Server struct {
	httpServer *http.Server
	certs      *tlsroots.Watcher
	logger     logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server for cfg. When TLS files are configured the key pair
// is loaded now and reloaded whenever the files change.
func New(cfg config.HTTPConfig, h http.Handler, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Default()
	}
	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Slog(log).Handler(), slog.LevelWarn),
		},
		logger: log,
	}

	if cfg.TLSEnabled() {
		w, err := tlsroots.NewWatcher(cfg.TLSCertFile, cfg.TLSKeyFile, tlsroots.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("httpserver: load tls key pair: %w", err)
		}
		s.certs = w
		s.httpServer.TLSConfig = tlsroots.ServerConfig(w)
	}
	return s, nil
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// TLS reports whether the server serves HTTPS.
func (s *Server) TLS() bool { return s.certs != nil }

// Serve accepts connections until Shutdown. It calls Listen if needed and
// returns nil after a graceful shutdown.
func (s *Server) Serve() error {
	ln, err := s.boundListener()
	if err != nil {
		return err
	}

	s.logger.Info("http server listening", "addr", ln.Addr().String(), "tls", s.TLS())

	if s.certs != nil {
		s.certs.StartAsync()
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) boundListener() (net.Listener, error) {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln, nil
	}
	if err := s.Listen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener, nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.certs != nil {
		s.certs.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
