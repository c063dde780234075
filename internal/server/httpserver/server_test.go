package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := config.Default().Server.HTTP
	cfg.Addr = "127.0.0.1:0"

	s, err := New(cfg, okHandler, logger.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.TLS() {
		t.Error("TLS() = true without key pair")
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	resp, err := http.Get("http://" + s.Addr() + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve returned %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestServer_MissingKeyPair(t *testing.T) {
	cfg := config.Default().Server.HTTP
	cfg.TLSCertFile = t.TempDir() + "/missing.crt"
	cfg.TLSKeyFile = t.TempDir() + "/missing.key"

	if _, err := New(cfg, okHandler, logger.NewNop()); err == nil {
		t.Error("New() succeeded with missing key pair")
	}
}
