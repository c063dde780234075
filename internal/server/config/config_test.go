package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/stockgate/internal/core/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Auth.Secret = testSecret
	return cfg
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := domain.HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	return h
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Auth.AccessTTL != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.Auth.RefreshTTL)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.FailClosed {
		t.Error("rate limiting should be enabled and fail-open by default")
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Auth.Secret != "" {
		t.Error("Default() must not ship a signing secret")
	}

	// Defaults are fresh copies.
	cfg.RateLimit.ExcludePaths[0] = "/changed"
	if DefaultExcludePaths[0] != "/health" {
		t.Error("Default() shares the DefaultExcludePaths backing array")
	}
}

func TestVerify_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Users = []UserConfig{{Username: "alice", PasswordHash: mustHash(t, "pw"), Roles: []string{"user"}}}
	cfg.APIKeys = []APIKeyConfig{{ID: "sgak-1", SecretHash: mustHash(t, "s"), Roles: []string{"service"}}}
	cfg.RateLimit.WhitelistIPs = []string{"10.0.0.0/8", "192.168.1.5"}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   string
	}{
		{"missing secret", func(c *ServerConfig) { c.Auth.Secret = "" }, "auth.secret is required"},
		{"short secret", func(c *ServerConfig) { c.Auth.Secret = "short" }, "at least 32 bytes"},
		{"zero access ttl", func(c *ServerConfig) { c.Auth.AccessTTL = 0 }, "auth.access_ttl"},
		{"refresh shorter than access", func(c *ServerConfig) { c.Auth.RefreshTTL = time.Minute }, "refresh_ttl must not be shorter"},
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "nonsense" }, "server.http.addr"},
		{"half tls", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "/x.crt" }, "set together"},
		{"zero limit", func(c *ServerConfig) { c.RateLimit.Limit = 0 }, "rate_limit.limit"},
		{"short window", func(c *ServerConfig) { c.RateLimit.Window = 500 * time.Millisecond }, "rate_limit.window"},
		{"bad strategy", func(c *ServerConfig) { c.RateLimit.KeyStrategy = "cookie" }, "key_strategy"},
		{"bad whitelist", func(c *ServerConfig) { c.RateLimit.WhitelistIPs = []string{"not-an-ip"} }, "whitelist_ips"},
		{"bad backend", func(c *ServerConfig) { c.Storage.Backend = "etcd" }, "storage.backend"},
		{"redis without addr", func(c *ServerConfig) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.Addr = ""
		}, "storage.redis.addr"},
		{"plain password", func(c *ServerConfig) {
			c.Users = []UserConfig{{Username: "bob", PasswordHash: "hunter2"}}
		}, "not an argon2id or bcrypt hash"},
		{"duplicate user", func(c *ServerConfig) {
			h := mustHash(t, "pw")
			c.Users = []UserConfig{{Username: "bob", PasswordHash: h}, {Username: "BOB", PasswordHash: h}}
		}, "duplicate username"},
		{"key id with colon", func(c *ServerConfig) {
			c.APIKeys = []APIKeyConfig{{ID: "a:b", SecretHash: mustHash(t, "s")}}
		}, "must not contain ':'"},
		{"postgres without timeout", func(c *ServerConfig) {
			c.Directory.Postgres.DSN = "postgres://stocker@db/stocker"
			c.Directory.Postgres.QueryTimeout = 0
		}, "directory.postgres.query_timeout"},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"bad sample ratio", func(c *ServerConfig) { c.Telemetry.Tracing.SampleRatio = 2 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Verify(cfg)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("Verify() error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Verify() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestVerify_ReportsAllProblems(t *testing.T) {
	cfg := validConfig(t)
	cfg.Auth.Secret = ""
	cfg.Storage.Backend = "etcd"

	err := Verify(cfg)
	if err == nil || !strings.Contains(err.Error(), "auth.secret") || !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("Verify() error = %v, want both problems", err)
	}
}

func TestVerify_RateLimitDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Limit = 0

	if err := Verify(cfg); err != nil {
		t.Errorf("disabled rate limiter settings should not be checked: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Redis.Password = "redis-password-123"
	cfg.Users = []UserConfig{{Username: "alice", PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", Roles: []string{"user"}}}
	cfg.APIKeys = []APIKeyConfig{{ID: "sgak-1", SecretHash: "$argon2id$...", Roles: []string{"service"}}}

	s := Sanitize(cfg)

	if cfg.Auth.Secret != testSecret {
		t.Error("original config should not be modified")
	}
	if s.Auth.Secret == testSecret || len(s.Auth.Secret) != len(testSecret) {
		t.Errorf("Auth.Secret = %q, want a same-length mask", s.Auth.Secret)
	}
	if s.Storage.Redis.Password == cfg.Storage.Redis.Password {
		t.Error("redis password should be masked")
	}
	if s.Users[0].PasswordHash != redacted || s.APIKeys[0].SecretHash != redacted {
		t.Error("hashes should be redacted")
	}
	if s.Users[0].Username != "alice" || s.APIKeys[0].ID != "sgak-1" {
		t.Error("identifiers should be kept")
	}

	s.Users[0].Roles[0] = "admin"
	if cfg.Users[0].Roles[0] != "user" {
		t.Error("Sanitize should deep-copy role slices")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"abc", "****"},
		{"abcdefgh", "****"},
		{"abcdefghi", "ab*****hi"},
		{"1234567890", "12******90"},
	}

	for _, tt := range tests {
		if got := maskSecret(tt.input); got != tt.expected {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"postgres://stocker:s3cret@db:5432/stocker?sslmode=require", "postgres://stocker:xxxxx@db:5432/stocker?sslmode=require"},
		{"postgres://stocker@db/stocker", "postgres://stocker@db/stocker"},
		{"host=db user=stocker password=s3cret dbname=stocker", "host=db user=stocker password=" + redacted + " dbname=stocker"},
		{"host=db user=stocker", "host=db user=stocker"},
	}

	for _, tt := range tests {
		if got := maskDSN(tt.input); got != tt.expected {
			t.Errorf("maskDSN(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockgate.yaml")
	content := `
server:
  http:
    addr: "0.0.0.0:9000"
auth:
  access_ttl: 15m
rate_limit:
  limit: 5
  window: 60s
  whitelist_ips: ["127.0.0.1"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("STOCKGATE_AUTH__SECRET", testSecret)
	t.Setenv("STOCKGATE_RATE_LIMIT__FAIL_CLOSED", "true")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != DefaultRefreshTTL {
		t.Errorf("RefreshTTL = %v, want default", cfg.Auth.RefreshTTL)
	}
	if cfg.RateLimit.Limit != 5 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %d/%v", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}
	if !cfg.RateLimit.FailClosed {
		t.Error("env should set rate_limit.fail_closed")
	}
	if cfg.Auth.Secret != testSecret {
		t.Error("env should set auth.secret")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	_, err := Load("", "")
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Load() error = %v, want ErrConfiguration", err)
	}
}
