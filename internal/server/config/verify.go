package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/yndnr/stockgate/internal/core/domain"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Verify validates the configuration. All problems are reported together in
// the details of a single ErrConfiguration.
func Verify(cfg *ServerConfig) error {
	var v verifier
	v.server(&cfg.Server)
	v.auth(&cfg.Auth)
	v.rateLimit(&cfg.RateLimit)
	v.storage(&cfg.Storage)
	v.directory(&cfg.Directory)
	v.users(cfg.Users)
	v.apiKeys(cfg.APIKeys)
	v.log(&cfg.Log)
	v.telemetry(&cfg.Telemetry)
	return v.err()
}

type verifier struct {
	problems []string
}

func (v *verifier) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *verifier) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return domain.ErrConfiguration.WithDetails(strings.Join(v.problems, "; "))
}

func (v *verifier) server(s *ServerSection) {
	if _, _, err := net.SplitHostPort(s.HTTP.Addr); err != nil {
		v.addf("server.http.addr %q: %v", s.HTTP.Addr, err)
	}
	if (s.HTTP.TLSCertFile == "") != (s.HTTP.TLSKeyFile == "") {
		v.addf("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{s.HTTP.TLSCertFile, s.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			v.addf("server.http tls file: %v", err)
		}
	}
	if s.HTTP.ShutdownTimeout <= 0 {
		v.addf("server.http.shutdown_timeout must be positive")
	}
}

func (v *verifier) auth(a *AuthSection) {
	switch {
	case a.Secret == "":
		v.addf("auth.secret is required")
	case len(a.Secret) < MinSecretLength:
		v.addf("auth.secret must be at least %d bytes", MinSecretLength)
	}
	if a.AccessTTL <= 0 {
		v.addf("auth.access_ttl must be positive")
	}
	if a.RefreshTTL <= 0 {
		v.addf("auth.refresh_ttl must be positive")
	}
	if a.AccessTTL > 0 && a.RefreshTTL > 0 && a.RefreshTTL < a.AccessTTL {
		v.addf("auth.refresh_ttl must not be shorter than auth.access_ttl")
	}
	if a.APIKeyCacheSize < 0 {
		v.addf("auth.api_key_cache_size must not be negative")
	}
	if a.LoginAttemptsPerMinute < 0 {
		v.addf("auth.login_attempts_per_minute must not be negative")
	}
}

func (v *verifier) rateLimit(r *RateLimitSection) {
	if !r.Enabled {
		return
	}
	if r.Limit < 1 {
		v.addf("rate_limit.limit must be at least 1")
	}
	if r.Window < time.Second {
		v.addf("rate_limit.window must be at least 1s")
	}
	if r.KeyStrategy != KeyStrategyIP && r.KeyStrategy != KeyStrategyPrincipal {
		v.addf("rate_limit.key_strategy %q: want %q or %q", r.KeyStrategy, KeyStrategyIP, KeyStrategyPrincipal)
	}
	if r.StoreTimeout <= 0 {
		v.addf("rate_limit.store_timeout must be positive")
	}
	for _, ip := range r.WhitelistIPs {
		if _, err := netip.ParsePrefix(ip); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(ip); err != nil {
			v.addf("rate_limit.whitelist_ips: %q is not an address or CIDR", ip)
		}
	}
}

func (v *verifier) storage(s *StorageSection) {
	switch s.Backend {
	case "memory":
	case "redis":
		if s.Redis.Addr == "" {
			v.addf("storage.redis.addr is required for the redis backend")
		}
		if s.Redis.DB < 0 {
			v.addf("storage.redis.db must not be negative")
		}
		t := s.Redis.TLS
		if t.Enabled && (t.CertFile == "") != (t.KeyFile == "") {
			v.addf("storage.redis.tls.cert_file and key_file must be set together")
		}
	default:
		v.addf("storage.backend %q: want memory or redis", s.Backend)
	}
}

func (v *verifier) directory(d *DirectorySection) {
	pg := d.Postgres
	if pg.DSN == "" {
		return
	}
	if pg.MaxOpenConns < 0 {
		v.addf("directory.postgres.max_open_conns must not be negative")
	}
	if pg.QueryTimeout <= 0 {
		v.addf("directory.postgres.query_timeout must be positive")
	}
}

func (v *verifier) users(users []UserConfig) {
	seen := make(map[string]bool, len(users))
	for i, u := range users {
		name := strings.ToLower(u.Username)
		if name == "" {
			v.addf("users[%d].username is required", i)
			continue
		}
		if seen[name] {
			v.addf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[name] = true
		if !domain.IsPasswordHash(u.PasswordHash) {
			v.addf("users[%d] %q: password_hash is not an argon2id or bcrypt hash", i, u.Username)
		}
	}
}

func (v *verifier) apiKeys(keys []APIKeyConfig) {
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		if k.ID == "" {
			v.addf("api_keys[%d].id is required", i)
			continue
		}
		if strings.Contains(k.ID, ":") {
			v.addf("api_keys[%d] %q: id must not contain ':'", i, k.ID)
		}
		if seen[k.ID] {
			v.addf("api_keys[%d]: duplicate id %q", i, k.ID)
		}
		seen[k.ID] = true
		if !domain.IsArgon2Hash(k.SecretHash) {
			v.addf("api_keys[%d] %q: secret_hash is not an argon2id hash", i, k.ID)
		}
	}
}

func (v *verifier) log(l *LogSection) {
	if !slices.Contains(validLogLevels, strings.ToLower(l.Level)) {
		v.addf("log.level %q: want one of %s", l.Level, strings.Join(validLogLevels, ", "))
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		v.addf("log.format %q: want json or text", l.Format)
	}
}

func (v *verifier) telemetry(t *TelemetrySection) {
	if r := t.Tracing.SampleRatio; r < 0 || r > 1 {
		v.addf("telemetry.tracing.sample_ratio %v: want a value in [0, 1]", r)
	}
}
