package config

import (
	"net/url"
	"slices"
	"strings"
)

const redacted = "***REDACTED***"

// Sanitize returns a deep copy of the config with secrets masked, for
// logging and "config show".
func Sanitize(cfg *ServerConfig) *ServerConfig {
	s := *cfg

	s.Auth.Secret = maskSecret(s.Auth.Secret)
	s.Storage.Redis.Password = maskSecret(s.Storage.Redis.Password)
	s.Directory.Postgres.DSN = maskDSN(s.Directory.Postgres.DSN)

	s.Server.CORS.AllowedOrigins = slices.Clone(cfg.Server.CORS.AllowedOrigins)
	s.RateLimit.ExcludePaths = slices.Clone(cfg.RateLimit.ExcludePaths)
	s.RateLimit.WhitelistIPs = slices.Clone(cfg.RateLimit.WhitelistIPs)

	s.Users = make([]UserConfig, len(cfg.Users))
	for i, u := range cfg.Users {
		u.Roles = slices.Clone(u.Roles)
		if u.PasswordHash != "" {
			u.PasswordHash = redacted
		}
		s.Users[i] = u
	}

	s.APIKeys = make([]APIKeyConfig, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		k.Roles = slices.Clone(k.Roles)
		if k.SecretHash != "" {
			k.SecretHash = redacted
		}
		s.APIKeys[i] = k
	}

	return &s
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
	}
}

// maskDSN hides the password of a postgres:// URL or a key=value DSN.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return redacted
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		return u.String()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=" + redacted
		}
	}
	return strings.Join(fields, " ")
}
