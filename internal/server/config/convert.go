package config

import (
	"fmt"
	"slices"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/infra/tlsroots"
	"github.com/yndnr/stockgate/internal/storage"
	"github.com/yndnr/stockgate/internal/storage/postgres"
	redisstore "github.com/yndnr/stockgate/internal/storage/redis"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
	"github.com/yndnr/stockgate/internal/telemetry/tracer"
)

// ToTokenConfig maps the auth section onto the token service config.
func ToTokenConfig(cfg *ServerConfig) service.TokenConfig {
	return service.TokenConfig{
		Secret:     []byte(cfg.Auth.Secret),
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	}
}

// ToAuthServiceConfig maps the auth section onto the auth service config.
// Clock and Recorder are left for the caller.
func ToAuthServiceConfig(cfg *ServerConfig) *service.AuthServiceConfig {
	return &service.AuthServiceConfig{
		CacheTTL:               cfg.Auth.APIKeyCacheTTL,
		CacheSize:              cfg.Auth.APIKeyCacheSize,
		LoginAttemptsPerMinute: cfg.Auth.LoginAttemptsPerMinute,
	}
}

// ToRateLimiterConfig maps the rate limit section onto the limiter config.
func ToRateLimiterConfig(cfg *ServerConfig) service.RateLimiterConfig {
	c := service.DefaultRateLimiterConfig()
	if cfg.RateLimit.KeyPrefix != "" {
		c.KeyPrefix = cfg.RateLimit.KeyPrefix
	}
	if cfg.RateLimit.StoreTimeout > 0 {
		c.StoreTimeout = cfg.RateLimit.StoreTimeout
	}
	c.FailClosed = cfg.RateLimit.FailClosed
	return c
}

// ToStorageConfig maps the storage section onto the engine config, loading
// redis TLS material when enabled.
func ToStorageConfig(cfg *ServerConfig, log logger.Logger) (storage.Config, error) {
	s := cfg.Storage
	out := storage.Config{
		Backend:       storage.Backend(s.Backend),
		SweepInterval: s.SweepInterval,
		Redis: redisstore.Config{
			Addr:        s.Redis.Addr,
			Password:    s.Redis.Password,
			DB:          s.Redis.DB,
			PoolSize:    s.Redis.PoolSize,
			DialTimeout: s.Redis.DialTimeout,
		},
		Logger: log,
	}

	if s.Backend == string(storage.BackendRedis) && s.Redis.TLS.Enabled {
		tlsCfg, err := tlsroots.ClientConfig(tlsroots.ClientOptions{
			CAFile:     s.Redis.TLS.CAFile,
			CertFile:   s.Redis.TLS.CertFile,
			KeyFile:    s.Redis.TLS.KeyFile,
			ServerName: s.Redis.TLS.ServerName,
		})
		if err != nil {
			return storage.Config{}, fmt.Errorf("redis tls: %w", err)
		}
		out.Redis.TLS = tlsCfg
	}
	return out, nil
}

// ToPostgresConfig maps the postgres directory section. ok is false when
// the lookup is disabled.
func ToPostgresConfig(cfg *ServerConfig) (postgres.Config, bool) {
	pg := cfg.Directory.Postgres
	if pg.DSN == "" {
		return postgres.Config{}, false
	}
	return postgres.Config{
		DSN:          pg.DSN,
		MaxOpenConns: pg.MaxOpenConns,
		QueryTimeout: pg.QueryTimeout,
	}, true
}

// ToDirectory converts configured accounts to domain users and API keys.
// Users without roles get the user role.
func ToDirectory(cfg *ServerConfig) ([]domain.User, []domain.APIKey) {
	users := make([]domain.User, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		roles := slices.Clone(u.Roles)
		if len(roles) == 0 {
			roles = []string{domain.RoleUser}
		}
		users = append(users, domain.User{
			ID:           u.Username,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Roles:        roles,
			Active:       !u.Disabled,
		})
	}

	keys := make([]domain.APIKey, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys = append(keys, domain.APIKey{
			KeyID:      k.ID,
			Name:       k.Name,
			SecretHash: k.SecretHash,
			Subject:    k.Subject,
			Roles:      slices.Clone(k.Roles),
			Enabled:    !k.Disabled,
		})
	}
	return users, keys
}

// ToLoggerConfig maps the log section onto the logger config.
func ToLoggerConfig(cfg *ServerConfig) logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.AddSource = cfg.Log.AddSource
	return lc
}

// ToTracerConfig maps the tracing section onto the tracer config.
func ToTracerConfig(cfg *ServerConfig, version string) tracer.Config {
	tc := tracer.DefaultConfig()
	tc.ServiceVersion = version
	tc.Endpoint = cfg.Telemetry.Tracing.Endpoint
	tc.Insecure = cfg.Telemetry.Tracing.Insecure
	tc.SampleRatio = cfg.Telemetry.Tracing.SampleRatio
	return tc
}
