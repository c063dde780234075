package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultIssuer                 = "stockgate"
	DefaultAccessTTL              = 30 * time.Minute
	DefaultRefreshTTL             = 7 * 24 * time.Hour
	DefaultAPIKeyCacheTTL         = 60 * time.Second
	DefaultAPIKeyCacheSize        = 10000
	DefaultLoginAttemptsPerMinute = 10

	DefaultRateLimit     = 100
	DefaultRateWindow    = 60 * time.Second
	DefaultKeyPrefix     = "stockgate:rl"
	DefaultStoreTimeout  = 100 * time.Millisecond
	DefaultSweepInterval = 30 * time.Second

	DefaultStorageBackend   = "memory"
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultRedisDialTimeout = time.Second

	DefaultPostgresMaxOpenConns = 4
	DefaultPostgresQueryTimeout = 2 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// MinSecretLength is the HS256 key size.
	MinSecretLength = 32
)

// DefaultExcludePaths are never rate limited.
var DefaultExcludePaths = []string{"/health", "/ready", "/metrics"}

// Default returns the default server configuration. The signing secret is
// left empty and must be supplied.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				IdleTimeout:     DefaultIdleTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
			CORS: CORSConfig{
				MaxAge: 10 * time.Minute,
			},
		},
		Auth: AuthSection{
			Issuer:                 DefaultIssuer,
			AccessTTL:              DefaultAccessTTL,
			RefreshTTL:             DefaultRefreshTTL,
			APIKeyCacheTTL:         DefaultAPIKeyCacheTTL,
			APIKeyCacheSize:        DefaultAPIKeyCacheSize,
			LoginAttemptsPerMinute: DefaultLoginAttemptsPerMinute,
		},
		RateLimit: RateLimitSection{
			Enabled:      true,
			Limit:        DefaultRateLimit,
			Window:       DefaultRateWindow,
			KeyStrategy:  KeyStrategyIP,
			KeyPrefix:    DefaultKeyPrefix,
			StoreTimeout: DefaultStoreTimeout,
			ExcludePaths: append([]string(nil), DefaultExcludePaths...),
		},
		Storage: StorageSection{
			Backend:       DefaultStorageBackend,
			SweepInterval: DefaultSweepInterval,
			Redis: RedisSection{
				Addr:        DefaultRedisAddr,
				DialTimeout: DefaultRedisDialTimeout,
			},
		},
		Directory: DirectorySection{
			Postgres: PostgresSection{
				MaxOpenConns: DefaultPostgresMaxOpenConns,
				QueryTimeout: DefaultPostgresQueryTimeout,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetrySection{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{SampleRatio: 1.0},
		},
	}
}
