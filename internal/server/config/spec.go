package config

import "time"

// ServerConfig is the root configuration for stockgate-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Auth      AuthSection      `koanf:"auth"`
	RateLimit RateLimitSection `koanf:"rate_limit"`
	Storage   StorageSection   `koanf:"storage"`
	Directory DirectorySection `koanf:"directory"`
	Users     []UserConfig     `koanf:"users"`
	APIKeys   []APIKeyConfig   `koanf:"api_keys"`
	Log       LogSection       `koanf:"log"`
	Telemetry TelemetrySection `koanf:"telemetry"`
}

// ServerSection configures the HTTP listener.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
	CORS CORSConfig `koanf:"cors"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `koanf:"trust_proxy"`
}

// TLSEnabled reports whether the listener serves HTTPS.
func (h HTTPConfig) TLSEnabled() bool {
	return h.TLSCertFile != "" && h.TLSKeyFile != ""
}

// CORSConfig configures cross-origin requests. No origins disables CORS.
type CORSConfig struct {
	AllowedOrigins []string      `koanf:"allowed_origins"`
	MaxAge         time.Duration `koanf:"max_age"`
}

// AuthSection configures token signing and credential checks.
type AuthSection struct {
	// Secret is the HMAC-SHA256 signing key.
	Secret     string        `koanf:"secret"`
	Issuer     string        `koanf:"issuer"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`

	APIKeyCacheTTL  time.Duration `koanf:"api_key_cache_ttl"`
	APIKeyCacheSize int           `koanf:"api_key_cache_size"`

	LoginAttemptsPerMinute int `koanf:"login_attempts_per_minute"`
}

// Rate limit key strategies.
const (
	KeyStrategyIP        = "ip"
	KeyStrategyPrincipal = "principal"
)

// RateLimitSection configures the request rate limiter.
type RateLimitSection struct {
	Enabled bool          `koanf:"enabled"`
	Limit   int64         `koanf:"limit"`
	Window  time.Duration `koanf:"window"`

	// KeyStrategy is "ip" or "principal".
	KeyStrategy string `koanf:"key_strategy"`
	KeyPrefix   string `koanf:"key_prefix"`

	StoreTimeout time.Duration `koanf:"store_timeout"`
	FailClosed   bool          `koanf:"fail_closed"`

	// ExcludePaths are never counted. A trailing "*" matches a prefix.
	ExcludePaths []string `koanf:"exclude_paths"`

	// WhitelistIPs are never counted. Entries are addresses or CIDRs.
	WhitelistIPs []string `koanf:"whitelist_ips"`
}

// StorageSection configures the counter store.
type StorageSection struct {
	// Backend is "memory" or "redis".
	Backend       string        `koanf:"backend"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Redis         RedisSection  `koanf:"redis"`
}

// RedisSection configures the shared redis counter store.
type RedisSection struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	PoolSize    int           `koanf:"pool_size"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	TLS         RedisTLS      `koanf:"tls"`
}

// RedisTLS configures TLS to redis.
type RedisTLS struct {
	Enabled    bool   `koanf:"enabled"`
	CAFile     string `koanf:"ca_file"`
	CertFile   string `koanf:"cert_file"`
	KeyFile    string `koanf:"key_file"`
	ServerName string `koanf:"server_name"`
}

// DirectorySection configures account lookups beyond the configured users.
type DirectorySection struct {
	Postgres PostgresSection `koanf:"postgres"`
}

// PostgresSection configures lookups in the STOCKER users table. Configured
// users are consulted first.
type PostgresSection struct {
	// DSN enables the lookup. Empty disables it.
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// UserConfig is a password account.
type UserConfig struct {
	Username string `koanf:"username"`
	// PasswordHash is an argon2id PHC string (see "stockgate-cli hash password")
	// or a bcrypt hash.
	PasswordHash string   `koanf:"password_hash"`
	Roles        []string `koanf:"roles"`
	Disabled     bool     `koanf:"disabled"`
}

// APIKeyConfig is a machine credential.
type APIKeyConfig struct {
	ID         string   `koanf:"id"`
	Name       string   `koanf:"name"`
	SecretHash string   `koanf:"secret_hash"`
	Subject    string   `koanf:"subject"`
	Roles      []string `koanf:"roles"`
	Disabled   bool     `koanf:"disabled"`
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add_source"`

	// Watch re-applies log.level when the config file changes.
	Watch bool `koanf:"watch"`
}

// TelemetrySection configures metrics and tracing.
type TelemetrySection struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Tracing TracingConfig `koanf:"tracing"`
}

// MetricsConfig configures the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector (host:port). Empty disables export.
	Endpoint    string  `koanf:"endpoint"`
	Insecure    bool    `koanf:"insecure"`
	SampleRatio float64 `koanf:"sample_ratio"`
}
