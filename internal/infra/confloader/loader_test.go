package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Server struct {
		HTTPAddress string `koanf:"http_address"`
		Enabled     bool   `koanf:"enabled"`
	} `koanf:"server"`
	Auth struct {
		AccessTTL string `koanf:"access_ttl"`
		Issuer    string `koanf:"issuer"`
	} `koanf:"auth"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
		WithDotEnvFile("/path/to/.env"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
	if l.dotEnvPath != "/path/to/.env" {
		t.Errorf("dotEnvPath = %q, want %q", l.dotEnvPath, "/path/to/.env")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  http_address: "0.0.0.0:8080"
  enabled: true
auth:
  access_ttl: "30m"
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if addr := l.GetString("server.http_address"); addr != "0.0.0.0:8080" {
		t.Errorf("server.http_address = %q, want %q", addr, "0.0.0.0:8080")
	}
	if !l.GetBool("server.enabled") {
		t.Error("server.enabled should be true")
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("STOCKGATE_SERVER__HTTP_ADDRESS", "127.0.0.1:9090")
	t.Setenv("STOCKGATE_AUTH__ACCESS_TTL", "15m")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"server.http_address", "127.0.0.1:9090"},
		{"auth.access_ttl", "15m"},
	}
	for _, tt := range tests {
		if got := l.GetString(tt.key); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER__PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if port := l.GetString("server.port"); port != "9090" {
		t.Errorf("server.port = %q, want %q", port, "9090")
	}
}

func TestLoader_LoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "STOCKGATE_AUTH__ISSUER=from-dotenv\nOTHER_VAR=ignored\n")

	l := NewLoader()
	if err := l.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := l.GetString("auth.issuer"); got != "from-dotenv" {
		t.Errorf("auth.issuer = %q, want %q", got, "from-dotenv")
	}
	if l.Get("other_var") != nil {
		t.Error("keys without the prefix should be ignored")
	}
	if _, set := os.LookupEnv("STOCKGATE_AUTH__ISSUER"); set {
		t.Error("LoadDotEnv should not modify the process environment")
	}
}

func TestLoader_LoadDotEnv_Missing(t *testing.T) {
	l := NewLoader()
	if err := l.LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()

	if err := l.LoadMap(map[string]any{
		"server.http_address": "localhost:3000",
		"debug":               true,
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if addr := l.GetString("server.http_address"); addr != "localhost:3000" {
		t.Errorf("server.http_address = %q, want %q", addr, "localhost:3000")
	}
	if !l.GetBool("debug") {
		t.Error("debug should be true")
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
server:
  http_address: "from-file:8080"
auth:
  issuer: "from-file"
  access_ttl: "from-file"
`)
	envPath := writeFile(t, ".env", "STOCKGATE_AUTH__ISSUER=from-dotenv\nSTOCKGATE_AUTH__ACCESS_TTL=from-dotenv\n")
	t.Setenv("STOCKGATE_AUTH__ACCESS_TTL", "from-env")

	l := NewLoader(
		WithDefaults(map[string]any{
			"server.http_address": "from-default",
			"server.enabled":      true,
		}),
		WithConfigFile(cfgPath),
		WithDotEnvFile(envPath),
	)

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Server.Enabled {
		t.Error("default should apply when no other source sets the key")
	}
	if cfg.Server.HTTPAddress != "from-file:8080" {
		t.Errorf("HTTPAddress = %q, want file to override default", cfg.Server.HTTPAddress)
	}
	if cfg.Auth.Issuer != "from-dotenv" {
		t.Errorf("Issuer = %q, want .env to override file", cfg.Auth.Issuer)
	}
	if cfg.Auth.AccessTTL != "from-env" {
		t.Errorf("AccessTTL = %q, want env to override .env", cfg.Auth.AccessTTL)
	}
}

func TestLoader_IsLoaded(t *testing.T) {
	l := NewLoader()

	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_AllAndKeys(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{
		"key1": "value1",
		"key2": "value2",
	})

	if n := len(l.All()); n < 2 {
		t.Errorf("All() returned %d keys, want at least 2", n)
	}
	if n := len(l.Keys()); n < 2 {
		t.Errorf("Keys() returned %d keys, want at least 2", n)
	}
}

func TestLoader_GetInt(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{
		"port": 8080,
	})

	if port := l.GetInt("port"); port != 8080 {
		t.Errorf("GetInt(port) = %d, want %d", port, 8080)
	}
}
