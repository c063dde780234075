package benchmark

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/storage/memory"
	"github.com/yndnr/stockgate/internal/storage/redis"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

const benchSecret = "0123456789abcdef0123456789abcdef"

// ClientCounts defines the number of distinct clients for rate limit benchmarks.
var ClientCounts = []int{1, 1000, 10000, 100000}

// SmallClientCounts for quick benchmarks.
var SmallClientCounts = []int{1, 1000}

// newTokenService creates a token service with the default lifetimes.
func newTokenService(b *testing.B) *service.TokenService {
	b.Helper()
	cfg := service.DefaultTokenConfig()
	cfg.Secret = []byte(benchSecret)
	svc, err := service.NewTokenService(cfg)
	if err != nil {
		b.Fatalf("NewTokenService failed: %v", err)
	}
	return svc
}

// newAuthService creates an auth service over a directory holding one user
// and one service key. It returns the raw API key and its key ID.
func newAuthService(b *testing.B) (*service.AuthService, string, string) {
	b.Helper()
	hash, err := domain.HashSecret("bench-password")
	if err != nil {
		b.Fatalf("HashSecret failed: %v", err)
	}
	raw, key, err := service.GenerateAPIKey("bench", "svc-bench", []string{domain.RoleService})
	if err != nil {
		b.Fatalf("GenerateAPIKey failed: %v", err)
	}
	users := []domain.User{{
		ID:           "u-bench",
		Username:     "bench",
		PasswordHash: hash,
		Roles:        []string{domain.RoleUser},
		Active:       true,
	}}
	dir, err := memory.NewDirectory(users, []domain.APIKey{*key})
	if err != nil {
		b.Fatalf("NewDirectory failed: %v", err)
	}

	cfg := service.DefaultAuthServiceConfig()
	cfg.LoginAttemptsPerMinute = 1 << 30
	auth, err := service.NewAuthService(newTokenService(b), dir, dir, cfg)
	if err != nil {
		b.Fatalf("NewAuthService failed: %v", err)
	}
	return auth, raw, key.KeyID
}

// newMemoryLimiter creates a rate limiter over a process-local counter store.
func newMemoryLimiter(b *testing.B) *service.RateLimiter {
	b.Helper()
	return newLimiter(b, memory.NewCounterStore())
}

// newRedisLimiter creates a rate limiter over an in-process Redis server.
func newRedisLimiter(b *testing.B) *service.RateLimiter {
	b.Helper()
	mr := miniredis.RunT(b)
	store, err := redis.New(redis.Config{Addr: mr.Addr()})
	if err != nil {
		b.Fatalf("redis.New failed: %v", err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return newLimiter(b, store)
}

func newLimiter(b *testing.B, store service.CounterStore) *service.RateLimiter {
	b.Helper()
	l, err := service.NewRateLimiter(store, service.DefaultRateLimiterConfig(),
		service.WithRateLimiterLogger(logger.NewNop()))
	if err != nil {
		b.Fatalf("NewRateLimiter failed: %v", err)
	}
	return l
}

// clientKeys returns n distinct client identifiers.
func clientKeys(n int) []string {
	keys := make([]string, n)
	for i := range n {
		keys[i] = fmt.Sprintf("ip:10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
	}
	return keys
}

// benchWindow is long enough that no benchmark crosses a window boundary
// often enough to matter.
const benchWindow = time.Hour

// benchLimit is high enough that benchmarks measure admitted requests.
const benchLimit = int64(1) << 40

// reportMemStats reports memory statistics.
func reportMemStats(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithClientCounts runs a benchmark function with various client counts.
func runWithClientCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("clients_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}

func benchExpiry() time.Time {
	return time.Now().Add(benchWindow)
}

func shardLabel(n int) string {
	return fmt.Sprintf("shards_%d", n)
}
