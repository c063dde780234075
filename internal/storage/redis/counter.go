// Package redis provides a rate limit counter store backed by Redis, shared
// by every stockgate instance pointing at the same server.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	// DialTimeout bounds connection establishment (default: 1s).
	DialTimeout time.Duration

	// PoolSize is the maximum number of connections (default: go-redis default).
	PoolSize int
}

// CounterStore implements the rate limiter CounterStore on Redis.
type CounterStore struct {
	client *redis.Client
}

// New creates a CounterStore. It does not contact the server; use Ping to
// check connectivity.
func New(cfg Config) (*CounterStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		TLSConfig:   cfg.TLS,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})
	return &CounterStore{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *CounterStore {
	return &CounterStore{client: client}
}

// Increment runs INCR and PEXPIREAT in one MULTI/EXEC transaction. The
// expiry is rewritten on every increment with the same window-derived
// instant, so a live counter is never shortened.
func (s *CounterStore) Increment(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.PExpireAt(ctx, key, expireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: increment %s: %w", key, err)
	}
	return counter.Val(), nil
}

// Get returns the current count for key.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Ping checks that the server is reachable.
func (s *CounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *CounterStore) Close() error {
	return s.client.Close()
}
