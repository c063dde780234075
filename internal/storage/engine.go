package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/internal/storage/memory"
	redisstore "github.com/yndnr/stockgate/internal/storage/redis"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// Backend names a counter store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// DefaultSweepInterval is how often the memory backend drops expired counters.
const DefaultSweepInterval = 30 * time.Second

// Config configures the storage engine.
type Config struct {
	// Backend selects the counter store.
	Backend Backend

	// SweepInterval is the memory backend's cleanup period.
	SweepInterval time.Duration

	// Redis configures the redis backend.
	Redis redisstore.Config

	// Clock drives memory counter expiry.
	Clock clock.Clock

	// Logger is the structured logger.
	Logger logger.Logger
}

// counterBackend is what the engine needs from either store.
type counterBackend interface {
	service.CounterStore
	Ping(ctx context.Context) error
	Close() error
}

// Engine owns the configured counter store.
type Engine struct {
	cfg      Config
	counters counterBackend
	memory   *memory.CounterStore
	logger   logger.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open creates the configured backend. A redis backend that cannot be
// reached is still returned: the rate limiter's failure policy decides how
// requests are treated until it recovers.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	switch cfg.Backend {
	case BackendMemory, "":
		e.cfg.Backend = BackendMemory
		e.memory = memory.NewCounterStore(memory.WithClock(cfg.Clock))
		e.counters = e.memory
		go e.sweepLoop()

	case BackendRedis:
		store, err := redisstore.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		e.counters = store
		close(e.doneCh)

		if err := store.Ping(ctx); err != nil {
			e.logger.Warn("redis counter store unreachable at startup",
				"addr", cfg.Redis.Addr,
				"error", err,
			)
		} else {
			e.logger.Info("connected to redis counter store", "addr", cfg.Redis.Addr)
		}

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}

	return e, nil
}

// Backend returns the active backend name.
func (e *Engine) Backend() Backend { return e.cfg.Backend }

// Counters returns the counter store for the rate limiter.
func (e *Engine) Counters() service.CounterStore { return e.counters }

// Ping checks the backend.
func (e *Engine) Ping(ctx context.Context) error {
	return e.counters.Ping(ctx)
}

func (e *Engine) sweepLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := e.memory.Sweep(); n > 0 {
				e.logger.Debug("swept expired rate limit counters", "count", n)
			}
		case <-e.stopCh:
			return
		}
	}
}

// Close stops background work and closes the backend.
func (e *Engine) Close() error {
	e.logger.Info("shutting down storage engine", "backend", string(e.cfg.Backend))

	close(e.stopCh)
	<-e.doneCh

	if err := e.counters.Close(); err != nil {
		e.logger.Error("close counter store failed", "error", err)
		return err
	}
	return nil
}
