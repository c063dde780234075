package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// CounterStore is the shared counter backend of the rate limiter.
//
// Increment must atomically add one to key and return the new value,
// creating the key at 1 when absent. expireAt is a hint for reclaiming the
// key once its window has passed; it must not reset a live counter.
type CounterStore interface {
	Increment(ctx context.Context, key string, expireAt time.Time) (int64, error)
}

// Rate limiter defaults.
const (
	DefaultRateLimitKeyPrefix = "stockgate:rl"
	DefaultStoreTimeout       = 100 * time.Millisecond
	DefaultExpiryGrace        = time.Second
)

// Outcome labels reported to the Recorder.
const (
	OutcomeAllowed     = "allowed"
	OutcomeRejected    = "rejected"
	OutcomeDegraded    = "degraded"
	OutcomeUnavailable = "unavailable"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// KeyPrefix namespaces counter keys in a shared store.
	KeyPrefix string

	// StoreTimeout bounds each store call.
	StoreTimeout time.Duration

	// ExpiryGrace is added to the window end when setting the counter expiry.
	ExpiryGrace time.Duration

	// FailClosed rejects requests with ErrCounterStoreUnavailable when the
	// store fails. The default is to admit them uncounted.
	FailClosed bool
}

// DefaultRateLimiterConfig returns the default fail-open configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		KeyPrefix:    DefaultRateLimitKeyPrefix,
		StoreTimeout: DefaultStoreTimeout,
		ExpiryGrace:  DefaultExpiryGrace,
	}
}

// RateLimiter counts requests per client in fixed, epoch-aligned windows.
//
// All counting happens in the CounterStore, so instances sharing a store
// enforce one combined quota per client.
type RateLimiter struct {
	store  CounterStore
	cfg    RateLimiterConfig
	clock  clock.Clock
	logger logger.Logger
	rec    Recorder
	tracer trace.Tracer

	// storeWarn throttles store-failure warnings during an outage.
	storeWarn rate.Sometimes
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterClock sets the time source used to select windows.
func WithRateLimiterClock(c clock.Clock) RateLimiterOption {
	return func(l *RateLimiter) { l.clock = c }
}

// WithRateLimiterLogger sets the logger for store failures.
func WithRateLimiterLogger(lg logger.Logger) RateLimiterOption {
	return func(l *RateLimiter) { l.logger = lg }
}

// WithRateLimiterRecorder sets the metrics recorder.
func WithRateLimiterRecorder(r Recorder) RateLimiterOption {
	return func(l *RateLimiter) { l.rec = r }
}

// NewRateLimiter creates a RateLimiter over store.
func NewRateLimiter(store CounterStore, cfg RateLimiterConfig, opts ...RateLimiterOption) (*RateLimiter, error) {
	if store == nil {
		return nil, domain.ErrConfiguration.WithDetails("rate limiter requires a counter store")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRateLimitKeyPrefix
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.ExpiryGrace < 0 {
		cfg.ExpiryGrace = 0
	}

	l := &RateLimiter{
		store:     store,
		cfg:       cfg,
		tracer:    otel.Tracer("stockgate/ratelimit"),
		storeWarn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.clock = clock.OrReal(l.clock)
	l.rec = orNop(l.rec)
	if l.logger == nil {
		l.logger = logger.Default()
	}
	return l, nil
}

// FailClosed reports whether store failures reject requests.
func (l *RateLimiter) FailClosed() bool { return l.cfg.FailClosed }

// CheckAndIncrement counts one request for clientKey in the current window
// and decides whether it is within limit.
//
// A rejected request returns the Decision together with
// ErrRateLimitExceeded; RetryAfter is the time left until the window ends.
// Rejected requests still consume a count. When the store fails the request
// is admitted with Degraded set, or rejected with ErrCounterStoreUnavailable
// when the limiter is configured fail-closed.
func (l *RateLimiter) CheckAndIncrement(ctx context.Context, clientKey string, limit int64, window time.Duration) (domain.Decision, error) {
	if clientKey == "" {
		return domain.Decision{}, domain.ErrMissingArgument.WithDetails("client key")
	}
	if limit < 1 {
		return domain.Decision{}, domain.ErrConfiguration.WithDetails("rate limit must be at least 1")
	}
	if window < time.Second {
		return domain.Decision{}, domain.ErrConfiguration.WithDetails("rate limit window must be at least 1s")
	}

	ctx, span := l.tracer.Start(ctx, "ratelimit.CheckAndIncrement",
		trace.WithAttributes(
			attribute.Int64("ratelimit.limit", limit),
			attribute.String("ratelimit.window", window.String()),
		))
	defer span.End()

	now := l.clock.Now()
	w := domain.WindowAt(now, window)
	d := domain.Decision{Limit: limit, ResetAt: w.End}

	storeCtx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	count, err := l.store.Increment(storeCtx, l.counterKey(clientKey, w.ID), w.End.Add(l.cfg.ExpiryGrace))
	cancel()

	if err != nil {
		span.RecordError(err)
		return l.storeFailure(clientKey, d, err, span)
	}

	d.Count = count
	d.Remaining = max(limit-count, 0)
	span.SetAttributes(attribute.Int64("ratelimit.count", count))

	if count > limit {
		d.RetryAfter = w.End.Sub(now)
		l.rec.RateLimitDecision(OutcomeRejected)
		span.SetAttributes(attribute.String("ratelimit.outcome", OutcomeRejected))
		return d, domain.ErrRateLimitExceeded.WithDetails(
			fmt.Sprintf("limit of %d requests per %s reached", limit, window))
	}

	d.Allowed = true
	l.rec.RateLimitDecision(OutcomeAllowed)
	span.SetAttributes(attribute.String("ratelimit.outcome", OutcomeAllowed))
	return d, nil
}

func (l *RateLimiter) storeFailure(clientKey string, d domain.Decision, err error, span trace.Span) (domain.Decision, error) {
	l.storeWarn.Do(func() {
		l.logger.Warn("counter store unavailable",
			"client_key", clientKey,
			"fail_closed", l.cfg.FailClosed,
			"error", err,
		)
	})

	if l.cfg.FailClosed {
		l.rec.RateLimitDecision(OutcomeUnavailable)
		span.SetStatus(codes.Error, "counter store unavailable")
		return d, domain.ErrCounterStoreUnavailable.WithCause(err)
	}

	d.Allowed = true
	d.Degraded = true
	d.Remaining = d.Limit
	l.rec.RateLimitDecision(OutcomeDegraded)
	span.SetAttributes(attribute.String("ratelimit.outcome", OutcomeDegraded))
	return d, nil
}

func (l *RateLimiter) counterKey(clientKey string, windowID int64) string {
	return fmt.Sprintf("%s:%s:%d", l.cfg.KeyPrefix, clientKey, windowID)
}
