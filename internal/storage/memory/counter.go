package memory

import (
	"context"
	"time"

	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/pkg/cmap"
)

type counter struct {
	count    int64
	expireAt time.Time
}

// CounterStore is an in-memory rate limit counter store.
type CounterStore struct {
	counters *cmap.Map[string, counter]
	clock    clock.Clock
}

// CounterOption configures a CounterStore.
type CounterOption func(*CounterStore)

// WithClock sets the time source used to detect expired counters.
func WithClock(c clock.Clock) CounterOption {
	return func(s *CounterStore) { s.clock = c }
}

// WithShards sets the shard count of the underlying map.
func WithShards(n int) CounterOption {
	return func(s *CounterStore) { s.counters = cmap.NewWithShards[string, counter](n) }
}

// NewCounterStore creates an empty CounterStore.
func NewCounterStore(opts ...CounterOption) *CounterStore {
	s := &CounterStore{
		counters: cmap.New[string, counter](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.OrReal(s.clock)
	return s
}

// Increment adds one to key and returns the new count. A missing or expired
// counter restarts at 1 with the given expiry. The increment runs under the
// key's shard lock, so concurrent callers observe distinct counts.
func (s *CounterStore) Increment(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	c := s.counters.Update(key, func(cur counter, exists bool) counter {
		if !exists || !now.Before(cur.expireAt) {
			return counter{count: 1, expireAt: expireAt}
		}
		cur.count++
		return cur
	})
	return c.count, nil
}

// Get returns the live count for key.
func (s *CounterStore) Get(key string) (int64, bool) {
	c, ok := s.counters.Get(key)
	if !ok || !s.clock.Now().Before(c.expireAt) {
		return 0, false
	}
	return c.count, true
}

// Sweep deletes counters whose expiry has passed and returns how many were
// removed.
func (s *CounterStore) Sweep() int {
	now := s.clock.Now()
	return s.counters.RemoveIf(func(_ string, c counter) bool {
		return !now.Before(c.expireAt)
	})
}

// Len returns the number of stored counters, including expired ones not yet swept.
func (s *CounterStore) Len() int {
	return s.counters.Count()
}

// Ping always succeeds.
func (s *CounterStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close releases all counters.
func (s *CounterStore) Close() error {
	s.counters.Clear()
	return nil
}
