package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// RistrettoCache implements Cache using dgraph-io/ristretto.
//
// Every entry costs 1, so MaxCost is the entry limit. Unlike InMemoryCache
// the admission and eviction policy is TinyLFU, not insertion order.
type RistrettoCache[T any] struct {
	c          *ristretto.Cache
	defaultTTL time.Duration
}

type ristrettoSettings struct {
	cfg        ristretto.Config
	defaultTTL time.Duration
}

// RistrettoOption configures the underlying ristretto cache.
type RistrettoOption func(*ristrettoSettings)

// WithRistretto applies a custom ristretto configuration, replacing the
// defaults entirely. Set IgnoreInternalCost in cfg to keep MaxCost an entry
// count, since Set charges a cost of 1 per entry.
//
// If cfg is nil, defaults are used.
func WithRistretto(cfg *ristretto.Config) RistrettoOption {
	return func(s *ristrettoSettings) {
		if cfg == nil {
			return
		}
		s.cfg = *cfg
	}
}

// WithEntryLimit bounds the cache to n entries. Non-positive values keep
// the default limit.
func WithEntryLimit(n int) RistrettoOption {
	return func(s *ristrettoSettings) {
		if n <= 0 {
			return
		}
		s.cfg.MaxCost = int64(n)
		s.cfg.NumCounters = int64(n) * 10
	}
}

// WithRistrettoTTL sets the TTL applied to entries stored with
// DefaultExpiration.
func WithRistrettoTTL(d time.Duration) RistrettoOption {
	return func(s *ristrettoSettings) {
		if d > 0 {
			s.defaultTTL = d
		}
	}
}

// newRistrettoSettings applies opts over the defaults.
func newRistrettoSettings(opts ...RistrettoOption) *ristrettoSettings {
	s := &ristrettoSettings{cfg: ristretto.Config{
		NumCounters: 1e6,     // number of keys to track frequency of (1M).
		MaxCost:     1 << 17, // maximum number of entries (128k).
		BufferItems: 64,      // number of keys per Get buffer.

		IgnoreInternalCost: true,
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRistretto returns a Cache backed by ristretto.
//
// Default configuration aims for a generous in-memory cache.
func NewRistretto[T any](opts ...RistrettoOption) *RistrettoCache[T] {
	s := newRistrettoSettings(opts...)
	rc, err := ristretto.NewCache(&s.cfg)
	if err != nil {
		panic(err)
	}
	return &RistrettoCache[T]{c: rc, defaultTTL: s.defaultTTL}
}

// Get implements Cache.Get.
func (r *RistrettoCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	default:
	}
	v, ok := r.c.Get(key)
	if !ok {
		var zero T
		return zero, false, nil
	}
	val, _ := v.(T)
	return val, true, nil
}

// Set implements Cache.Set.
func (r *RistrettoCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.c.SetWithTTL(key, value, 1, resolveTTL(ttl, r.defaultTTL))
	r.c.Wait()
	return nil
}

// Delete implements Cache.Delete.
func (r *RistrettoCache[T]) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.c.Del(key)
	r.c.Wait()
	return nil
}

// Flush implements Cache.Flush.
func (r *RistrettoCache[T]) Flush(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.c.Clear()
	return nil
}

// Close releases resources held by the cache.
func (r *RistrettoCache[T]) Close() {
	r.c.Close()
}

var _ Cache[int] = (*RistrettoCache[int])(nil)
