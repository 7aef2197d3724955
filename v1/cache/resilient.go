package cache

import (
	"context"
	"log/slog"
	"time"
)

// ResilientCache wraps a Cache implementation and suppresses errors,
// logging them instead of returning them. A closed cache or a canceled
// context then reads as a miss and writes are skipped.
type ResilientCache[T any] struct {
	inner  Cache[T]
	logger *slog.Logger
}

// NewResilient creates a new ResilientCache wrapper logging to
// slog.Default().
func NewResilient[T any](inner Cache[T]) *ResilientCache[T] {
	return &ResilientCache[T]{inner: inner, logger: slog.Default()}
}

// Get implements Cache.Get.
func (r *ResilientCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	val, ok, err := r.inner.Get(ctx, key)
	if err != nil {
		r.logger.Warn("smallcache: get failed (resiliency active)", "key", key, "error", err)
		var zero T
		return zero, false, nil
	}
	return val, ok, nil
}

// Set implements Cache.Set.
func (r *ResilientCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if err := r.inner.Set(ctx, key, value, ttl); err != nil {
		r.logger.Warn("smallcache: set failed (resiliency active)", "key", key, "error", err)
	}
	return nil
}

// Delete implements Cache.Delete.
func (r *ResilientCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.inner.Delete(ctx, key); err != nil {
		r.logger.Warn("smallcache: delete failed (resiliency active)", "key", key, "error", err)
	}
	return nil
}

// Flush implements Cache.Flush.
func (r *ResilientCache[T]) Flush(ctx context.Context) error {
	if err := r.inner.Flush(ctx); err != nil {
		r.logger.Warn("smallcache: flush failed (resiliency active)", "error", err)
	}
	return nil
}

var _ Cache[int] = (*ResilientCache[int])(nil)
