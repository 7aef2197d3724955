package cache

import (
	"fmt"
	"time"

	cacheerrors "github.com/mirkobrombin/go-smallcache/v1/errors"
)

// Config holds the two bounds of an InMemoryCache. Zero values disable the
// corresponding bound.
type Config struct {
	// MaxEntries is the number of entries kept after a cleaner pass.
	MaxEntries int
	// TTL is the default time-to-live of entries stored with
	// DefaultExpiration.
	TTL time.Duration
}

// Validate reports negative bounds, which the sanitizing constructors would
// silently treat as disabled.
func (c Config) Validate() error {
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: %d", cacheerrors.ErrInvalidMaxEntries, c.MaxEntries)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: %s", cacheerrors.ErrInvalidTTL, c.TTL)
	}
	return nil
}

// ConfigOptions translates cfg into options, disabling every non-positive
// bound.
func ConfigOptions[T any](cfg Config) []InMemoryOption[T] {
	return []InMemoryOption[T]{
		WithMaxEntries[T](cfg.MaxEntries),
		WithDefaultTTL[T](cfg.TTL),
	}
}

// NewFromConfig returns an InMemoryCache bounded by cfg. Invalid bounds are
// treated as unset. opts are applied after the bounds.
func NewFromConfig[T any](cfg Config, opts ...InMemoryOption[T]) *InMemoryCache[T] {
	return NewInMemory[T](append(ConfigOptions[T](cfg), opts...)...)
}

// NewStrict is like NewFromConfig but rejects invalid bounds.
func NewStrict[T any](cfg Config, opts ...InMemoryOption[T]) (*InMemoryCache[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("smallcache: new cache: %w", err)
	}
	return NewFromConfig[T](cfg, opts...), nil
}
