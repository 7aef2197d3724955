package cache

import "time"

// Strategy defines the cache eviction policy used by cache.New.
type Strategy int

const (
	// InsertionStrategy evicts the oldest inserted entries first.
	InsertionStrategy Strategy = iota
	// LFUStrategy uses a least-frequently-used eviction policy.
	LFUStrategy
)

// Option configures cache.New.
type Option[T any] func(*factoryConfig[T])

type factoryConfig[T any] struct {
	strategy Strategy
	cfg      Config
	inMemory []InMemoryOption[T]
}

// WithStrategy selects the eviction strategy to use. The default is
// InsertionStrategy.
func WithStrategy[T any](s Strategy) Option[T] {
	return func(fc *factoryConfig[T]) {
		fc.strategy = s
	}
}

// WithCapacity bounds the number of entries.
func WithCapacity[T any](n int) Option[T] {
	return func(fc *factoryConfig[T]) {
		fc.cfg.MaxEntries = n
	}
}

// WithTTL sets the default TTL.
func WithTTL[T any](d time.Duration) Option[T] {
	return func(fc *factoryConfig[T]) {
		fc.cfg.TTL = d
	}
}

// WithInMemoryOptions passes extra options to NewInMemory. They are ignored
// by other strategies.
func WithInMemoryOptions[T any](opts ...InMemoryOption[T]) Option[T] {
	return func(fc *factoryConfig[T]) {
		fc.inMemory = append(fc.inMemory, opts...)
	}
}

// New returns a Cache using the selected strategy.
//
// Both strategies implement Close; callers owning the cache should type
// assert to interface{ Close() } when done with it.
func New[T any](opts ...Option[T]) Cache[T] {
	fc := factoryConfig[T]{strategy: InsertionStrategy}
	for _, opt := range opts {
		opt(&fc)
	}
	switch fc.strategy {
	case LFUStrategy:
		return NewLFU[T](WithEntryLimit(fc.cfg.MaxEntries), WithRistrettoTTL(fc.cfg.TTL))
	default:
		return NewFromConfig[T](fc.cfg, fc.inMemory...)
	}
}
