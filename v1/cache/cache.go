package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cacheerrors "github.com/mirkobrombin/go-smallcache/v1/errors"
	"github.com/mirkobrombin/go-smallcache/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mirkobrombin/go-smallcache/v1/cache"

var tracer = otel.Tracer(tracerName)

// Cache defines the basic operations for a cache layer.
//
// T represents the type of values stored in the cache.
type Cache[T any] interface {
	// Get retrieves a value for the given key. The boolean return
	// indicates whether the key was found and has not expired. An error is
	// returned if retrieving the value fails.
	Get(ctx context.Context, key string) (T, bool, error)
	// Set stores the value for the given key. A positive ttl overrides the
	// default TTL, DefaultExpiration applies it and NoExpiration disables it.
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	// Delete removes the key from the cache.
	Delete(ctx context.Context, key string) error
	// Flush removes every key from the cache.
	Flush(ctx context.Context) error
}

// InMemoryCache is an in-memory cache bounded by entry count and TTL.
//
// Capacity eviction removes the oldest inserted entries first; reading an
// entry does not change its rank. Expired and surplus entries are removed by
// cleaner passes that run on the configured Scheduler.
type InMemoryCache[T any] struct {
	mu        sync.Mutex
	items     map[string]*entry[T]
	seq       uint64
	lastClean time.Time
	pass      *cleanPass
	closed    bool

	maxEntries    int
	defaultTTL    time.Duration
	baseInterval  time.Duration
	cleanInterval time.Duration
	now           func() time.Time
	scheduler     Scheduler
	logger        *slog.Logger

	hits    atomic.Uint64
	misses  atomic.Uint64
	expired atomic.Uint64
	evicted atomic.Uint64
	passes  atomic.Uint64
	aborted atomic.Uint64

	hitCounter      prometheus.Counter
	missCounter     prometheus.Counter
	evictionCounter *prometheus.CounterVec
	passCounter     *prometheus.CounterVec
	entriesGauge    prometheus.Gauge
	latencyHist     prometheus.Histogram
	traceEnabled    bool
	tracer          trace.Tracer
}

type entry[T any] struct {
	value     T
	createdAt time.Time
	seq       uint64
	expiresAt time.Time
}

func (e *entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// olderThan orders entries by insertion, oldest first.
func (e *entry[T]) olderThan(o *entry[T]) bool {
	if e.createdAt.Equal(o.createdAt) {
		return e.seq < o.seq
	}
	return e.createdAt.Before(o.createdAt)
}

// Entry is a read-only copy of a stored entry, as returned by Raw.
type Entry[T any] struct {
	Value     T
	CreatedAt time.Time
	// ExpiresAt is zero when the entry never expires.
	ExpiresAt time.Time
}

// InMemoryOption configures an InMemoryCache.
type InMemoryOption[T any] func(*InMemoryCache[T])

// WithMaxEntries sets the maximum number of entries the cache keeps once a
// cleaner pass has run. A non-positive value means the cache is unbounded.
func WithMaxEntries[T any](n int) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		if n < 0 {
			n = 0
		}
		c.maxEntries = n
	}
}

// WithDefaultTTL sets the TTL applied to entries stored with
// DefaultExpiration. A non-positive value disables the default.
func WithDefaultTTL[T any](d time.Duration) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		if d < 0 {
			d = 0
		}
		c.defaultTTL = d
	}
}

// WithCleanInterval sets the base spacing between opportunistic cleaner
// passes. The effective interval is the smaller of d and the default TTL.
// A non-positive value restores the 500ms base.
func WithCleanInterval[T any](d time.Duration) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		c.baseInterval = d
	}
}

// WithScheduler sets the Scheduler that runs cleaner passes.
func WithScheduler[T any](s Scheduler) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithClock replaces time.Now as the source of entry and pass timestamps.
func WithClock[T any](now func() time.Time) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for cleaner diagnostics.
func WithLogger[T any](l *slog.Logger) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics[T any](reg prometheus.Registerer) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		c.hitCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smallcache_hits_total",
			Help: "Total number of cache hits",
		})
		c.missCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smallcache_misses_total",
			Help: "Total number of cache misses",
		})
		c.evictionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smallcache_evictions_total",
			Help: "Total number of entries removed by cleaner passes",
		}, []string{"reason"})
		c.passCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smallcache_clean_passes_total",
			Help: "Total number of cleaner passes by outcome",
		}, []string{"result"})
		c.entriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smallcache_entries",
			Help: "Number of entries physically stored in the cache",
		})
		c.latencyHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smallcache_latency_seconds",
			Help:    "Latency of cache operations",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(c.hitCounter, c.missCounter, c.evictionCounter, c.passCounter, c.entriesGauge, c.latencyHist)
	}
}

// WithTracing enables OpenTelemetry tracing for cache operations and
// cleaner passes.
func WithTracing[T any]() InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		c.traceEnabled = true
	}
}

// WithTracerProvider enables tracing with spans created by tp instead of the
// global provider.
func WithTracerProvider[T any](tp trace.TracerProvider) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		if tp == nil {
			return
		}
		c.tracer = tp.Tracer(tracerName)
		c.traceEnabled = true
	}
}

// NewInMemory returns a new InMemoryCache instance.
//
// Without options the cache is unbounded, entries never expire and cleaner
// passes run on a GroupScheduler.
func NewInMemory[T any](opts ...InMemoryOption[T]) *InMemoryCache[T] {
	c := &InMemoryCache[T]{
		items:  make(map[string]*entry[T]),
		now:    time.Now,
		logger: slog.Default(),
		tracer: tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scheduler == nil {
		c.scheduler = NewGroupScheduler()
	}
	c.cleanInterval = cleanIntervalFor(c.baseInterval, c.defaultTTL)
	c.lastClean = c.now()
	return c
}

// Get implements Cache.Get.
//
// An expired entry is reported as missing even when no cleaner pass has
// removed it yet.
func (c *InMemoryCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	ctx, done := c.observe(ctx, "Cache.Get")
	metrics.GetCounter.Inc()
	var zero T
	select {
	case <-ctx.Done():
		done("")
		return zero, false, ctx.Err()
	default:
	}

	now := c.now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done("")
		return zero, false, cacheerrors.ErrClosed
	}
	e, ok := c.items[key]
	hit := ok && !e.expired(now)
	var v T
	if hit {
		v = e.value
	}
	task := c.triggerLocked(now)
	c.mu.Unlock()
	c.schedule(task)

	if !hit {
		c.misses.Add(1)
		if c.missCounter != nil {
			c.missCounter.Inc()
		}
		done("miss")
		return zero, false, nil
	}
	c.hits.Add(1)
	if c.hitCounter != nil {
		c.hitCounter.Inc()
	}
	done("hit")
	return v, true, nil
}

// Set implements Cache.Set.
//
// Storing an existing key replaces the entry and resets its age, so it
// becomes the newest entry for capacity eviction.
func (c *InMemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	ctx, done := c.observe(ctx, "Cache.Set")
	defer done("")
	metrics.SetCounter.Inc()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := c.now()
	e := &entry[T]{value: value, createdAt: now}
	if d := resolveTTL(ttl, c.defaultTTL); d > 0 {
		e.expiresAt = now.Add(d)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return cacheerrors.ErrClosed
	}
	c.seq++
	e.seq = c.seq
	c.items[key] = e
	c.updateGaugeLocked()
	task := c.triggerLocked(now)
	c.mu.Unlock()
	c.schedule(task)
	return nil
}

// SetDefault stores the value with the cache's default TTL.
func (c *InMemoryCache[T]) SetDefault(ctx context.Context, key string, value T) error {
	return c.Set(ctx, key, value, DefaultExpiration)
}

// Delete implements Cache.Delete.
//
// Delete cancels a cleaner pass in progress; whatever it left behind is
// handled by the next pass.
func (c *InMemoryCache[T]) Delete(ctx context.Context, key string) error {
	ctx, done := c.observe(ctx, "Cache.Delete")
	defer done("")
	metrics.DeleteCounter.Inc()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := c.now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return cacheerrors.ErrClosed
	}
	c.cancelPassLocked()
	delete(c.items, key)
	c.updateGaugeLocked()
	task := c.triggerLocked(now)
	c.mu.Unlock()
	c.schedule(task)
	return nil
}

// Flush implements Cache.Flush.
func (c *InMemoryCache[T]) Flush(ctx context.Context) error {
	ctx, done := c.observe(ctx, "Cache.Flush")
	defer done("")
	metrics.FlushCounter.Inc()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cacheerrors.ErrClosed
	}
	c.cancelPassLocked()
	c.items = make(map[string]*entry[T])
	c.updateGaugeLocked()
	return nil
}

// Raw returns a copy of every stored entry, including expired entries that
// no cleaner pass has removed yet. It is meant for inspection and tests.
func (c *InMemoryCache[T]) Raw() map[string]Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Entry[T], len(c.items))
	for k, e := range c.items {
		out[k] = Entry[T]{Value: e.value, CreatedAt: e.createdAt, ExpiresAt: e.expiresAt}
	}
	return out
}

// Len returns the number of physically stored entries.
func (c *InMemoryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close cancels any cleaner pass, waits for scheduled passes started by the
// default scheduler and drops all entries. Every later operation returns
// ErrClosed.
func (c *InMemoryCache[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelPassLocked()
	c.mu.Unlock()

	if w, ok := c.scheduler.(interface{ Wait() error }); ok {
		_ = w.Wait()
	}

	c.mu.Lock()
	c.items = make(map[string]*entry[T])
	c.updateGaugeLocked()
	c.mu.Unlock()
}

// Stats reports basic metrics about cache usage.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Expired       uint64
	Evicted       uint64
	Passes        uint64
	AbortedPasses uint64
	Size          int
}

// Stats returns current metrics for the cache.
func (c *InMemoryCache[T]) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Expired:       c.expired.Load(),
		Evicted:       c.evicted.Load(),
		Passes:        c.passes.Load(),
		AbortedPasses: c.aborted.Load(),
		Size:          c.Len(),
	}
}

func (c *InMemoryCache[T]) updateGaugeLocked() {
	if c.entriesGauge != nil {
		c.entriesGauge.Set(float64(len(c.items)))
	}
}

func (c *InMemoryCache[T]) schedule(task func()) {
	if task != nil {
		c.scheduler.Schedule(task)
	}
}

// observe starts the span and latency measurement for op. The returned
// function ends them and records result when it is not empty.
func (c *InMemoryCache[T]) observe(ctx context.Context, op string) (context.Context, func(result string)) {
	if !c.traceEnabled && c.latencyHist == nil {
		return ctx, func(string) {}
	}
	start := time.Now()
	var span trace.Span
	if c.traceEnabled {
		ctx, span = c.tracer.Start(ctx, op)
	}
	return ctx, func(result string) {
		latency := time.Since(start)
		if c.latencyHist != nil {
			c.latencyHist.Observe(latency.Seconds())
		}
		if span == nil {
			return
		}
		if result != "" {
			span.SetAttributes(attribute.String("smallcache.result", result))
		}
		span.SetAttributes(attribute.Int64("smallcache.latency_ms", latency.Milliseconds()))
		span.End()
	}
}

var _ Cache[int] = (*InMemoryCache[int])(nil)
