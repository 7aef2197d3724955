package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cacheerrors "github.com/mirkobrombin/go-smallcache/v1/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// newManualCache returns a cache driven by a fake clock whose cleaner passes
// only run when the returned scheduler is drained.
func newManualCache[T any](t *testing.T, opts ...InMemoryOption[T]) (*InMemoryCache[T], *ManualScheduler, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sched := NewManualScheduler()
	base := []InMemoryOption[T]{WithClock[T](clock.Now), WithScheduler[T](sched)}
	c := NewInMemory[T](append(base, opts...)...)
	t.Cleanup(c.Close)
	return c, sched, clock
}

func TestInMemoryCacheGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newManualCache[string](t)

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected miss for unknown key, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "foo", "bar", DefaultExpiration); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := c.Get(ctx, "foo"); err != nil || !ok || v != "bar" {
		t.Fatalf("Get: expected bar, got %v ok=%v err=%v", v, ok, err)
	}
	if err := c.Delete(ctx, "foo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "foo"); ok {
		t.Fatalf("expected miss after delete")
	}
	if err := c.Delete(ctx, "foo"); err != nil {
		t.Fatalf("deleting an absent key should not fail: %v", err)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 2 || s.Size != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestInMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newManualCache[string](t)

	if err := c.Set(ctx, "foo", "bar", time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.Advance(time.Second)
	if _, ok, _ := c.Get(ctx, "foo"); !ok {
		t.Fatalf("expected key to be visible until its TTL has fully elapsed")
	}
	clock.Advance(time.Millisecond)
	if _, ok, _ := c.Get(ctx, "foo"); ok {
		t.Fatalf("expected key to expire")
	}
	if _, ok := c.Raw()["foo"]; !ok {
		t.Fatalf("expected expired key to stay stored until a cleaner pass")
	}
}

func TestInMemoryCacheDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newManualCache[int](t, WithDefaultTTL[int](time.Second))

	_ = c.SetDefault(ctx, "default", 1)
	_ = c.Set(ctx, "override", 2, 3*time.Second)
	_ = c.Set(ctx, "forever", 3, NoExpiration)

	clock.Advance(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "default"); ok {
		t.Fatalf("expected default TTL to apply")
	}
	if v, ok, _ := c.Get(ctx, "override"); !ok || v != 2 {
		t.Fatalf("expected override TTL to keep the key, got %v ok=%v", v, ok)
	}
	clock.Advance(time.Hour)
	if v, ok, _ := c.Get(ctx, "forever"); !ok || v != 3 {
		t.Fatalf("expected NoExpiration key to survive, got %v ok=%v", v, ok)
	}

	raw := c.Raw()
	if !raw["forever"].ExpiresAt.IsZero() {
		t.Fatalf("expected no expiry for forever, got %v", raw["forever"].ExpiresAt)
	}
}

func TestInMemoryCacheResetResetsAge(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newManualCache[string](t, WithDefaultTTL[string](time.Second))

	_ = c.SetDefault(ctx, "k", "v1")
	first := c.Raw()["k"].CreatedAt
	clock.Advance(800 * time.Millisecond)
	_ = c.SetDefault(ctx, "k", "v2")

	e := c.Raw()["k"]
	if !e.CreatedAt.After(first) {
		t.Fatalf("expected createdAt to move forward, got %v then %v", first, e.CreatedAt)
	}
	clock.Advance(800 * time.Millisecond)
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "v2" {
		t.Fatalf("expected overwritten key with fresh TTL, got %v ok=%v", v, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite must not grow the cache, len=%d", c.Len())
	}
}

func TestInMemoryCacheFlush(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newManualCache[string](t)

	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, k, DefaultExpiration)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, ok, _ := c.Get(ctx, k); ok {
			t.Fatalf("expected %s to be gone after flush", k)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", c.Len())
	}
}

func TestInMemoryCacheContext(t *testing.T) {
	c, _, _ := newManualCache[string](t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Set(ctx, "a", "b", DefaultExpiration); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
	if _, ok, _ := c.Get(context.Background(), "a"); ok {
		t.Fatalf("item should not be stored when context is canceled")
	}
	if _, _, err := c.Get(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}

	_ = c.Set(context.Background(), "foo", "bar", DefaultExpiration)
	if err := c.Delete(ctx, "foo"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
	if err := c.Flush(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
	if v, ok, _ := c.Get(context.Background(), "foo"); !ok || v != "bar" {
		t.Fatalf("item should remain after canceled delete")
	}
}

func TestInMemoryCacheClosed(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string]()
	_ = c.Set(ctx, "foo", "bar", DefaultExpiration)
	c.Close()
	c.Close()

	if err := c.Set(ctx, "foo", "bar", DefaultExpiration); !errors.Is(err, cacheerrors.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.Delete(ctx, "foo"); !errors.Is(err, cacheerrors.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.Flush(ctx); !errors.Is(err, cacheerrors.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok, err := c.Get(ctx, "foo"); ok || !errors.Is(err, cacheerrors.ErrClosed) {
		t.Fatalf("expected ErrClosed on closed cache, got ok=%v err=%v", ok, err)
	}
}

func TestInMemoryCacheMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c, sched, clock := newManualCache[string](t,
		WithMaxEntries[string](1),
		WithMetrics[string](reg),
	)

	_ = c.Set(ctx, "a", "1", 10*time.Millisecond)
	_, _, _ = c.Get(ctx, "a")
	_, _, _ = c.Get(ctx, "missing")
	clock.Advance(time.Millisecond)
	_ = c.Set(ctx, "b", "2", DefaultExpiration)
	_ = c.Set(ctx, "c", "3", DefaultExpiration)
	sched.RunPending()

	if v := testutil.ToFloat64(c.hitCounter); v != 1 {
		t.Fatalf("expected 1 hit, got %v", v)
	}
	if v := testutil.ToFloat64(c.missCounter); v != 1 {
		t.Fatalf("expected 1 miss, got %v", v)
	}
	if v := testutil.ToFloat64(c.evictionCounter.WithLabelValues("capacity")); v != 2 {
		t.Fatalf("expected 2 capacity evictions, got %v", v)
	}
	if v := testutil.ToFloat64(c.passCounter.WithLabelValues("completed")); v != 1 {
		t.Fatalf("expected 1 completed pass, got %v", v)
	}
	if v := testutil.ToFloat64(c.entriesGauge); v != 1 {
		t.Fatalf("expected 1 entry, got %v", v)
	}
	if _, ok, _ := c.Get(ctx, "c"); !ok {
		t.Fatalf("expected newest entry to survive")
	}
}
