package cache

import (
	"container/heap"
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// cleanPass is the token of one scheduled cleaner pass. Delete, Flush and
// Close cancel it; the pass checks it before every removal.
type cleanPass struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

type keyedEntry[T any] struct {
	key string
	e   *entry[T]
}

// newestFirst is a max-heap on insertion order. It holds the oldest
// candidates seen so far; the root is the newest of them and is dropped
// first when the heap grows past the number of entries to evict.
type newestFirst[T any] []keyedEntry[T]

func (h newestFirst[T]) Len() int           { return len(h) }
func (h newestFirst[T]) Less(i, j int) bool { return h[j].e.olderThan(h[i].e) }
func (h newestFirst[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *newestFirst[T]) Push(x any)        { *h = append(*h, x.(keyedEntry[T])) }
func (h *newestFirst[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// trim drops the newest candidates until at most n remain.
func (h *newestFirst[T]) trim(n int) {
	for h.Len() > n && h.Len() > 0 {
		heap.Pop(h)
	}
}

// oldestFirst empties the heap and returns its entries oldest first.
func (h *newestFirst[T]) oldestFirst() []keyedEntry[T] {
	out := make([]keyedEntry[T], h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(keyedEntry[T])
	}
	return out
}

// triggerLocked decides whether a cleaner pass is due and, if so, registers
// a new pass and returns the task that runs it. The caller schedules the
// task after releasing c.mu.
func (c *InMemoryCache[T]) triggerLocked(now time.Time) func() {
	if c.closed || c.pass != nil {
		return nil
	}
	due := now.After(c.lastClean.Add(c.cleanInterval))
	over := c.maxEntries > 0 && len(c.items) > c.maxEntries
	if !due && !over {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &cleanPass{id: uuid.NewString(), ctx: ctx, cancel: cancel}
	c.pass = p
	return func() { c.clean(p) }
}

func (c *InMemoryCache[T]) cancelPassLocked() {
	if c.pass != nil {
		c.pass.cancel()
		c.pass = nil
	}
}

// clean runs one cleaner pass. It removes every expired entry and, when the
// cache holds more than maxEntries, the oldest surviving entries needed to
// get back under the bound. Entries replaced or removed since the pass took
// its snapshot are left alone.
func (c *InMemoryCache[T]) clean(p *cleanPass) {
	ctx := p.ctx
	var span trace.Span
	if c.traceEnabled {
		ctx, span = c.tracer.Start(ctx, "Cache.clean")
		defer span.End()
		span.SetAttributes(attribute.String("smallcache.pass_id", p.id))
	}
	begin := time.Now()
	now := c.now()

	var expired, evicted int
	abort := func() {
		c.aborted.Add(1)
		if c.passCounter != nil {
			c.passCounter.WithLabelValues("aborted").Inc()
		}
		if span != nil {
			span.SetAttributes(
				attribute.Bool("smallcache.aborted", true),
				attribute.Int("smallcache.expired", expired),
				attribute.Int("smallcache.evicted", evicted),
			)
		}
		c.logger.Debug("smallcache: cleaner pass aborted", "pass", p.id, "expired", expired, "evicted", evicted)
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		abort()
		return
	}
	toRemove := 0
	if c.maxEntries > 0 && len(c.items) > c.maxEntries {
		toRemove = len(c.items) - c.maxEntries
	}
	snapshot := make([]keyedEntry[T], 0, len(c.items))
	for k, e := range c.items {
		snapshot = append(snapshot, keyedEntry[T]{key: k, e: e})
	}
	c.mu.Unlock()

	candidates := &newestFirst[T]{}
	for _, ke := range snapshot {
		if ctx.Err() != nil {
			abort()
			return
		}
		if ke.e.expired(now) {
			c.mu.Lock()
			if ctx.Err() != nil {
				c.mu.Unlock()
				abort()
				return
			}
			removed := c.removeLocked(ke, "expired")
			c.mu.Unlock()
			if removed {
				expired++
				toRemove--
				candidates.trim(toRemove)
			}
			continue
		}
		if toRemove > 0 {
			heap.Push(candidates, ke)
			candidates.trim(toRemove)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		abort()
		return
	}
	if toRemove > 0 {
		for _, ke := range candidates.oldestFirst() {
			if len(c.items) <= c.maxEntries {
				break
			}
			if c.removeLocked(ke, "capacity") {
				evicted++
			}
		}
	}
	c.lastClean = now
	c.pass = nil
	p.cancel()

	c.passes.Add(1)
	if c.passCounter != nil {
		c.passCounter.WithLabelValues("completed").Inc()
	}
	if span != nil {
		span.SetAttributes(
			attribute.Bool("smallcache.aborted", false),
			attribute.Int("smallcache.expired", expired),
			attribute.Int("smallcache.evicted", evicted),
		)
	}
	c.logger.Debug("smallcache: cleaner pass completed",
		"pass", p.id,
		"expired", expired,
		"evicted", evicted,
		"size", len(c.items),
		"duration", time.Since(begin),
	)
}

// removeLocked deletes ke if the store still holds that exact entry.
func (c *InMemoryCache[T]) removeLocked(ke keyedEntry[T], reason string) bool {
	if cur, ok := c.items[ke.key]; !ok || cur != ke.e {
		return false
	}
	delete(c.items, ke.key)
	if reason == "expired" {
		c.expired.Add(1)
	} else {
		c.evicted.Add(1)
	}
	if c.evictionCounter != nil {
		c.evictionCounter.WithLabelValues(reason).Inc()
	}
	c.updateGaugeLocked()
	return true
}
