package cache

// LFUCache provides a cache with a least-frequently-used eviction policy.
//
// It is backed by Ristretto which implements a TinyLFU algorithm. Use it
// when hit rate matters more than predictable oldest-first eviction.
type LFUCache[T any] struct {
	*RistrettoCache[T]
}

// NewLFU returns a new LFUCache instance.
func NewLFU[T any](opts ...RistrettoOption) *LFUCache[T] {
	return &LFUCache[T]{NewRistretto[T](opts...)}
}
