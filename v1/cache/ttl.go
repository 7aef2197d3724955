package cache

import "time"

const (
	// DefaultExpiration makes Set apply the cache's default TTL, if any.
	DefaultExpiration time.Duration = 0
	// NoExpiration makes Set store an entry that never expires, even when
	// the cache has a default TTL. Any negative TTL behaves the same.
	NoExpiration time.Duration = -1
)

// baseCleanInterval is the longest time between two opportunistic cleaner
// passes. A shorter default TTL shortens it.
const baseCleanInterval = 500 * time.Millisecond

// resolveTTL returns the effective TTL for an entry written with ttl on a
// cache whose default TTL is def. Zero means the entry never expires.
func resolveTTL(ttl, def time.Duration) time.Duration {
	switch {
	case ttl > 0:
		return ttl
	case ttl < 0:
		return 0
	case def > 0:
		return def
	default:
		return 0
	}
}

// cleanIntervalFor derives the minimum spacing between cleaner passes.
func cleanIntervalFor(base, def time.Duration) time.Duration {
	if base <= 0 {
		base = baseCleanInterval
	}
	if def > 0 && def < base {
		return def
	}
	return base
}
