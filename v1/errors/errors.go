package errors

import "errors"

var (
	// ErrClosed is returned by cache operations after Close.
	ErrClosed = errors.New("smallcache: cache closed")
	// ErrInvalidMaxEntries reports a negative entry bound in strict mode.
	ErrInvalidMaxEntries = errors.New("smallcache: invalid max entries")
	// ErrInvalidTTL reports a negative default TTL in strict mode.
	ErrInvalidTTL = errors.New("smallcache: invalid ttl")
)
