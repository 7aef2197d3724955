// Package cache provides a small in-process key-value cache bounded by entry
// count and time-to-live.
//
// Entries are evicted oldest-inserted first once the cache grows past its
// entry limit, and expire after their TTL. Reads always honor expiry, but
// physical removal is lazy: every Get, Set and Delete checks whether the
// clean interval has elapsed or the cache is over capacity and, if so, hands
// a cleaner pass to a Scheduler. The pass runs outside the triggering call
// and is canceled by any Delete or Flush, leaving the remainder for the next
// trigger.
//
// There is no fixed background timer: an idle cache does no work.
package cache
