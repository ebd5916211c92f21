package internal

import (
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Global Version Clock
// --------------------------------------------------------------------------

// VersionClock is the region-wide logical clock. It starts at zero and is
// bumped exactly once per committing writing transaction. Its value is the
// timestamp domain for read versions and write versions.
type VersionClock struct {
	value atomic.Uint64
}

// Sample returns the current clock value. Transactions call this once at
// begin to take their read version.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *VersionClock) Sample() uint64 {
	return c.value.Load()
}

// Bump atomically increments the clock and returns the post-increment
// value. The returned value is the write version of the committing
// transaction and its linearization point.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *VersionClock) Bump() uint64 {
	return c.value.Add(1)
}
