package internal

import (
	"fmt"
	"math/bits"
)

// --------------------------------------------------------------------------
// Lock Stripe Table
// --------------------------------------------------------------------------

// DefaultNumStripes is the default size of the stripe table. Sizing trades
// memory for contention: distinct words that hash to the same stripe abort
// each other spuriously but never violate correctness.
const DefaultNumStripes = 1 << 16

// StripeTable maps shared word addresses to a fixed array of versioned
// write locks. The table length is a power of two so the hash reduces to a
// mask, and addresses are shifted down by the word size first so that
// consecutive words land on consecutive stripes.
type StripeTable struct {
	locks []VersionedWriteLock
	mask  uint64
	shift uint64
}

// NewStripeTable creates a table with n stripes for a region with the
// given alignment. n must be a power of two and align must be a power of
// two; both are validated here once so the per-access path can use plain
// shifts and masks.
func NewStripeTable(n int, align uint64) (*StripeTable, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("stripe count must be a positive power of two, got %d", n)
	}
	if align == 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("alignment must be a positive power of two, got %d", align)
	}
	return &StripeTable{
		locks: make([]VersionedWriteLock, n),
		mask:  uint64(n - 1),
		shift: uint64(bits.TrailingZeros64(align)),
	}, nil
}

// Index returns the stripe index for a word address. Collisions are
// tolerated: many addresses may share one stripe.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *StripeTable) Index(addr uint64) uint64 {
	return (addr >> t.shift) & t.mask
}

// Stripe returns the lock guarding the given word address.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *StripeTable) Stripe(addr uint64) *VersionedWriteLock {
	return &t.locks[t.Index(addr)]
}

// At returns the lock at a stripe index. Used by commit to release stripes
// it recorded as owned.
func (t *StripeTable) At(idx uint64) *VersionedWriteLock {
	return &t.locks[idx]
}

// Len returns the number of stripes in the table.
func (t *StripeTable) Len() int {
	return len(t.locks)
}
