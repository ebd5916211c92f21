package tm

import (
	"github.com/Ryanmaxin/goTM/lib/tm/internal"
)

// transaction implements ITransaction. It is owned by the goroutine that
// began it; nothing in here is synchronized. All interaction with shared
// state goes through the region's stripe table, version clock and segment
// map.
type transaction struct {
	region *regionImpl

	// rv is the read version: the clock snapshot taken at begin. It is
	// immutable for the transaction's lifetime and bounds the versions
	// this transaction is allowed to observe.
	rv       uint64
	readOnly bool

	// reads and writes are nil for read-only transactions.
	reads  *internal.ReadSet
	writes *internal.WriteSet

	// allocated holds segment ids registered by this transaction; they
	// are retracted on abort. freed holds segment ids scheduled for
	// removal; they are dropped only on successful commit so an aborted
	// transaction has no observable effect.
	allocated []uint64
	freed     []uint64

	dead bool
}

// --------------------------------------------------------------------------
// Read validation
// --------------------------------------------------------------------------

// validateRead is the central correctness primitive: it reports whether
// the stripe guarding addr is currently unlocked and its version is at
// most bound. Both conditions are decided from a single atomic sample so
// a reader can never observe a torn (locked, stale-version) pair.
func (t *transaction) validateRead(addr Address, bound uint64) bool {
	locked, version := t.region.stripes.Stripe(uint64(addr)).Sample()
	return !locked && version <= bound
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (t *transaction) Read(src Address, size uint64, dst []byte) bool {
	if t.dead {
		return false
	}
	if size == 0 {
		return true
	}

	seg, offset, ok := t.region.resolve(src, size)
	if !ok {
		t.abort(abortBadAddress)
		return false
	}

	align := t.region.align
	numWords := size / align

	if t.readOnly {
		// Speculative copy with post-validation. A writer that touched
		// the word since rv either still holds the stripe lock or has
		// already published a version above rv; either way the sample
		// after the copy catches it, including a torn copy.
		for i := uint64(0); i < numWords; i++ {
			at := i * align
			copy(dst[at:at+align], seg.data[offset+at:])

			if !t.validateRead(src+Address(at), t.rv) {
				t.abort(abortStaleRead)
				return false
			}
		}
		return true
	}

	for i := uint64(0); i < numWords; i++ {
		at := i * align
		addr := src + Address(at)

		// A previously buffered write to this word shadows shared memory.
		if val, found := t.writes.Get(uint64(addr)); found {
			copy(dst[at:at+align], val)
		} else {
			copy(dst[at:at+align], seg.data[offset+at:])
		}

		if !t.validateRead(addr, t.rv) {
			t.abort(abortStaleRead)
			return false
		}

		// Track the dependency even when the value came from our own
		// write buffer: a concurrent committer writing the same word
		// still invalidates this transaction's serialization point.
		t.reads.Add(uint64(addr))
	}
	return true
}

func (t *transaction) Write(src []byte, size uint64, dst Address) bool {
	if t.dead || t.readOnly {
		return false
	}
	if size == 0 {
		return true
	}

	if _, _, ok := t.region.resolve(dst, size); !ok {
		t.abort(abortBadAddress)
		return false
	}

	align := t.region.align
	numWords := size / align

	// Writes are buffered only; shared memory is untouched until commit.
	for i := uint64(0); i < numWords; i++ {
		at := i * align
		t.writes.Put(uint64(dst+Address(at)), src[at:at+align])
	}
	return true
}

func (t *transaction) Alloc(size uint64) (Address, AllocResult) {
	if t.dead {
		return 0, AllocAbort
	}
	if size == 0 || size%t.region.align != 0 {
		return 0, AllocNoMem
	}

	segID, base := t.region.allocSegment(size)
	t.allocated = append(t.allocated, segID)
	metricSegmentsAllocated.Inc()
	return base, AllocSuccess
}

func (t *transaction) Free(addr Address) bool {
	if t.dead {
		return false
	}

	segID := uint64(addr)>>segmentShift - 1
	seg, found := t.region.segments.Load(segID)

	// The initial segment can never be freed, and addr must be the base
	// address of a live segment from a prior Alloc.
	if !found || seg.base != addr || segID == 0 {
		t.abort(abortBadAddress)
		return false
	}

	// Deallocation is deferred to commit so an abort leaves the segment
	// untouched.
	t.freed = append(t.freed, segID)
	return true
}

func (t *transaction) Commit() bool {
	if t.dead {
		return false
	}

	if t.readOnly {
		// Every read was validated against rv when it happened; there is
		// nothing to lock, bump or publish.
		t.finish()
		metricCommitsRO.Inc()
		return true
	}

	region := t.region
	stripes := region.stripes

	// Phase 1: acquire the write-set stripes in write-set order. Several
	// addresses may map to one stripe; each distinct stripe is acquired
	// exactly once and remembered so validation can recognize our own
	// holds. Any contention aborts, there is no waiting.
	owned := make(map[uint64]struct{}, t.writes.Len())
	var ownedOrder []uint64

	acquired := true
	t.writes.Range(func(addr uint64, _ []byte) bool {
		idx := stripes.Index(addr)
		if _, held := owned[idx]; held {
			return true
		}
		if !stripes.At(idx).TryLock() {
			acquired = false
			return false
		}
		owned[idx] = struct{}{}
		ownedOrder = append(ownedOrder, idx)
		return true
	})
	if !acquired {
		t.releaseOwned(ownedOrder)
		t.abort(abortLockContention)
		return false
	}

	// Phase 2: bump the clock. This is the linearization point; wv
	// timestamps everything this transaction publishes.
	wv := region.clock.Bump()

	// Phase 3: validate the read set. Every read stripe must still be at
	// a version within the transaction's snapshot; a version above rv
	// means a conflicting commit slipped in between our reads and our
	// linearization point. If rv+1 == wv no other committer interleaved
	// and validation can be skipped entirely.
	if t.rv+1 != wv {
		valid := true
		t.reads.Range(func(addr uint64) bool {
			idx := stripes.Index(addr)
			locked, version := stripes.At(idx).Sample()
			if version > t.rv {
				valid = false
				return false
			}
			if locked {
				// Our own write locks are not conflicts; the version
				// check above already vouched for the stripe.
				if _, ours := owned[idx]; !ours {
					valid = false
					return false
				}
			}
			return true
		})
		if !valid {
			t.releaseOwned(ownedOrder)
			t.abort(abortValidation)
			return false
		}
	}

	// Phase 4: publish the buffered writes. Plain stores are fine here;
	// the lock release below carries the release ordering that makes
	// them visible together with the new version.
	t.writes.Range(func(addr uint64, val []byte) bool {
		seg, offset, ok := region.resolve(Address(addr), uint64(len(val)))
		if ok {
			copy(seg.data[offset:], val)
		}
		return true
	})

	// Phase 5: release every owned stripe with the new version in a
	// single store each.
	for _, idx := range ownedOrder {
		stripes.At(idx).SetVersionAndUnlock(wv)
	}

	t.finish()
	metricCommitsRW.Inc()
	return true
}

// --------------------------------------------------------------------------
// Termination
// --------------------------------------------------------------------------

// finish applies deferred frees and consumes the transaction after a
// successful commit.
func (t *transaction) finish() {
	for _, segID := range t.freed {
		t.region.dropSegment(segID)
		metricSegmentsFreed.Inc()
	}
	t.dead = true
}

// releaseOwned unlocks the given stripes without a version update, used
// when backing out of a partially performed commit.
func (t *transaction) releaseOwned(ownedOrder []uint64) {
	for _, idx := range ownedOrder {
		t.region.stripes.At(idx).Unlock()
	}
}

// abort consumes the transaction without publishing anything. Segments
// allocated by this transaction are retracted; nothing else it did is
// observable. The engine never retries, that is the caller's call.
func (t *transaction) abort(reason abortReason) {
	for _, segID := range t.allocated {
		t.region.dropSegment(segID)
	}
	t.dead = true
	countAbort(reason)
}
