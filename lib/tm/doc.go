// Package tm implements word-level software transactional memory over a
// shared, word-aligned memory region. Multiple goroutines submit
// transactions that read and write words in the region; every committed
// transaction appears to execute atomically at a single point in a global
// version order, and an aborted transaction has no externally visible
// effect. The algorithm is in the TL2 family: optimistic speculation with
// per-location versioned write locks, a global version clock and
// commit-time validation.
//
// The package focuses on:
//   - Non-blocking progress: no operation ever waits on another
//     transaction; contention is resolved by aborting, and retry policy is
//     left to the caller
//   - Single-load read validation through versioned write locks that pack
//     the lock bit and the version into one atomic word
//   - Buffered writes with read-own-write and last-write-wins semantics
//     inside a transaction
//   - Dynamic segment allocation through a concurrent segment table, so
//     address resolution on the read/write hot path never takes a
//     region-level lock
//
// Key Components:
//
//   - regionImpl: The shared memory region implementing ISharedMemory. It
//     owns the backing buffers, the lock stripe table and the global
//     version clock, and hands out transactions. The backing buffers are
//     mutated only by committing transactions holding the relevant stripe
//     locks.
//
//   - transaction: A single-owner transaction descriptor implementing
//     ITransaction. It carries the read version taken at begin, and (for
//     read-write transactions) a read set of depended-on addresses and a
//     write set buffering words to publish. Read-only transactions carry
//     neither and commit trivially.
//
//   - internal.VersionedWriteLock: One atomic word per lock stripe, bit 0
//     the lock bit and the upper bits the version stamped by the last
//     committer through that stripe. Readers decide "unlocked and current"
//     from a single load.
//
//   - internal.StripeTable: A fixed power-of-two array of versioned write
//     locks; word addresses map onto stripes by shift and mask. Distinct
//     words sharing a stripe can abort each other spuriously but never
//     violate correctness.
//
// Internal Mechanisms:
//
//   - Begin samples the global version clock into the transaction's read
//     version rv. Reads copy the shared word and then validate the
//     guarding stripe: unlocked and version <= rv, both decided from one
//     atomic sample. A torn copy is caught by the sample that follows it.
//
//   - Commit of a read-write transaction runs five strictly ordered
//     phases: acquire the write-set stripes (try-lock only, abort on any
//     contention), bump the clock to obtain the write version wv,
//     validate that every read stripe is unlocked by others and still
//     within the rv snapshot (skipped when rv+1 == wv, since then no
//     other committer interleaved), publish the buffered words, and
//     release every owned stripe by storing the new version and the
//     cleared lock bit in one store. The clock bump is the transaction's
//     linearization point.
//
//   - During validation a locked stripe counts as a conflict only if the
//     lock is held by someone else; the commit path recognizes its own
//     holds through the set of stripe indices it acquired in phase one.
//
//   - Alloc registers new zero-filled segments in a concurrent map keyed
//     by segment id; the segment id plus one forms the upper bits of every
//     address in the segment. An abort retracts segments the transaction
//     allocated; Free only takes effect at commit. Both keep aborted
//     transactions free of observable effects.
//
// Usage Example:
//
//	region, err := tm.New(4096, 8, nil)
//	if err != nil {
//	    // Handle error
//	}
//	defer region.Close()
//
//	for {
//	    txn, _ := region.Begin(false)
//	    buf := make([]byte, 8)
//	    if !txn.Read(region.Start(), 8, buf) {
//	        continue // aborted, retry
//	    }
//	    binary.LittleEndian.PutUint64(buf, binary.LittleEndian.Uint64(buf)+1)
//	    if !txn.Write(buf, 8, region.Start()) {
//	        continue
//	    }
//	    if txn.Commit() {
//	        break
//	    }
//	}
//
// Thread Safety:
//
//	A region is safe for any number of concurrent transactions. A
//	transaction belongs to the goroutine that began it and must not be
//	shared. All size arguments must be positive multiples of the region
//	alignment and all addresses word-aligned; the engine does not defend
//	against violations of this contract.
package tm
