package internal

// --------------------------------------------------------------------------
// Read Set
// --------------------------------------------------------------------------

// ReadSet records every shared word address a read-write transaction has
// depended on, whether the delivered value came from shared memory or from
// the transaction's own write buffer. Insertion is idempotent.
//
// A read set belongs to exactly one transaction and is only ever touched
// by the owning goroutine, so it needs no synchronization.
type ReadSet struct {
	addrs map[uint64]struct{}
}

// NewReadSet creates an empty read set.
func NewReadSet() *ReadSet {
	return &ReadSet{addrs: make(map[uint64]struct{})}
}

// Add records an address. Adding the same address twice is a no-op.
func (s *ReadSet) Add(addr uint64) {
	s.addrs[addr] = struct{}{}
}

// Range calls f for every recorded address until f returns false.
func (s *ReadSet) Range(f func(addr uint64) bool) {
	for addr := range s.addrs {
		if !f(addr) {
			return
		}
	}
}

// Len returns the number of distinct addresses recorded.
func (s *ReadSet) Len() int {
	return len(s.addrs)
}

// --------------------------------------------------------------------------
// Write Set
// --------------------------------------------------------------------------

// WriteSet buffers the words a transaction intends to publish, keyed by
// shared word address. The last write to an address wins. Iteration is in
// first-insertion order, which gives commit a fixed lock acquisition order
// and makes behavior reproducible in tests.
//
// Like the read set, a write set is single-owner and unsynchronized.
type WriteSet struct {
	values map[uint64][]byte
	order  []uint64
}

// NewWriteSet creates an empty write set.
func NewWriteSet() *WriteSet {
	return &WriteSet{values: make(map[uint64][]byte)}
}

// Put buffers a word-sized value for the given address, overwriting any
// previous value. The word bytes are copied so the caller may reuse its
// buffer.
func (s *WriteSet) Put(addr uint64, word []byte) {
	if existing, ok := s.values[addr]; ok {
		copy(existing, word)
		return
	}
	buffered := make([]byte, len(word))
	copy(buffered, word)
	s.values[addr] = buffered
	s.order = append(s.order, addr)
}

// Get returns the buffered value for an address, if any.
func (s *WriteSet) Get(addr uint64) ([]byte, bool) {
	val, ok := s.values[addr]
	return val, ok
}

// Range calls f for every buffered (address, value) pair in insertion
// order until f returns false.
func (s *WriteSet) Range(f func(addr uint64, val []byte) bool) {
	for _, addr := range s.order {
		if !f(addr, s.values[addr]) {
			return
		}
	}
}

// Len returns the number of distinct addresses buffered.
func (s *WriteSet) Len() int {
	return len(s.order)
}
