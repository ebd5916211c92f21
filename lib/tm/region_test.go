package tm

import (
	"encoding/binary"
	"testing"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

const testWord = 8

// newTestRegion creates an 8-byte aligned region holding the given number of words
func newTestRegion(t testing.TB, words int) ISharedMemory {
	t.Helper()
	region, err := New(uint64(words)*testWord, testWord, nil)
	if err != nil {
		t.Fatalf("failed to create region: %v", err)
	}
	t.Cleanup(region.Close)
	return region
}

// wordAddr returns the address of the i-th word of the initial segment
func wordAddr(region ISharedMemory, i int) Address {
	return region.Start() + Address(uint64(i)*testWord)
}

// writeWord buffers a single word write, failing the test on abort
func writeWord(t testing.TB, txn ITransaction, addr Address, val uint64) {
	t.Helper()
	buf := make([]byte, testWord)
	binary.LittleEndian.PutUint64(buf, val)
	if !txn.Write(buf, testWord, addr) {
		t.Fatalf("write of %d to %#x aborted", val, addr)
	}
}

// readWord reads a single word, failing the test on abort
func readWord(t testing.TB, txn ITransaction, addr Address) uint64 {
	t.Helper()
	buf := make([]byte, testWord)
	if !txn.Read(addr, testWord, buf) {
		t.Fatalf("read of %#x aborted", addr)
	}
	return binary.LittleEndian.Uint64(buf)
}

// commitWord writes one word in its own committed transaction
func commitWord(t testing.TB, region ISharedMemory, addr Address, val uint64) {
	t.Helper()
	txn, err := region.Begin(false)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	writeWord(t, txn, addr, val)
	if !txn.Commit() {
		t.Fatalf("commit of %d to %#x failed", val, addr)
	}
}

// --------------------------------------------------------------------------
// Region lifecycle
// --------------------------------------------------------------------------

// TestNewValidation verifies the size/alignment contract is checked at creation
func TestNewValidation(t *testing.T) {
	cases := []struct {
		name  string
		size  uint64
		align uint64
		opts  *Options
	}{
		{"zero size", 0, 8, nil},
		{"size not multiple of align", 12, 8, nil},
		{"zero align", 64, 0, nil},
		{"align not power of two", 64, 12, nil},
		{"stripes not power of two", 64, 8, &Options{NumStripes: 1000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.size, tc.align, tc.opts); err == nil {
				t.Errorf("expected error for size=%d align=%d", tc.size, tc.align)
			}
		})
	}
}

// TestRegionAccessors verifies Start, Size and Align are constant
func TestRegionAccessors(t *testing.T) {
	region, err := New(128, 8, nil)
	if err != nil {
		t.Fatalf("failed to create region: %v", err)
	}
	defer region.Close()

	if region.Size() != 128 {
		t.Errorf("Size() = %d, want 128", region.Size())
	}
	if region.Align() != 8 {
		t.Errorf("Align() = %d, want 8", region.Align())
	}

	start := region.Start()
	if start == 0 {
		t.Error("Start() must not be the zero address")
	}
	if region.Start() != start {
		t.Error("Start() must be stable for the region lifetime")
	}
}

// TestRegionInitiallyZeroFilled verifies a fresh region reads as zeros
func TestRegionInitiallyZeroFilled(t *testing.T) {
	region := newTestRegion(t, 16)

	txn, _ := region.Begin(true)
	for i := 0; i < 16; i++ {
		if v := readWord(t, txn, wordAddr(region, i)); v != 0 {
			t.Errorf("word %d = %d, want 0", i, v)
		}
	}
	if !txn.Commit() {
		t.Error("read-only commit on a quiet region must succeed")
	}
}

// TestStats verifies the stats snapshot tracks segments and the clock
func TestStats(t *testing.T) {
	region := newTestRegion(t, 8)

	stats := region.Stats()
	if stats.Segments != 1 {
		t.Errorf("expected 1 segment, got %d", stats.Segments)
	}
	if stats.ClockValue != 0 {
		t.Errorf("expected clock 0, got %d", stats.ClockValue)
	}

	commitWord(t, region, region.Start(), 1)

	stats = region.Stats()
	if stats.ClockValue != 1 {
		t.Errorf("expected clock 1 after one writing commit, got %d", stats.ClockValue)
	}
}

// TestDefaultOptions verifies the default stripe table size
func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.NumStripes != 1<<16 {
		t.Errorf("expected default of %d stripes, got %d", 1<<16, opts.NumStripes)
	}
}
