package tm

import (
	"testing"
)

// --------------------------------------------------------------------------
// Dynamic segments
// --------------------------------------------------------------------------

// TestAllocRoundTrip verifies an allocated segment is zero-filled, usable
// and survives the allocating transaction's commit
func TestAllocRoundTrip(t *testing.T) {
	region := newTestRegion(t, 4)

	txn, _ := region.Begin(false)
	seg, res := txn.Alloc(4 * testWord)
	if res != AllocSuccess {
		t.Fatalf("Alloc failed: %v", res)
	}

	if v := readWord(t, txn, seg); v != 0 {
		t.Errorf("fresh segment must be zero-filled, got %d", v)
	}

	writeWord(t, txn, seg, 77)
	if !txn.Commit() {
		t.Fatal("commit failed")
	}

	check, _ := region.Begin(true)
	if v := readWord(t, check, seg); v != 77 {
		t.Errorf("expected 77 in allocated segment, got %d", v)
	}
	check.Commit()

	if segs := region.Stats().Segments; segs != 2 {
		t.Errorf("expected 2 segments, got %d", segs)
	}
}

// TestAllocRetractedOnAbort verifies an aborted transaction's allocations
// are taken back
func TestAllocRetractedOnAbort(t *testing.T) {
	region := newTestRegion(t, 4)
	a := wordAddr(region, 0)

	txn, _ := region.Begin(false) // rv = 0
	seg, res := txn.Alloc(2 * testWord)
	if res != AllocSuccess {
		t.Fatalf("Alloc failed: %v", res)
	}

	// a conflicting commit forces the next read to abort
	commitWord(t, region, a, 1)
	buf := make([]byte, testWord)
	if txn.Read(a, testWord, buf) {
		t.Fatal("expected stale read to abort")
	}

	if segs := region.Stats().Segments; segs != 1 {
		t.Errorf("expected the allocation to be retracted, have %d segments", segs)
	}

	// the address is dangling now; touching it aborts the toucher
	other, _ := region.Begin(false)
	if other.Read(seg, testWord, buf) {
		t.Error("read of a retracted segment must fail")
	}
}

// TestAllocBadSize verifies misaligned or empty allocations are refused
// without killing the transaction
func TestAllocBadSize(t *testing.T) {
	region := newTestRegion(t, 4)

	txn, _ := region.Begin(false)
	if _, res := txn.Alloc(0); res != AllocNoMem {
		t.Errorf("expected NoMem for zero size, got %v", res)
	}
	if _, res := txn.Alloc(testWord + 1); res != AllocNoMem {
		t.Errorf("expected NoMem for misaligned size, got %v", res)
	}

	// the transaction itself is still alive
	if !txn.Commit() {
		t.Error("transaction should survive refused allocations")
	}
}

// TestFreeDeferredUntilCommit verifies a freed segment stays readable
// until the freeing transaction commits
func TestFreeDeferredUntilCommit(t *testing.T) {
	region := newTestRegion(t, 4)

	setup, _ := region.Begin(false)
	seg, res := setup.Alloc(2 * testWord)
	if res != AllocSuccess {
		t.Fatalf("Alloc failed: %v", res)
	}
	writeWord(t, setup, seg, 5)
	if !setup.Commit() {
		t.Fatal("setup commit failed")
	}

	txn, _ := region.Begin(false)
	if !txn.Free(seg) {
		t.Fatal("Free of a live segment must succeed")
	}

	// not yet: another snapshot still sees the segment
	check, _ := region.Begin(true)
	if v := readWord(t, check, seg); v != 5 {
		t.Errorf("segment vanished before the free committed, got %d", v)
	}
	check.Commit()

	if !txn.Commit() {
		t.Fatal("commit failed")
	}

	// now it is gone
	after, _ := region.Begin(true)
	buf := make([]byte, testWord)
	if after.Read(seg, testWord, buf) {
		t.Error("read of a freed segment must fail")
	}

	if segs := region.Stats().Segments; segs != 1 {
		t.Errorf("expected 1 segment after free, got %d", segs)
	}
}

// TestFreeSurvivesAbort verifies an aborted transaction's frees never happen
func TestFreeSurvivesAbort(t *testing.T) {
	region := newTestRegion(t, 4)
	a := wordAddr(region, 0)

	setup, _ := region.Begin(false)
	seg, _ := setup.Alloc(2 * testWord)
	writeWord(t, setup, seg, 5)
	if !setup.Commit() {
		t.Fatal("setup commit failed")
	}

	txn, _ := region.Begin(false) // rv = 1
	if !txn.Free(seg) {
		t.Fatal("Free failed")
	}
	commitWord(t, region, a, 1)
	buf := make([]byte, testWord)
	if txn.Read(a, testWord, buf) {
		t.Fatal("expected stale read to abort")
	}

	// the free never took effect
	check, _ := region.Begin(true)
	if v := readWord(t, check, seg); v != 5 {
		t.Errorf("segment must survive an aborted free, got %d", v)
	}
	check.Commit()
}

// TestFreeInitialSegmentAborts verifies the initial segment is not freeable
func TestFreeInitialSegmentAborts(t *testing.T) {
	region := newTestRegion(t, 4)

	txn, _ := region.Begin(false)
	if txn.Free(region.Start()) {
		t.Error("freeing the initial segment must fail")
	}
	if txn.Commit() {
		t.Error("the failed free must have aborted the transaction")
	}
}

// TestFreeUnknownAddressAborts verifies a bogus address aborts the transaction
func TestFreeUnknownAddressAborts(t *testing.T) {
	region := newTestRegion(t, 4)

	txn, _ := region.Begin(false)
	if txn.Free(Address(1234)<<segmentShift + 8) {
		t.Error("freeing an unknown address must fail")
	}
}
