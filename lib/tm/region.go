package tm

import (
	"sync/atomic"

	"github.com/Ryanmaxin/goTM/lib/tm/internal"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("tm")

// segmentShift positions the segment id plus one in the upper bits of an
// Address, leaving 48 bits of byte offset per segment. The initial segment
// has id 0; the added one keeps the zero Address from ever being valid.
const segmentShift = 48

// segment is one contiguous allocation of shared memory. The initial
// segment is created with the region; further segments come from Alloc.
type segment struct {
	base Address
	data []byte
}

// regionImpl implements ISharedMemory. The backing buffers are mutated
// only by committing transactions holding the relevant stripe locks; the
// segment table is a concurrent map so the read/write hot path can resolve
// addresses without taking any region-level lock.
type regionImpl struct {
	size  uint64
	align uint64

	clock    internal.VersionClock
	stripes  *internal.StripeTable
	segments *xsync.MapOf[uint64, *segment]
	nextSeg  atomic.Uint64
}

// New creates a shared memory region with one initial zero-filled segment
// of the given size and alignment. size must be a positive multiple of
// align and align must be a power of two.
//
// Thread-safety: the returned region is safe for concurrent use; New
// itself should be called once per region.
func New(size, align uint64, opts *Options) (ISharedMemory, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, NewError(RetCInvalidArgument, "alignment must be a positive power of two")
	}
	if size == 0 || size%align != 0 {
		return nil, NewError(RetCInvalidArgument, "size must be a positive multiple of the alignment")
	}

	if opts == nil {
		opts = DefaultOptions()
	}

	stripes, err := internal.NewStripeTable(opts.NumStripes, align)
	if err != nil {
		return nil, NewError(RetCInvalidArgument, err.Error())
	}

	region := &regionImpl{
		size:     size,
		align:    align,
		stripes:  stripes,
		segments: xsync.NewMapOf[uint64, *segment](),
	}

	// Segment id 0 is the initial segment; Go zeroes the buffer for us.
	region.segments.Store(0, &segment{
		base: baseAddress(0),
		data: make([]byte, size),
	})

	log.Infof("created region (size=%d, align=%d, stripes=%d)", size, align, stripes.Len())
	return region, nil
}

// baseAddress returns the first address of the segment with the given id.
func baseAddress(segID uint64) Address {
	return Address((segID + 1) << segmentShift)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (r *regionImpl) Start() Address {
	return baseAddress(0)
}

func (r *regionImpl) Size() uint64 {
	return r.size
}

func (r *regionImpl) Align() uint64 {
	return r.align
}

func (r *regionImpl) Begin(readOnly bool) (ITransaction, error) {
	txn := &transaction{
		region:   r,
		rv:       r.clock.Sample(),
		readOnly: readOnly,
	}
	// Read-only transactions never validate at commit and never lock, so
	// they carry no read or write set at all.
	if !readOnly {
		txn.reads = internal.NewReadSet()
		txn.writes = internal.NewWriteSet()
	}
	return txn, nil
}

func (r *regionImpl) Stats() Stats {
	return Stats{
		Segments:   r.segments.Size(),
		ClockValue: r.clock.Sample(),
		NumStripes: r.stripes.Len(),
	}
}

func (r *regionImpl) Close() {
	r.segments.Clear()
	log.Infof("closed region (size=%d, align=%d)", r.size, r.align)
}

// --------------------------------------------------------------------------
// Address resolution and segment management
// --------------------------------------------------------------------------

// resolve maps a shared address range onto its segment buffer. The whole
// range must lie within one segment.
func (r *regionImpl) resolve(addr Address, size uint64) (seg *segment, offset uint64, ok bool) {
	segID := uint64(addr)>>segmentShift - 1
	seg, found := r.segments.Load(segID)
	if !found {
		return nil, 0, false
	}
	offset = uint64(addr - seg.base)
	if offset+size > uint64(len(seg.data)) {
		return nil, 0, false
	}
	return seg, offset, true
}

// allocSegment creates and registers a new zero-filled segment, returning
// its id and base address.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *regionImpl) allocSegment(size uint64) (uint64, Address) {
	segID := r.nextSeg.Add(1)
	base := baseAddress(segID)
	r.segments.Store(segID, &segment{
		base: base,
		data: make([]byte, size),
	})
	return segID, base
}

// dropSegment removes a segment from the region.
func (r *regionImpl) dropSegment(segID uint64) {
	r.segments.Delete(segID)
}
