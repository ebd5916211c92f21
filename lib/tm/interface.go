package tm

import (
	"fmt"

	"github.com/Ryanmaxin/goTM/lib/tm/internal"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Address is an opaque location in a shared memory region. Addresses are
// assigned by the region and are only meaningful within it. The first
// shared byte of the initial segment is returned by Start() and is stable
// for the region's lifetime; clients derive further addresses by adding
// multiples of the region alignment.
type Address uint64

// AllocResult is the tri-state outcome of a transactional allocation.
type AllocResult int

const (
	// AllocSuccess means the segment was allocated and registered.
	AllocSuccess AllocResult = iota
	// AllocNoMem means the allocation failed; the transaction may continue.
	AllocNoMem
	// AllocAbort means the transaction was aborted and must not be used further.
	AllocAbort
)

func (r AllocResult) String() string {
	switch r {
	case AllocSuccess:
		return "Success"
	case AllocNoMem:
		return "NoMem"
	case AllocAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// Stats is a point-in-time snapshot of region internals, intended for
// monitoring and benchmarks. Fields are sampled independently and are not
// guaranteed to be mutually consistent.
type Stats struct {
	Segments   int    // number of live segments (including the initial one)
	ClockValue uint64 // current global version clock value
	NumStripes int    // size of the lock stripe table
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ISharedMemory is a word-addressed shared memory region with software
// transactional memory semantics. Multiple goroutines may run transactions
// against one region concurrently; every committed transaction appears to
// take effect atomically at a single point in the region's version clock
// order, and an aborted transaction leaves no observable effect.
//
// All sizes passed to transactional operations must be positive multiples
// of the region alignment and all addresses must be word-aligned; the
// engine does not defend against violations of this contract.
type ISharedMemory interface {
	// Start returns the address of the first byte of the initial segment.
	Start() Address
	// Size returns the byte size of the initial segment.
	Size() uint64
	// Align returns the region alignment (= word size) in bytes.
	Align() uint64
	// Begin starts a new transaction. Read-only transactions skip all
	// bookkeeping and can never block a writer.
	Begin(readOnly bool) (ITransaction, error)
	// Stats returns a snapshot of region internals.
	Stats() Stats
	// Close destroys the region. Precondition: no transaction is in
	// flight. The caller is responsible for enforcing this.
	Close()
}

// ITransaction is a single transaction on a shared memory region. A
// transaction is owned by the goroutine that began it and must not be
// shared. Once any operation has returned false (or Commit has been
// called), the transaction is dead and every further operation fails. The
// one exception is Write on a read-only transaction, which returns false
// and leaves the transaction alive.
type ITransaction interface {
	// Read copies size bytes from the shared address src into the private
	// buffer dst. It returns whether the transaction can continue; on
	// false the transaction has been aborted.
	Read(src Address, size uint64, dst []byte) bool
	// Write buffers size bytes from the private buffer src to be
	// published at the shared address dst on commit. Shared memory is not
	// touched before commit. It returns whether the transaction can
	// continue. On a read-only transaction it always returns false without
	// aborting the transaction.
	Write(src []byte, size uint64, dst Address) bool
	// Alloc allocates a new zero-filled shared segment of the given size
	// and returns its first address.
	Alloc(size uint64) (Address, AllocResult)
	// Free schedules the segment starting at addr for deallocation when
	// the transaction commits. addr must come from a prior Alloc; the
	// initial segment cannot be freed. It returns whether the transaction
	// can continue; on false the transaction has been aborted.
	Free(addr Address) bool
	// Commit ends the transaction. It returns true if every speculative
	// read still holds and all buffered writes were published atomically,
	// false if the transaction was aborted. Either way the transaction is
	// consumed.
	Commit() bool
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message. It is returned by region construction; the
// transactional operations themselves report failure through their boolean
// results only.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInvalidArgument:
		errorCode = "InvalidArgument"
	case RetCNoMem:
		errorCode = "NoMem"
	case RetCInternalError:
		errorCode = "InternalError"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("TMError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Operation executed successfully.
	RetCInvalidArgument                // 1: Invalid size, alignment or option.
	RetCNoMem                          // 2: Allocation failed.
	RetCInternalError                  // 3: Operation failed due to an internal error.
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a region during creation.
type Options struct {
	// NumStripes is the size of the lock stripe table. Must be a power of
	// two. More stripes mean fewer spurious conflicts between unrelated
	// words at the cost of memory.
	NumStripes int
}

// DefaultOptions returns the default region options.
func DefaultOptions() *Options {
	return &Options{
		NumStripes: internal.DefaultNumStripes,
	}
}
