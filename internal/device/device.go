// Package device provides the abstract block-device capability the page
// allocator consumes for sector-aligned asynchronous I/O against a
// segmented file space, plus a concrete implementation backed by regular
// files on the local filesystem.
//
// Two independent Device instances are constructed by internal/engine: one
// for the primary log, one for the (optional) object log. The allocator
// never assumes which concrete Device it has — it only uses the interface
// below.
package device

import "context"

// CompletionFunc is invoked exactly once when an I/O operation finishes,
// successfully or not. errorCode is zero on success; a non-zero errorCode is
// logged by the device but never retried — the allocator is responsible for
// deciding what to do with it.
type CompletionFunc func(errorCode int, bytesTransferred uint32, ctx any)

// Device is the sector-aligned, segment-addressable async I/O capability
// the allocator's flush and read engines need. Offsets and lengths passed
// to every method must already be sector-aligned; the device itself
// performs no alignment correction.
type Device interface {
	// WriteAsync writes src to the device at fileOffset, reporting
	// completion via cb. ctx is threaded through to cb unchanged.
	WriteAsync(ctx context.Context, src []byte, fileOffset int64, cb CompletionFunc, cbCtx any)

	// ReadAsync reads nBytes from fileOffset into dest, reporting
	// completion via cb.
	ReadAsync(ctx context.Context, dest []byte, fileOffset int64, nBytes uint32, cb CompletionFunc, cbCtx any)

	// WriteAsyncSegment is the segmented variant of WriteAsync: offset is
	// relative to the start of segment seg.
	WriteAsyncSegment(ctx context.Context, src []byte, seg uint64, segOffset int64, cb CompletionFunc, cbCtx any)

	// ReadAsyncSegment is the segmented variant of ReadAsync.
	ReadAsyncSegment(ctx context.Context, dest []byte, seg uint64, segOffset int64, nBytes uint32, cb CompletionFunc, cbCtx any)

	// DeleteSegmentRange removes segments in [fromSeg, toSeg).
	DeleteSegmentRange(fromSeg, toSeg uint64) error

	// SegmentSize returns the fixed size in bytes of one segment file.
	SegmentSize() int64

	// Close releases any resources (open file handles, worker goroutines)
	// held by the device.
	Close() error
}
