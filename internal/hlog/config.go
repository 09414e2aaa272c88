// Package hlog implements the page-resident log allocator: the append-only
// logical address space backed simultaneously by a bounded circular buffer
// of in-memory pages and one or two block devices.
package hlog

import (
	"math/bits"

	"github.com/iamNilotpal/ignite/pkg/errors"
)

// OversizedObjectLimit is the largest single object-log fragment the read
// engine will accept: 2 GiB.
const OversizedObjectLimit = int64(2) << 30

// DefaultObjectBlockSize is the largest serialized-object batch the flush
// engine will accumulate before issuing an object-log write: 100 MiB.
const DefaultObjectBlockSize = 100 << 20

// FirstValidAddress is the lowest logical address Allocate will ever hand
// out. Logical address 0 is a reserved null sentinel, and the remainder of
// the first few bytes of page zero are reserved alongside it so a valid
// address is never confused with "no address."
const FirstValidAddress = 64

// Config describes the fixed geometry of a log allocator: how logical
// addresses are partitioned into offset/page-index/segment ranges, how big
// each page and sector are, and how many segments worth of object-log
// offsets to track.
type Config struct {
	// OffsetBits is the number of low bits of a logical address that
	// index within a page. 1<<OffsetBits must equal PageSize.
	OffsetBits uint

	// PageSize is the size in bytes of one ring-buffer page.
	// Must equal 1<<OffsetBits.
	PageSize int64

	// BufferSize is the number of pages held in memory at once (the ring
	// buffer's capacity). Must be a power of two.
	BufferSize int

	// SectorSize is the device sector size every aligned region must be
	// a multiple of. Must be a power of two.
	SectorSize int

	// SegmentSize is the size in bytes of one log-device segment file.
	SegmentSize int64

	// SegmentBufferSize is the number of segment-offset table entries
	// tracked for the object log: segmentOffset[s], s in
	// [0, SegmentBufferSize).
	SegmentBufferSize int

	// ObjectLogEnabled indicates whether either side of a record may
	// carry out-of-line object payloads, requiring an object-log device.
	ObjectLogEnabled bool

	// ObjectBlockSize caps how many serialized object bytes the flush
	// engine accumulates before emitting an object-log write. Defaults
	// to DefaultObjectBlockSize when zero.
	ObjectBlockSize int64
}

// pageIndexBits returns log2(BufferSize), i.e. how many bits of a logical
// address select the ring slot.
func (c Config) pageIndexBits() uint {
	return uint(bits.TrailingZeros(uint(c.BufferSize)))
}

// Validate checks the invariants every other component assumes: power-of-two
// page, buffer and sector sizes, offset bits matching the page size, a page
// size that is a multiple of the sector size, a segment size that is a
// positive multiple of the page size, and a positive SegmentBufferSize. It
// does not check for an object-log device; New does that. It returns a
// ConfigurationError on the first violation.
func (c Config) Validate() error {
	if c.PageSize <= 0 || !isPowerOfTwo(uint64(c.PageSize)) {
		return errors.NewConfigurationError("PageSize", "must be a power of two")
	}
	if int64(1)<<c.OffsetBits != c.PageSize {
		return errors.NewConfigurationError("OffsetBits", "1<<OffsetBits must equal PageSize")
	}
	if c.BufferSize <= 0 || !isPowerOfTwo(uint64(c.BufferSize)) {
		return errors.NewConfigurationError("BufferSize", "must be a power of two")
	}
	if c.SectorSize <= 0 || !isPowerOfTwo(uint64(c.SectorSize)) {
		return errors.NewConfigurationError("SectorSize", "must be a power of two")
	}
	if c.PageSize%int64(c.SectorSize) != 0 {
		return errors.NewConfigurationError("PageSize", "must be a multiple of SectorSize")
	}
	if c.SegmentSize <= 0 || c.SegmentSize%c.PageSize != 0 {
		return errors.NewConfigurationError("SegmentSize", "must be a positive multiple of PageSize")
	}
	if c.SegmentBufferSize <= 0 {
		return errors.NewConfigurationError("SegmentBufferSize", "must be positive")
	}
	return nil
}

// PageSize returns the configured ring-buffer page size in bytes, exposed
// for callers (the eviction driver) that need to translate between logical
// addresses and page numbers without reaching into the allocator's internals.
func (a *Allocator) PageSize() int64 { return a.cfg.PageSize }

func (c Config) objectBlockSize() int64 {
	if c.ObjectBlockSize > 0 {
		return c.ObjectBlockSize
	}
	return DefaultObjectBlockSize
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
