package hlog

import (
	"unsafe"
)

// LogicalAddress is a 64-bit index into the conceptual append-only log. The
// high bits name a segment, the middle bits name a ring-buffer page slot,
// and the low bits name an intra-page offset.
type LogicalAddress uint64

// pageIndex returns the ring-buffer slot a logical address maps into.
func (a *Allocator) pageIndex(addr LogicalAddress) int {
	return int((uint64(addr) >> a.cfg.OffsetBits) & uint64(a.cfg.BufferSize-1))
}

// pageNumber returns the absolute page number (not wrapped into the ring)
// a logical address belongs to.
func (a *Allocator) pageNumber(addr LogicalAddress) uint64 {
	return uint64(addr) >> a.cfg.OffsetBits
}

// offsetInPage returns the intra-page byte offset of a logical address.
func (a *Allocator) offsetInPage(addr LogicalAddress) uint64 {
	return uint64(addr) & ((uint64(1) << a.cfg.OffsetBits) - 1)
}

// addressOfPage returns the logical address of the first byte of page p.
func addressOfPage(p uint64, offsetBits uint) LogicalAddress {
	return LogicalAddress(p << offsetBits)
}

// PhysicalAddress translates a logical address into a native pointer within
// whichever ring-buffer page slot currently backs it. Callers must already
// have ensured addr lies in the live window [BeginAddress, TailAddress); no
// bounds check is performed.
func (a *Allocator) PhysicalAddress(addr LogicalAddress) unsafe.Pointer {
	slot := a.pageIndex(addr)
	offset := a.offsetInPage(addr)
	base := a.pages[slot].aligned
	return unsafe.Add(base, offset)
}

// PhysicalSlice is a convenience wrapper over PhysicalAddress returning a
// []byte view of n bytes starting at addr. Used by callers (serialize,
// record construction) that want slice semantics instead of raw pointers.
func (a *Allocator) PhysicalSlice(addr LogicalAddress, n int) []byte {
	ptr := a.PhysicalAddress(addr)
	return unsafe.Slice((*byte)(ptr), n)
}

// Allocate atomically reserves n contiguous bytes at the tail of the log,
// returning the logical address at which the caller may write them. If the
// allocation would straddle a page boundary it skips ahead to the start of
// the next page (the skipped bytes are wasted, never reused). If the target
// page is not yet materialized or not currently writable, Allocate returns
// an AllocationStall error and the caller is expected to refresh its epoch
// and retry.
func (a *Allocator) Allocate(n uint32) (LogicalAddress, error) {
	for {
		tail := a.watermarks.tail.Load()
		pageOffset := tail & ((uint64(1) << a.cfg.OffsetBits) - 1)

		start := tail
		if pageOffset+uint64(n) > uint64(a.cfg.PageSize) {
			// Would straddle a page boundary: skip to the next page.
			start = (tail &^ ((uint64(1) << a.cfg.OffsetBits) - 1)) + uint64(a.cfg.PageSize)
		}
		next := start + uint64(n)

		if !a.watermarks.tail.CompareAndSwap(tail, next) {
			continue
		}

		addr := LogicalAddress(start)
		page := a.pageNumber(addr)
		slot := a.pageIndex(addr)

		if !a.pages[slot].ready.Load() || a.pages[slot].pageNumber.Load() != page {
			if err := a.ensurePageForWrite(page, slot); err != nil {
				return 0, err
			}
		}

		return addr, nil
	}
}
