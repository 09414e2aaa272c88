package hlog

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
)

// pageSlot is one ring-buffer position: the backing byte region, its
// sector-aligned usable origin, and the packed status/watermark pair that
// drives flush and eviction.
type pageSlot struct {
	buf     *bufferpool.Buffer
	aligned unsafe.Pointer

	status           statusWord
	lastFlushedUntil atomic.Uint64

	// ready is set once allocatePage has published aligned for this
	// slot's current page. pageNumber records which absolute page is
	// currently resident so Allocate can detect a stale/reused slot.
	ready      atomic.Bool
	pageNumber atomic.Uint64

	// materialize serializes concurrent allocatePage/clearPage calls
	// against the same slot; the hot CAS paths (status, watermarks) never
	// take this lock.
	materialize sync.Mutex
}

// allocatePage materializes slot as the backing store for absolute page p:
// it borrows a fresh sector-aligned buffer from the pool, zeroes it,
// publishes the aligned origin, and marks the slot (Flushed, Open) — it
// starts with nothing to flush, but it's live and must go through a real
// close (requestCloseUpTo, via ShiftHeadAddress) before a later wraparound
// is allowed to reuse its slot. The reserved FIRST_VALID_ADDRESS prefix of
// page zero is left zeroed and never handed out by Allocate.
func (a *Allocator) allocatePage(slot int, p uint64) error {
	ps := &a.pages[slot]
	ps.materialize.Lock()
	defer ps.materialize.Unlock()

	buf, err := a.pool.Get(int(a.cfg.PageSize))
	if err != nil {
		return err
	}
	for i := range buf.Aligned {
		buf.Aligned[i] = 0
	}

	ps.buf = buf
	ps.aligned = unsafe.Pointer(&buf.Aligned[0])
	ps.lastFlushedUntil.Store(p * uint64(a.cfg.PageSize))
	ps.status.store(packStatus(flushStatusFlushed, closeStatusOpen))
	ps.pageNumber.Store(p)
	ps.ready.Store(true)

	return nil
}

// clearPage releases any live object handles held in page slot's occupied
// record range (via the page-handler capability, when either side of a
// record declares objects) and then zeroes the entire slot buffer. The
// buffer is always zeroed even for purely-blittable logs, to keep a single
// code path responsible for leaving a reused slot in a clean state.
func (a *Allocator) clearPage(slot int, isPageZero bool) {
	ps := &a.pages[slot]
	if ps.aligned == nil {
		return
	}

	page := unsafe.Slice((*byte)(ps.aligned), a.cfg.PageSize)

	if a.handler.KeyHasObjects() || a.handler.ValueHasObjects() {
		skip := 0
		if isPageZero {
			skip = FirstValidAddress
		}
		a.handler.ClearPage(page, skip)
	}

	for i := range page {
		page[i] = 0
	}
}

// ensurePageForWrite makes sure the slot backing absolute page p is
// materialized and ready to accept writes, reusing the slot's previous page
// (evicting and clearing it first) if necessary. It returns
// AllocationStall when the slot cannot yet be reused because its prior page
// hasn't finished flushing and closing.
func (a *Allocator) ensurePageForWrite(p uint64, slot int) error {
	ps := &a.pages[slot]

	if ps.ready.Load() && ps.pageNumber.Load() == p {
		return nil
	}

	if ps.ready.Load() && ps.pageNumber.Load() != p {
		if !ps.status.reusable() {
			return allocationStallErr(slot, p, a.cfg.OffsetBits)
		}
		a.clearPage(slot, ps.pageNumber.Load() == 0)
	}

	return a.allocatePage(slot, p)
}
