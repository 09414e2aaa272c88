package hlog

import "sync/atomic"

// watermarks holds the monotonically-advancing addresses that delimit the
// live region of the log:
//
//	BeginAddress <= HeadAddress <= SafeHeadAddress <= ReadOnlyAddress <=
//	    SafeReadOnlyAddress <= TailAddress
//
// plus FlushedUntilAddress, which tracks how far flushes have actually
// landed (independent of the ordering chain above, since flushes complete
// asynchronously and out of order).
type watermarks struct {
	begin          atomic.Uint64
	head           atomic.Uint64
	safeHead       atomic.Uint64
	readOnly       atomic.Uint64
	safeReadOnly   atomic.Uint64
	tail           atomic.Uint64
	flushedUntil   atomic.Uint64
}

// advanceMonotonic CAS-loops dst forward to max(dst, v), never letting it
// decrease (P2: no watermark ever decreases).
func advanceMonotonic(dst *atomic.Uint64, v uint64) {
	for {
		cur := dst.Load()
		if v <= cur {
			return
		}
		if dst.CompareAndSwap(cur, v) {
			return
		}
	}
}

// BeginAddress returns the lowest logical address still reachable in the
// log (addresses below it have been trimmed via DeleteAddressRange).
func (a *Allocator) BeginAddress() LogicalAddress { return LogicalAddress(a.watermarks.begin.Load()) }

// HeadAddress returns the lowest logical address still resident in memory.
func (a *Allocator) HeadAddress() LogicalAddress { return LogicalAddress(a.watermarks.head.Load()) }

// SafeHeadAddress returns the highest HeadAddress value the epoch
// collaborator has confirmed safe to publish to readers.
func (a *Allocator) SafeHeadAddress() LogicalAddress {
	return LogicalAddress(a.watermarks.safeHead.Load())
}

// ReadOnlyAddress returns the logical address below which records are
// immutable and eligible for flush.
func (a *Allocator) ReadOnlyAddress() LogicalAddress {
	return LogicalAddress(a.watermarks.readOnly.Load())
}

// SafeReadOnlyAddress returns the highest ReadOnlyAddress value readers may
// rely on as stable.
func (a *Allocator) SafeReadOnlyAddress() LogicalAddress {
	return LogicalAddress(a.watermarks.safeReadOnly.Load())
}

// TailAddress returns the next logical address Allocate will hand out.
func (a *Allocator) TailAddress() LogicalAddress { return LogicalAddress(a.watermarks.tail.Load()) }

// FlushedUntilAddress returns the highest logical address below which every
// page has completed flushing to the log device, skipping no completed
// pages (ties broken by smallest page number first — see shiftFlushedUntilAddress).
func (a *Allocator) FlushedUntilAddress() LogicalAddress {
	return LogicalAddress(a.watermarks.flushedUntil.Load())
}

// ShiftReadOnlyAddress advances ReadOnlyAddress to addr (never backwards),
// marking every page below it immutable and eligible for flush. Callers
// (typically the enclosing store, reacting to memory pressure or an
// explicit flush request) are expected to also bump SafeReadOnlyAddress
// once the epoch collaborator confirms no in-flight writer still holds a
// pointer into the now-read-only region.
func (a *Allocator) ShiftReadOnlyAddress(addr LogicalAddress) {
	advanceMonotonic(&a.watermarks.readOnly, uint64(addr))
}

// ShiftSafeReadOnlyAddress advances SafeReadOnlyAddress to addr.
func (a *Allocator) ShiftSafeReadOnlyAddress(addr LogicalAddress) {
	advanceMonotonic(&a.watermarks.safeReadOnly, uint64(addr))
}

// ShiftHeadAddress advances HeadAddress to addr, marking pages below it
// eligible for eviction (closeStatus <- Closed) once the flush engine has
// also finished with them.
func (a *Allocator) ShiftHeadAddress(addr LogicalAddress) {
	advanceMonotonic(&a.watermarks.head, uint64(addr))
	a.requestCloseUpTo(addr)
}

// ShiftSafeHeadAddress advances SafeHeadAddress to addr.
func (a *Allocator) ShiftSafeHeadAddress(addr LogicalAddress) {
	advanceMonotonic(&a.watermarks.safeHead, uint64(addr))
}

// ShiftBeginAddress advances BeginAddress to addr and trims the underlying
// devices below it.
func (a *Allocator) ShiftBeginAddress(addr LogicalAddress) error {
	prior := LogicalAddress(a.watermarks.begin.Load())
	advanceMonotonic(&a.watermarks.begin, uint64(addr))
	if addr <= prior {
		return nil
	}
	return a.DeleteAddressRange(prior, addr)
}

// requestCloseUpTo marks (closeStatus <- Closed) every currently-resident
// page whose page number falls below addr's page. It runs synchronously
// from ShiftHeadAddress; the actual clearPage/reuse only happens once the
// corresponding flush has also completed (race resolution between
// status.requestClose in status.go and flushState.finish in flush.go).
func (a *Allocator) requestCloseUpTo(addr LogicalAddress) {
	newHeadPage := a.pageNumber(addr)
	for slot := range a.pages {
		ps := &a.pages[slot]
		if !ps.ready.Load() {
			continue
		}
		if ps.pageNumber.Load() >= newHeadPage {
			continue
		}
		if ps.status.requestClose() == flushStatusFlushed {
			// We observed Flushed already set: we're the thread
			// responsible for clearing before the slot is reused.
			// flushState.finish already ran while the page was still
			// Open, so it left the clear to the close request.
			a.clearPage(slot, ps.pageNumber.Load() == 0)
		}
	}
}

// shiftFlushedUntilAddress advances FlushedUntilAddress as far as possible
// without skipping any not-yet-completed page, breaking ties by smallest
// page number first. It's called from every flush completion.
func (a *Allocator) shiftFlushedUntilAddress() {
	for {
		cur := a.watermarks.flushedUntil.Load()
		curPage := cur / uint64(a.cfg.PageSize)
		slot := int(curPage & uint64(a.cfg.BufferSize-1))

		ps := &a.pages[slot]
		if !ps.ready.Load() || ps.pageNumber.Load() != curPage {
			return
		}
		until := ps.lastFlushedUntil.Load()
		if until <= cur {
			return
		}
		if !a.watermarks.flushedUntil.CompareAndSwap(cur, until) {
			continue
		}
	}
}
