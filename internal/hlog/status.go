package hlog

import "sync/atomic"

// flushStatus and closeStatus are packed together into a single 32-bit word
// so the page status machine can CAS both at once instead of coordinating
// two separate atomics.
type flushStatus uint8

const (
	flushStatusInProgress flushStatus = iota
	flushStatusFlushed
)

type closeStatus uint8

const (
	closeStatusOpen closeStatus = iota
	closeStatusClosed
)

// pageStatus packs (flush, close) into one uint32: flush in the low byte,
// close in the next byte. Packing means the flush-completion and
// page-eviction paths CAS the exact same word, so whichever one observes
// the other's write first is well-defined without any extra locking.
type pageStatus uint32

func packStatus(f flushStatus, c closeStatus) pageStatus {
	return pageStatus(uint32(f) | uint32(c)<<8)
}

func (s pageStatus) flush() flushStatus { return flushStatus(s & 0xff) }
func (s pageStatus) close() closeStatus { return closeStatus((s >> 8) & 0xff) }

// statusWord is the atomic home for one page slot's packed status.
type statusWord struct {
	word atomic.Uint32
}

func (sw *statusWord) load() pageStatus {
	return pageStatus(sw.word.Load())
}

func (sw *statusWord) store(s pageStatus) {
	sw.word.Store(uint32(s))
}

func (sw *statusWord) compareAndSwap(old, new pageStatus) bool {
	return sw.word.CompareAndSwap(uint32(old), uint32(new))
}

// beginFlush transitions a slot from (Flushed, *) to (InProgress, *),
// preserving whatever close status is currently set. Returns false if the
// slot wasn't in the Flushed state (a flush is already in progress).
func (sw *statusWord) beginFlush() bool {
	for {
		cur := sw.load()
		if cur.flush() != flushStatusFlushed {
			return false
		}
		next := packStatus(flushStatusInProgress, cur.close())
		if sw.compareAndSwap(cur, next) {
			return true
		}
	}
}

// requestClose transitions a slot's close status to Closed, preserving
// whatever flush status is currently set. Returns the flush status observed
// at the moment of the winning CAS, so the eviction path can tell whether it
// arrived before or after the flush completed.
func (sw *statusWord) requestClose() flushStatus {
	for {
		cur := sw.load()
		if cur.close() == closeStatusClosed {
			return cur.flush()
		}
		next := packStatus(cur.flush(), closeStatusClosed)
		if sw.compareAndSwap(cur, next) {
			return cur.flush()
		}
	}
}

// reusable reports whether a slot is in the terminal (Flushed, Closed)
// state required before it may be reused for a new page.
func (sw *statusWord) reusable() bool {
	cur := sw.load()
	return cur.flush() == flushStatusFlushed && cur.close() == closeStatusClosed
}
