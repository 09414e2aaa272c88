package hlog

import (
	"bytes"
	"context"
	"sync/atomic"
	"unsafe"

	"github.com/iamNilotpal/ignite/internal/device"
	"github.com/iamNilotpal/ignite/internal/metrics"
)

// FlushCallback is invoked exactly once per FlushPage call, after both the
// object-log writes (if any) and the main page write have completed.
type FlushCallback func(page uint64, err error)

// flushState tracks the in-flight completions for a single FlushPage call:
// the object-log batches (if the page has objects) plus the main page
// write all decrement the same reference count, and the last one to finish
// invokes cb.
type flushState struct {
	remaining atomic.Int32
	page      uint64
	slot      int
	isPageZero bool
	cb        FlushCallback
	err       atomic.Pointer[error]
	dest      flushDestination
	a         *Allocator
}

// flushDestination abstracts "flush to the live log device at its natural
// offset" vs "flush to a caller-supplied snapshot device at a caller-chosen
// dense offset" (the checkpoint-snapshot sub-variant).
type flushDestination struct {
	logDevice      device.Device
	objectDevice   device.Device
	fileOffset     int64
	segmentOffsets []*atomic.Uint64 // nil => use the live segmentOffsets table
}

// FlushPage issues the asynchronous writes needed to make page p durable:
// a single write for purely-blittable pages, or a scratch-copy-and-patch
// sequence through the object log when either side of a record declares
// out-of-line objects. cb fires exactly once, after every write this call
// issued has completed.
func (a *Allocator) FlushPage(p uint64, cb FlushCallback) {
	slot := int(p & uint64(a.cfg.BufferSize-1))
	ps := &a.pages[slot]

	if !ps.status.beginFlush() {
		cb(p, errFlushAlreadyInProgress)
		return
	}

	dest := flushDestination{
		logDevice:  a.logDevice,
		fileOffset: int64(p) * alignedPageBytes(a.cfg),
	}
	a.flushPageTo(p, slot, dest, cb)
}

// FlushPageTo is the checkpoint-snapshot sub-variant: it flushes page p to a
// caller-chosen device at a caller-chosen dense offset, using a
// caller-supplied segment-offset vector instead of the live one, so the
// snapshot doesn't perturb (or race with) ongoing live-log object-log
// allocation.
func (a *Allocator) FlushPageTo(p uint64, startPage uint64, logDevice, objectDevice device.Device, segmentOffsets []*atomic.Uint64, cb FlushCallback) {
	slot := int(p & uint64(a.cfg.BufferSize-1))
	ps := &a.pages[slot]

	if !ps.status.beginFlush() {
		cb(p, errFlushAlreadyInProgress)
		return
	}

	dest := flushDestination{
		logDevice:      logDevice,
		objectDevice:   objectDevice,
		fileOffset:     int64(p-startPage) * alignedPageBytes(a.cfg),
		segmentOffsets: segmentOffsets,
	}
	a.flushPageTo(p, slot, dest, cb)
}

func (a *Allocator) flushPageTo(p uint64, slot int, dest flushDestination, cb FlushCallback) {
	ps := &a.pages[slot]
	isPageZero := p == 0
	page := unsafe.Slice((*byte)(ps.aligned), a.cfg.PageSize)

	fs := &flushState{page: p, slot: slot, isPageZero: isPageZero, cb: cb, dest: dest, a: a}
	fs.remaining.Store(1) // the main page write; bumped further for object batches

	objDevice := dest.objectDevice
	if objDevice == nil {
		objDevice = a.objectLogDevice
	}

	if (!a.handler.KeyHasObjects() && !a.handler.ValueHasObjects()) || objDevice == nil {
		a.writeMainPage(fs, page)
		return
	}

	scratch, err := a.pool.Get(int(a.cfg.PageSize))
	if err != nil {
		fs.finish(err)
		return
	}
	copy(scratch.Aligned, page)

	start := 0
	if isPageZero {
		start = FirstValidAddress
	}
	end := int(a.cfg.PageSize)

	a.serializeBatches(fs, scratch.Aligned, start, end, objDevice, func(err error) {
		defer a.pool.Return(scratch)
		if err != nil {
			fs.finish(err)
			return
		}
		a.writeMainPage(fs, scratch.Aligned)
	})
}

// serializeBatches walks page from start to end in OBJECT_BLOCK_SIZE-bounded
// batches, reserving object-log space per batch and waiting for each
// non-final batch's write to complete before serializing the next (because
// batches share the page-handler's serializer state). done is called once
// every batch has been issued and (for all but possibly the last) has
// completed.
func (a *Allocator) serializeBatches(fs *flushState, page []byte, start, end int, objDevice device.Device, done func(error)) {
	segmentOffsets := a.segmentOffsets
	if fs.dest.segmentOffsets != nil {
		segmentOffsets = fs.dest.segmentOffsets
	}

	var step func(pos int)
	step = func(pos int) {
		if pos >= end {
			done(nil)
			return
		}

		var buf bytes.Buffer
		patchOffsets, n, resumePos, err := a.handler.Serialize(page, pos, end, a.cfg.objectBlockSize(), &buf)
		if err != nil {
			done(err)
			return
		}
		if resumePos <= pos {
			// Nothing more could be serialized from this position;
			// avoid spinning forever.
			done(nil)
			return
		}

		segNum, segSlotIdx := a.segmentForPage(fs.page)
		segSlot := segmentOffsets[segSlotIdx]

		reserveLen := sectorAlign(int64(n), int64(a.cfg.SectorSize))
		segOffset := segSlot.Add(uint64(reserveLen)) - uint64(reserveLen)

		for _, off := range patchOffsets {
			PutAddressInfo(page[off:off+AddressInfoSize], NewAddressInfo(uint32(segOffset), uint32(n)))
		}

		fs.remaining.Add(1)
		metrics.ObjectLogWrites.Inc()

		writeBuf := make([]byte, reserveLen)
		copy(writeBuf, buf.Bytes())

		isFinal := resumePos >= end
		objDevice.WriteAsyncSegment(context.Background(), writeBuf, segNum, int64(segOffset), func(errorCode int, _ uint32, _ any) {
			if errorCode != 0 {
				metrics.DeviceErrors.Inc()
				fs.decrementWith(deviceIOErr(segNum, errorCode))
			} else {
				fs.decrementWith(nil)
			}

			if isFinal {
				done(nil)
				return
			}
			// Non-final batches block subsequent serialization until
			// their write completes.
			step(resumePos)
		}, nil)

		if !isFinal {
			return
		}
	}

	step(start)
}

func (a *Allocator) writeMainPage(fs *flushState, page []byte) {
	seg := a.pageSegment(fs.page, fs.dest)
	fs.dest.logDevice.WriteAsyncSegment(context.Background(), page, seg, a.pageSegmentOffset(fs.page, fs.dest), func(errorCode int, bytesTransferred uint32, _ any) {
		if errorCode != 0 {
			metrics.DeviceErrors.Inc()
			fs.decrementWith(deviceIOErr(seg, errorCode))
			return
		}
		metrics.BytesFlushed.Add(float64(bytesTransferred))
		fs.decrementWith(nil)
	}, nil)
}

// decrementWith records err (first error wins) and, once every outstanding
// write this flush issued has completed, finalizes the flush.
func (fs *flushState) decrementWith(err error) {
	if err != nil {
		fs.err.CompareAndSwap(nil, &err)
	}
	if fs.remaining.Add(-1) == 0 {
		var final error
		if p := fs.err.Load(); p != nil {
			final = *p
		}
		fs.finish(final)
	}
}

func (fs *flushState) finish(err error) {
	a := fs.a
	ps := &a.pages[fs.slot]

	ps.lastFlushedUntil.Store((fs.page + 1) * uint64(a.cfg.PageSize))

	for {
		cur := ps.status.load()
		if cur.close() == closeStatusClosed {
			a.clearPage(fs.slot, fs.isPageZero)
		}
		next := packStatus(flushStatusFlushed, cur.close())
		if ps.status.compareAndSwap(cur, next) {
			break
		}
	}

	a.shiftFlushedUntilAddress()
	metrics.PagesFlushed.Inc()

	if fs.cb != nil {
		fs.cb(fs.page, err)
	}
}

func alignedPageBytes(cfg Config) int64 {
	return sectorAlign(cfg.PageSize, int64(cfg.SectorSize))
}

func sectorAlign(n, sector int64) int64 {
	return (n + sector - 1) &^ (sector - 1)
}

// pageSegment and pageSegmentOffset translate a page number into the
// (segment, intra-segment offset) pair the Device interface addresses,
// honoring the snapshot sub-variant's dense destination offsets.
func (a *Allocator) pageSegment(p uint64, dest flushDestination) uint64 {
	if dest.logDevice != a.logDevice {
		// Snapshot path: fileOffset is already the dense destination
		// offset, relative to the snapshot's own segment numbering.
		return uint64(dest.fileOffset / a.segmentByteSize())
	}
	bytesOffset := int64(p) * alignedPageBytes(a.cfg)
	return uint64(bytesOffset / a.segmentByteSize())
}

func (a *Allocator) pageSegmentOffset(p uint64, dest flushDestination) int64 {
	if dest.logDevice != a.logDevice {
		return dest.fileOffset % a.segmentByteSize()
	}
	bytesOffset := int64(p) * alignedPageBytes(a.cfg)
	return bytesOffset % a.segmentByteSize()
}

func (a *Allocator) segmentByteSize() int64 {
	return a.cfg.SegmentSize
}

// segmentForPage returns the object-log segment number a page's objects are
// written to, and the index into the segment-offset table for that segment.
func (a *Allocator) segmentForPage(p uint64) (seg uint64, slot int) {
	bytesOffset := int64(p) * alignedPageBytes(a.cfg)
	seg = uint64(bytesOffset / a.segmentByteSize())
	slot = int(seg % uint64(a.cfg.SegmentBufferSize))
	return
}
