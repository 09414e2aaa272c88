package hlog

import (
	"bytes"
	"context"
	"unsafe"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
	"github.com/iamNilotpal/ignite/internal/metrics"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// ReadCallback is invoked exactly once when a ReadRecordToMemory call
// (including any follow-on object-log fetches it required) has finished.
// For ReadRecordToMemory, result is the filled buffer on success and nil on
// error; its AvailableBytes/ValidOffset describe where the record's bytes
// begin within the buffer. ReadAsync always passes a nil result.
type ReadCallback func(result *bufferpool.Buffer, err error)

// ReadRecordToMemory fetches the record at logical address addr into a
// freshly borrowed sector-aligned buffer. A record whose page is still
// resident (addr >= HeadAddress) is copied straight out of that page.
// Otherwise the sector-aligned range covering the record is read from the
// log device, with ValidOffset marking where the record starts inside it,
// and then — if the record's page handler reports either side carries
// out-of-line objects — the object-log back-references are walked and
// reinflated via GetObjectInfo/Deserialize before cb is invoked.
// estimatedSize is the caller's best guess at the record's total size
// (header + inline fields); only that many record bytes are read, and a
// record that extends past it is not re-fetched.
func (a *Allocator) ReadRecordToMemory(ctx context.Context, addr LogicalAddress, estimatedSize uint32, cb ReadCallback) {
	if buf, ok, err := a.readFromMemory(addr, estimatedSize); err != nil {
		cb(nil, err)
		return
	} else if ok {
		metrics.PagesRead.Inc()
		cb(buf, nil)
		return
	}

	sector := int64(a.cfg.SectorSize)
	seg, segOffset := a.addressSegment(addr)
	alignedOffset := segOffset &^ (sector - 1)
	validOffset := int(segOffset - alignedOffset)
	alignedLen := sectorAlign(int64(validOffset)+int64(estimatedSize), sector)

	buf, err := a.pool.Get(int(alignedLen))
	if err != nil {
		cb(nil, err)
		return
	}

	buf.ValidOffset = validOffset
	buf.AvailableBytes = int(estimatedSize)

	a.logDevice.ReadAsyncSegment(ctx, buf.Aligned, seg, alignedOffset, uint32(alignedLen), func(errorCode int, bytesTransferred uint32, _ any) {
		if errorCode != 0 {
			metrics.DeviceErrors.Inc()
			a.pool.Return(buf)
			cb(nil, errors.NewDeviceError(nil, seg).WithDeviceErrorCode(errorCode))
			return
		}

		metrics.PagesRead.Inc()
		available := min(max(int(bytesTransferred)-validOffset, 0), int(estimatedSize))
		buf.AvailableBytes = available

		if !a.handler.KeyHasObjects() && !a.handler.ValueHasObjects() {
			cb(buf, nil)
			return
		}

		a.reinflateObjects(ctx, buf, validOffset, validOffset+available, cb)
	}, nil)
}

// ReadAsync reads length bytes starting at the raw device byte offset
// fileOffset directly into the resident page backing slot — the
// page-granular counterpart to ReadRecordToMemory's logical-address,
// pool-buffer point reads, used when a whole page needs to be brought back
// into a specific ring-buffer slot rather than a one-off record fetched
// into borrowed memory. If neither side of the page handler declares
// objects it's a single straight device read into the slot's aligned
// origin; otherwise the completion walks the page from its start, asking
// the page handler for each object back-reference via GetObjectInfo,
// fetching it from the object log, and patching it back in with
// Deserialize, until the walk reaches length. cb's result parameter is
// always nil — the read lands directly in the slot, so there's nothing
// separate to hand back — only its error matters.
func (a *Allocator) ReadAsync(ctx context.Context, fileOffset int64, slot int, length uint32, cb ReadCallback) {
	ps := &a.pages[slot]
	dest := unsafe.Slice((*byte)(ps.aligned), a.cfg.PageSize)
	if int64(length) > a.cfg.PageSize {
		length = uint32(a.cfg.PageSize)
	}

	seg, segOffset := a.byteOffsetSegment(fileOffset)

	a.logDevice.ReadAsyncSegment(ctx, dest[:length], seg, segOffset, length, func(errorCode int, bytesTransferred uint32, _ any) {
		if errorCode != 0 {
			metrics.DeviceErrors.Inc()
			cb(nil, errors.NewDeviceError(nil, seg).WithDeviceErrorCode(errorCode))
			return
		}

		metrics.PagesRead.Inc()

		if !a.handler.KeyHasObjects() && !a.handler.ValueHasObjects() {
			cb(nil, nil)
			return
		}

		a.reinflatePage(ctx, dest, 0, int(bytesTransferred), cb)
	}, nil)
}

// reinflatePage is ReadAsync's object-walk phase: it mirrors
// reinflateObjects, but patches the page slice in place (the slot's own
// memory) instead of a buffer borrowed for a single record.
func (a *Allocator) reinflatePage(ctx context.Context, page []byte, ptr, end int, cb ReadCallback) {
	if ptr >= end {
		cb(nil, nil)
		return
	}

	nextPtr, objStart, objSize, err := a.handler.GetObjectInfo(page, ptr, end, a.cfg.objectBlockSize())
	if err != nil {
		cb(nil, err)
		return
	}

	if objSize == 0 {
		a.reinflatePage(ctx, page, nextPtr, end, cb)
		return
	}

	if objSize > OversizedObjectLimit {
		cb(nil, errors.NewOversizedObjectError(objSize))
		return
	}

	objBuf, err := a.pool.Get(int(sectorAlign(objSize, int64(a.cfg.SectorSize))))
	if err != nil {
		cb(nil, err)
		return
	}

	seg := uint64(objStart) / uint64(a.objectSegmentSize())
	segOffset := objStart % a.objectSegmentSize()

	a.objectLogDevice.ReadAsyncSegment(ctx, objBuf.Aligned, seg, segOffset, uint32(objSize), func(errorCode int, bytesTransferred uint32, _ any) {
		defer a.pool.Return(objBuf)
		if errorCode != 0 {
			metrics.DeviceErrors.Inc()
			cb(nil, errors.NewDeviceError(nil, seg).WithDeviceErrorCode(errorCode))
			return
		}

		r := bytes.NewReader(objBuf.Aligned[:bytesTransferred])
		if err := a.handler.Deserialize(page, ptr, nextPtr, r); err != nil {
			cb(nil, err)
			return
		}

		a.reinflatePage(ctx, page, nextPtr, end, cb)
	}, nil)
}

// byteOffsetSegment translates a raw device byte offset (as opposed to a
// logical address) into the (segment, segment-relative offset) pair the
// log device addresses — used by ReadAsync, whose fileOffset is already a
// dense device offset rather than something needing pageNumber/offsetInPage
// decomposition.
func (a *Allocator) byteOffsetSegment(fileOffset int64) (seg uint64, segOffset int64) {
	seg = uint64(fileOffset / a.segmentByteSize())
	segOffset = fileOffset % a.segmentByteSize()
	return
}

// readFromMemory serves a read directly out of the resident ring-buffer
// page when addr hasn't been evicted yet (addr >= HeadAddress) — the common
// case for a page-resident log, since most reads target data that never
// left memory. The resident page always holds live inline bytes regardless
// of promotion tag (promotion only patches the scratch copy a flush writes
// to the object log), so this path never needs to consult the page handler
// or the object log: it just copies the bytes as they sit in the page. ok
// is false whenever the address isn't (or is no longer) resident, telling
// the caller to fall back to the device path.
func (a *Allocator) readFromMemory(addr LogicalAddress, estimatedSize uint32) (buf *bufferpool.Buffer, ok bool, err error) {
	if addr < a.HeadAddress() {
		return nil, false, nil
	}

	slot := a.pageIndex(addr)
	ps := &a.pages[slot]
	if !ps.ready.Load() || ps.pageNumber.Load() != a.pageNumber(addr) {
		return nil, false, nil
	}

	offset := int(a.offsetInPage(addr))
	size := int(estimatedSize)
	page := unsafe.Slice((*byte)(ps.aligned), a.cfg.PageSize)
	if offset+size > len(page) {
		return nil, false, nil
	}

	buf, err = a.pool.Get(size)
	if err != nil {
		return nil, false, err
	}
	copy(buf.Aligned, page[offset:offset+size])
	buf.ValidOffset = 0
	buf.AvailableBytes = size
	return buf, true, nil
}

// reinflateObjects walks the record occupying buf[start:end), following
// every AddressInfo back-reference the page handler reports via
// GetObjectInfo with a chained object-log read and Deserialize call, until
// the handler reports no further references (nextPtr reaches end). Each
// fragment is capped at OversizedObjectLimit.
func (a *Allocator) reinflateObjects(ctx context.Context, buf *bufferpool.Buffer, ptr, end int, cb ReadCallback) {
	if ptr >= end {
		cb(buf, nil)
		return
	}

	nextPtr, objStart, objSize, err := a.handler.GetObjectInfo(buf.Aligned, ptr, end, a.cfg.objectBlockSize())
	if err != nil {
		a.pool.Return(buf)
		cb(nil, err)
		return
	}

	if objSize == 0 {
		a.reinflateObjects(ctx, buf, nextPtr, end, cb)
		return
	}

	if objSize > OversizedObjectLimit {
		a.pool.Return(buf)
		cb(nil, errors.NewOversizedObjectError(objSize))
		return
	}

	objBuf, err := a.pool.Get(int(sectorAlign(objSize, int64(a.cfg.SectorSize))))
	if err != nil {
		a.pool.Return(buf)
		cb(nil, err)
		return
	}

	seg := uint64(objStart) / uint64(a.objectSegmentSize())
	segOffset := objStart % a.objectSegmentSize()

	a.objectLogDevice.ReadAsyncSegment(ctx, objBuf.Aligned, seg, segOffset, uint32(objSize), func(errorCode int, bytesTransferred uint32, _ any) {
		defer a.pool.Return(objBuf)
		if errorCode != 0 {
			metrics.DeviceErrors.Inc()
			a.pool.Return(buf)
			cb(nil, errors.NewDeviceError(nil, seg).WithDeviceErrorCode(errorCode))
			return
		}

		r := bytes.NewReader(objBuf.Aligned[:bytesTransferred])
		if err := a.handler.Deserialize(buf.Aligned, ptr, nextPtr, r); err != nil {
			a.pool.Return(buf)
			cb(nil, err)
			return
		}

		a.reinflateObjects(ctx, buf, nextPtr, end, cb)
	}, nil)
}

// addressSegment translates a logical address into the (segment,
// segment-relative offset) pair the log device addresses.
func (a *Allocator) addressSegment(addr LogicalAddress) (seg uint64, segOffset int64) {
	p := a.pageNumber(addr)
	bytesOffset := int64(p)*alignedPageBytes(a.cfg) + int64(a.offsetInPage(addr))
	seg = uint64(bytesOffset / a.segmentByteSize())
	segOffset = bytesOffset % a.segmentByteSize()
	return
}

func (a *Allocator) objectSegmentSize() int64 {
	if a.objectLogDevice != nil {
		return a.objectLogDevice.SegmentSize()
	}
	return a.cfg.SegmentSize
}
