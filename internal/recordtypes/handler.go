// Package recordtypes is the concrete record layout ignite's engine hands
// to the page allocator: a RecordInfo header, an inline key, and a value
// that is either stored inline forever (small values) or kept inline while
// resident and promoted to the object log at flush time (values at or above
// ValueInlineThreshold). It is the sole implementation of hlog.PageHandler
// in this module — the allocator itself never knows what a "key" or "value"
// is.
package recordtypes

import (
	"encoding/binary"
	"errors"

	"github.com/iamNilotpal/ignite/internal/hlog"
)

// ValueInlineThreshold is the smallest value size that is promoted: values
// at or above it are serialized to the object log at flush time and
// referenced by an AddressInfo back-reference instead, while smaller values
// stay in the page.
const ValueInlineThreshold = 1024

// headerFixedSize is RecordInfo(8) + keyLen(4) + valueLen(4) + valueTag(1).
const headerFixedSize = hlog.RecordInfoSize + 4 + 4 + 1

const (
	valueTagInline byte = 0
	valueTagObject byte = 1
)

var errTruncatedRecord = errors.New("recordtypes: truncated record header")

// Handler implements hlog.PageHandler for ignite's key/value record layout.
// Keys are always inline. Values below ValueInlineThreshold stay inline on
// disk too; larger values reserve their full size on the resident page
// (so writers can copy value bytes in directly) but get replaced by an
// 8-byte AddressInfo occupying the front of that same reserved region once
// the flush engine promotes them to the object log.
type Handler struct{}

// New returns the ignite key/value PageHandler.
func New() *Handler { return &Handler{} }

// KeyHasObjects reports that keys never carry out-of-line objects.
func (h *Handler) KeyHasObjects() bool { return false }

// ValueHasObjects reports that a value may be promoted to the object log.
func (h *Handler) ValueHasObjects() bool { return true }

// recordView decodes one record's fixed-width fields starting at off. The
// reserved region for the value is always valueLen bytes, whether it
// currently holds the live inline bytes (resident, not yet flushed) or an
// 8-byte AddressInfo at its front (on disk, post-flush).
type recordView struct {
	info       hlog.RecordInfo
	keyOff     int
	keyLen     int
	valueTag   byte
	valueOff   int
	valueLen   int
	recordSize int
}

func decodeRecord(page []byte, off int) (recordView, bool) {
	if off+headerFixedSize > len(page) {
		return recordView{}, false
	}

	info := hlog.GetRecordInfo(page[off:])
	keyLen := int(binary.LittleEndian.Uint32(page[off+hlog.RecordInfoSize:]))
	valueLen := int(binary.LittleEndian.Uint32(page[off+hlog.RecordInfoSize+4:]))
	valueTag := page[off+hlog.RecordInfoSize+8]

	keyOff := off + headerFixedSize
	valueOff := keyOff + keyLen
	size := headerFixedSize + keyLen + valueLen

	if off+size > len(page) {
		return recordView{}, false
	}

	return recordView{
		info:       info,
		keyOff:     keyOff,
		keyLen:     keyLen,
		valueTag:   valueTag,
		valueOff:   valueOff,
		valueLen:   valueLen,
		recordSize: size,
	}, true
}

// ClearPage is a no-op beyond what the allocator already does (zero the
// buffer): promoted values hold no in-process handles that need releasing
// beyond the on-disk back-reference the object log itself owns.
func (h *Handler) ClearPage(page []byte, skipPrefix int) {}

// Serialize walks records in [start, end), and for every record whose value
// was promoted, copies the live inline value bytes into w and records where
// the resulting AddressInfo must be patched. It stops once the accumulated
// batch would exceed blockSize, returning the page offset it got to so the
// caller can resume with the next batch.
func (h *Handler) Serialize(page []byte, start, end int, blockSize int64, w hlog.Writer) ([]int, int64, int, error) {
	var patchOffsets []int
	var written int64
	pos := start

	for pos < end {
		rec, ok := decodeRecord(page, pos)
		if !ok {
			break
		}

		if rec.valueTag == valueTagObject && rec.valueLen > 0 {
			if written > 0 && written+int64(rec.valueLen) > blockSize {
				break
			}
			n, err := w.Write(page[rec.valueOff : rec.valueOff+rec.valueLen])
			if err != nil {
				return nil, 0, pos, err
			}
			written += int64(n)
			patchOffsets = append(patchOffsets, rec.valueOff)
		}

		pos += rec.recordSize
	}

	return patchOffsets, written, pos, nil
}

// Deserialize reinflates the object-log bytes read from r back into the
// page region [start, end), overwriting the live value span with the
// fetched bytes (used when a record is read back with its value still
// resident as an AddressInfo, e.g. a page brought back in from disk).
func (h *Handler) Deserialize(page []byte, start, end int, r hlog.Reader) error {
	rec, ok := decodeRecord(page, start)
	if !ok {
		return errTruncatedRecord
	}
	if rec.valueTag != valueTagObject {
		return nil
	}

	buf := make([]byte, rec.valueLen)
	if _, err := r.Read(buf); err != nil {
		return err
	}
	copy(page[rec.valueOff:rec.valueOff+rec.valueLen], buf)
	return nil
}

// GetObjectInfo inspects the record at ptr and, if its value was promoted,
// decodes the AddressInfo back-reference stored at the front of the value's
// reserved region.
func (h *Handler) GetObjectInfo(page []byte, ptr, end int, blockSize int64) (int, int64, int64, error) {
	rec, ok := decodeRecord(page, ptr)
	if !ok {
		return end, 0, 0, errTruncatedRecord
	}

	next := ptr + rec.recordSize
	if rec.valueTag != valueTagObject {
		return next, 0, 0, nil
	}

	addr := hlog.GetAddressInfo(page[rec.valueOff : rec.valueOff+hlog.AddressInfoSize])
	return next, int64(addr.Offset()), int64(addr.Size()), nil
}

// EncodeRecord writes a complete record (header, key, value) starting at
// off within page, returning the number of bytes written. promote decides
// whether the value is tagged for flush-time object-log promotion; callers
// typically set it for values at or above ValueInlineThreshold.
func EncodeRecord(page []byte, off int, key string, value []byte, tombstone bool, version uint64, promote bool) int {
	info := hlog.NewRecordInfo(tombstone, true, version)
	hlog.PutRecordInfo(page[off:], info)

	binary.LittleEndian.PutUint32(page[off+hlog.RecordInfoSize:], uint32(len(key)))
	binary.LittleEndian.PutUint32(page[off+hlog.RecordInfoSize+4:], uint32(len(value)))

	tag := valueTagInline
	if promote {
		tag = valueTagObject
	}
	page[off+hlog.RecordInfoSize+8] = tag

	keyOff := off + headerFixedSize
	copy(page[keyOff:keyOff+len(key)], key)

	valueOff := keyOff + len(key)
	copy(page[valueOff:valueOff+len(value)], value)

	return headerFixedSize + len(key) + len(value)
}

// RecordSize returns the total on-page footprint of a record with the given
// key/value sizes, for callers computing how many bytes to Allocate.
func RecordSize(keyLen, valueLen int) uint32 {
	return uint32(headerFixedSize + keyLen + valueLen)
}

// ExtractValue decodes the record at off and returns its value bytes. The
// returned slice aliases page — callers that need the bytes to outlive the
// buffer page belongs to must copy them out before returning it to its pool.
// By the time a caller reaches this, any promoted value has already been
// reinflated in place by Deserialize, so the tag is never inspected here.
func ExtractValue(page []byte, off int) ([]byte, error) {
	rec, ok := decodeRecord(page, off)
	if !ok {
		return nil, errTruncatedRecord
	}
	return page[rec.valueOff : rec.valueOff+rec.valueLen], nil
}
