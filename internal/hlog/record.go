package hlog

import "encoding/binary"

// RecordInfoSize is the fixed size in bytes of the header at the front of
// every record: [RecordInfo header | Key | Value].
const RecordInfoSize = 8

// RecordInfo is the fixed-size header at the front of every record. It
// packs tombstone, validity, and a version counter into a single 64-bit
// word — the same footprint-conscious instinct index.RecordPointer applies
// to its own fields.
type RecordInfo uint64

const (
	recordInfoTombstoneBit = uint64(1) << 63
	recordInfoInvalidBit   = uint64(1) << 62
	recordInfoVersionMask  = (uint64(1) << 62) - 1
)

// NewRecordInfo builds a RecordInfo with the given tombstone/validity state
// and version.
func NewRecordInfo(tombstone, valid bool, version uint64) RecordInfo {
	var w uint64
	if tombstone {
		w |= recordInfoTombstoneBit
	}
	if !valid {
		w |= recordInfoInvalidBit
	}
	w |= version & recordInfoVersionMask
	return RecordInfo(w)
}

// Tombstone reports whether this record marks a deletion.
func (r RecordInfo) Tombstone() bool { return uint64(r)&recordInfoTombstoneBit != 0 }

// Valid reports whether this record is live (not a reserved/invalidated slot).
func (r RecordInfo) Valid() bool { return uint64(r)&recordInfoInvalidBit == 0 }

// Version returns the record's version counter.
func (r RecordInfo) Version() uint64 { return uint64(r) & recordInfoVersionMask }

// PutRecordInfo encodes info at the front of dst.
func PutRecordInfo(dst []byte, info RecordInfo) {
	binary.LittleEndian.PutUint64(dst, uint64(info))
}

// GetRecordInfo decodes the RecordInfo at the front of src.
func GetRecordInfo(src []byte) RecordInfo {
	return RecordInfo(binary.LittleEndian.Uint64(src))
}

// AddressInfoSize is the fixed on-disk size of an AddressInfo back-reference:
// an 8-byte on-disk reference to an object-log location.
const AddressInfoSize = 8

// AddressInfo is the in-record back-reference to an object-log payload: a
// segment-relative offset packed with a size. When a key or value declares
// "has objects", the bytes it occupies in the record are interpreted as an
// AddressInfo on disk, or as a live object handle in memory while the
// record is resident.
type AddressInfo uint64

const (
	addressInfoSizeBits  = 32
	addressInfoSizeMask  = (uint64(1) << addressInfoSizeBits) - 1
	addressInfoSizeShift = 32
)

// NewAddressInfo packs a segment-relative offset and a byte size into an
// AddressInfo. offset must fit in 32 bits, matching the per-segment address
// space object-log offsets live in.
func NewAddressInfo(offset uint32, size uint32) AddressInfo {
	return AddressInfo(uint64(size)<<addressInfoSizeShift | uint64(offset))
}

// Offset returns the segment-relative byte offset of the referenced object.
func (a AddressInfo) Offset() uint32 { return uint32(uint64(a) & addressInfoSizeMask) }

// Size returns the byte size of the referenced object.
func (a AddressInfo) Size() uint32 { return uint32(uint64(a) >> addressInfoSizeShift) }

// PutAddressInfo encodes addr at the front of dst, which must be at least
// AddressInfoSize bytes.
func PutAddressInfo(dst []byte, addr AddressInfo) {
	binary.LittleEndian.PutUint64(dst, uint64(addr))
}

// GetAddressInfo decodes the AddressInfo at the front of src.
func GetAddressInfo(src []byte) AddressInfo {
	return AddressInfo(binary.LittleEndian.Uint64(src))
}

// ObjectAddress identifies where, within a page, every AddressInfo slot
// that still needs patching lives once the flush engine has reserved
// object-log space for a batch.
type ObjectAddress struct {
	// Offset is the byte offset within the page (or scratch copy) of the
	// AddressInfo slot to patch.
	Offset int
}

// PageHandler is the external collaborator the flush and read engines
// consult to learn whether a record's key or value side carries an
// out-of-line object payload, and if so, how to serialize/deserialize/clear
// it. Implementations own the record layout; hlog never
// interprets key/value bytes beyond this narrow interface.
type PageHandler interface {
	// KeyHasObjects reports whether the key side of records in this log
	// stores out-of-line objects via AddressInfo.
	KeyHasObjects() bool

	// ValueHasObjects reports whether the value side does.
	ValueHasObjects() bool

	// ClearPage is called before a page slot is reused, over the byte
	// range [start, end) of the page, so any live in-memory object
	// handles held in AddressInfo slots are released before the
	// underlying buffer is zeroed. skipPrefix is the number of bytes at
	// the front of page zero reserved and never handed out
	// (FirstValidAddress), which ClearPage must not touch.
	ClearPage(page []byte, skipPrefix int)

	// Serialize walks records in page starting at offset start, up to
	// end, emitting their object payloads to w until either end is
	// reached or the accumulated serialized size would exceed
	// blockSize. It returns the AddressInfo slot locations (byte offsets
	// within page) that must be patched with the object-log reservation,
	// and how far into the page it got (resumeOffset), so the caller can
	// start the next batch where this one left off.
	Serialize(page []byte, start, end int, blockSize int64, w Writer) (patchOffsets []int, bytesWritten int64, resumeOffset int, err error)

	// Deserialize reinflates object payloads from r into the in-memory
	// records occupying page[start:end), patching their AddressInfo
	// slots with live handles.
	Deserialize(page []byte, start, end int, r Reader) error

	// GetObjectInfo inspects the record at offset ptr within page (up to
	// end) and reports the object-log start offset and byte size
	// (objStart, objSize) the read engine must fetch next. It returns
	// the page offset immediately following the object reference it
	// just inspected, so the caller can loop until ptr reaches end.
	GetObjectInfo(page []byte, ptr, end int, blockSize int64) (nextPtr int, objStart int64, objSize int64, err error)
}

// Writer is the narrow streaming-write interface Serialize emits bytes
// through; satisfied by *bytes.Buffer and similar.
type Writer interface {
	Write(p []byte) (int, error)
}

// Reader is the narrow streaming-read interface Deserialize consumes bytes
// through; satisfied by *bytes.Reader and similar.
type Reader interface {
	Read(p []byte) (int, error)
}
