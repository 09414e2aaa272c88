package index

import (
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/internal/hlog"
	"go.uber.org/zap"
)

// RecordPointer contains the absolute minimum metadata required to locate and
// retrieve a data entry from the page-resident log. This structure represents
// the primary memory consumer in the entire system, making every field
// choice critical for overall scalability.
//
// Earlier revisions of this structure split a record's location into a
// (SegmentID, Offset) pair naming a position within a named segment file.
// Retargeting onto the hlog allocator collapses that pair into a single
// hlog.LogicalAddress: the allocator's own address-translation table
// already maps a logical address to its physical page and segment, so the
// index no longer needs to track segment identity itself.
type RecordPointer struct {
	// Timestamp stores the Unix nanosecond timestamp when this entry was
	// written.
	Timestamp int64

	// Address is the logical address hlog.Allocator assigned this record's
	// header when it was written. PhysicalAddress/ReadRecordToMemory take
	// this value directly; the index never computes a segment or
	// intra-segment offset itself.
	Address hlog.LogicalAddress

	// EntrySize contains the total number of bytes occupied by this entry
	// in the log, encompassing the RecordInfo header, key, and value
	// portions combined. Lets a read fetch the entire entry in one I/O call.
	EntrySize uint32

	// ValueSize contains the byte length of just the value portion of the
	// entry, excluding the header and key components.
	ValueSize uint32

	// Key stores the actual key string associated with this record. This
	// creates apparent redundancy since the key also serves as the map key
	// in the index, but it lets lookups verify a map hit actually found the
	// intended key (not a collision) and lets iteration enumerate keys
	// without touching the log.
	Key string
}

// Index represents the in-memory hash table that maps keys to their disk locations.
// This structure embodies the central component of the Bitcask architecture,
// maintaining the balance between memory efficiency and access performance.
//
// The Index keeps all keys in memory for immediate lookup while storing only
// essential metadata about each entry. This design allows the system to handle
// datasets much larger than available RAM while maintaining predictable performance
// characteristics that don't degrade as data volume increases.
type Index struct {
	dataDir       string                    // Contains the filesystem path where segment files are stored.
	log           *zap.SugaredLogger        // Provides structured logging capabilities.
	recordPointer map[string]*RecordPointer // Maintains the core mapping from keys to their disk locations.
	mu            sync.RWMutex              // Protects concurrent access to the recordPointer map.
	closed        atomic.Bool               // Indicates whether the index has been closed.
}

// Config encapsulates the configuration parameters required to initialize an Index.
type Config struct {
	DataDir string             // Specifies the filesystem directory containing segment files.
	Logger  *zap.SugaredLogger // Provides structured logging capabilities for Index operations.
}
