package options

import "time"

const (
	// Specifies the default base directory where IgniteDB will store its data files.
	// If no other directory is specified during initialization, this path will be used.
	DefaultDataDir = "/var/lib/ignitedb"

	// Defines the default time duration between automatic compaction operations.
	// By default, compaction will run every 5 hours.
	DefaultCompactInterval = time.Hour * 5

	// Represents the minimum allowed size for a segment file in bytes (512MB).
	MinSegmentSize uint64 = 512 * 1024 * 1024

	// Represents the maximum allowed size for a segment file in bytes (4GB).
	MaxSegmentSize uint64 = 4 * 1024 * 1024 * 1024

	// Specifies the default target size for a new segment file in bytes (1GB).
	DefaultSegmentSize uint64 = 1 * 1024 * 1024 * 1024

	// Specifies the default subdirectory within the main data directory
	// where segment files will be stored.
	DefaultSegmentDirectory = "/segments"

	// Defines the default prefix for segment file names.
	// For example, a segment file might be named "segment_00001_1678881234567890.seg".
	DefaultSegmentPrefix = "segment"

	// Defines the default ring-buffer page size for the log allocator (4MB).
	DefaultHlogPageSize int64 = 4 * 1024 * 1024

	// Defines the default number of pages held resident at once (16, i.e.
	// a 64MB working set at the default page size).
	DefaultHlogBufferSize = 16

	// Defines the default device sector size aligned I/O must respect.
	DefaultHlogSectorSize = 512

	// Defines the default number of object-log segment-offset table entries.
	DefaultHlogSegmentBufferSize = 128

	// Defines the default object-log batch size the flush engine accumulates
	// before issuing one write (100MB).
	DefaultHlogObjectBlockSize int64 = 100 * 1024 * 1024
)

// Holds the default configuration settings for an IgniteDB instance.
var defaultOptions = Options{
	DataDir:         DefaultDataDir,
	CompactInterval: DefaultCompactInterval,
	SegmentOptions: &segmentOptions{
		Size:      DefaultSegmentSize,
		Prefix:    DefaultSegmentPrefix,
		Directory: DefaultSegmentDirectory,
	},
	HlogOptions: &HlogOptions{
		PageSize:          DefaultHlogPageSize,
		BufferSize:        DefaultHlogBufferSize,
		SectorSize:        DefaultHlogSectorSize,
		SegmentBufferSize: DefaultHlogSegmentBufferSize,
		ObjectLogEnabled:  true,
		ObjectBlockSize:   DefaultHlogObjectBlockSize,
	},
}

func NewDefaultOptions() Options {
	return defaultOptions
}
