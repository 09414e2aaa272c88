// Package options provides data structures and functions for configuring
// the Ignite database. It defines various parameters that control Ignite's
// storage behavior, performance, and maintenance operations, such as
// directory paths, segment characteristics, and compaction intervals.
package options

import (
	"strings"
	"time"
)

// Defines configurable parameters for each segment.
// It provides fine-grained control over segment behavior, performance, and resource utilization.
type segmentOptions struct {
	// Defines the maximum size a segment can grow to before rotation.
	// When a segment reaches this size, a new segment will be created.
	// Larger segments mean fewer files but slower compaction and recovery.
	//
	//  - Default: 1GB
	//  - Maximum: 4GB
	//  - Minimum: 512MB
	Size uint64 `json:"maxSegmentSize"`

	// Specifies where segment files are stored.
	//
	// Default: "/var/lib/ignitedb/segments"
	Directory string `json:"directory"`

	// Defines the filename prefix for segment files.
	// Final filename will be: `prefix_segmentId_timestamp.seg`
	//
	// Default: "segment"
	//
	// Example: If Prefix is "mydata", a segment file might be "mydata_000001_20240525232100.seg".
	Prefix string `json:"prefix"`
}

// Defines configurable parameters for the page-resident log allocator.
// It provides fine-grained control over the ring buffer geometry and
// object-log behavior hlog.Config exposes.
type HlogOptions struct {
	// PageSize is the size in bytes of one ring-buffer page. Must be a
	// power of two.
	//
	// Default: 4MB
	PageSize int64 `json:"pageSize"`

	// BufferSize is the number of pages held resident in memory at once.
	// Must be a power of two.
	//
	// Default: 16
	BufferSize int `json:"bufferSize"`

	// SectorSize is the device sector size every aligned I/O region must
	// be a multiple of.
	//
	// Default: 512
	SectorSize int `json:"sectorSize"`

	// SegmentBufferSize is the number of segment-offset table entries
	// tracked for the object log.
	//
	// Default: 128
	SegmentBufferSize int `json:"segmentBufferSize"`

	// ObjectLogEnabled indicates whether values may be promoted to a
	// separate object-log device at flush time.
	//
	// Default: true
	ObjectLogEnabled bool `json:"objectLogEnabled"`

	// ObjectBlockSize caps how many serialized object bytes the flush
	// engine accumulates before emitting one object-log write.
	//
	// Default: 100MB
	ObjectBlockSize int64 `json:"objectBlockSize"`
}

// Defines the configuration parameters for Ignite DB.
// It provides control over storage, performance and maintenance aspects.
type Options struct {
	// Specifies the base path where files will be stored.
	//
	// Default: "/var/lib/ignitedb"
	DataDir string `json:"dataDir"`

	// Defines how often the compaction process runs to advance
	// BeginAddress and delete log segments that fall below it; segments
	// are not merged or rewritten.
	//
	// Default: 5h
	CompactInterval time.Duration `json:"compactInterval"`

	// Configures segment management including size limits and naming convention.
	SegmentOptions *segmentOptions `json:"segmentOptions"`

	// Configures the page-resident log allocator's ring buffer geometry
	// and object-log behavior.
	HlogOptions *HlogOptions `json:"hlogOptions"`
}

// OptionFunc is a function type that modifies the Ignite system's configuration.
type OptionFunc func(*Options)

// Applies a predefined set of default configuration values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		segOpts := *opts.SegmentOptions
		hlogOpts := *opts.HlogOptions
		o.DataDir = opts.DataDir
		o.SegmentOptions = &segOpts
		o.CompactInterval = opts.CompactInterval
		o.HlogOptions = &hlogOpts
	}
}

// Sets the primary data directory for Ignite.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// Sets the interval at which Ignite performs compaction operations.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > DefaultCompactInterval {
			o.CompactInterval = interval
		}
	}
}

// Sets the directory specifically for storing segment files.
func WithSegmentDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.SegmentOptions.Directory = directory
		}
	}
}

// Sets the file name prefix for segment files.
func WithSegmentPrefix(prefix string) OptionFunc {
	return func(o *Options) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			o.SegmentOptions.Prefix = prefix
		}
	}
}

// Sets the maximum size of individual segment files.
func WithSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size > MinSegmentSize && size < MaxSegmentSize {
			o.SegmentOptions.Size = size
		}
	}
}

// Sets the ring-buffer page size for the log allocator. Must be a power of
// two; invalid values are ignored.
func WithHlogPageSize(size int64) OptionFunc {
	return func(o *Options) {
		if size > 0 && size&(size-1) == 0 {
			o.HlogOptions.PageSize = size
		}
	}
}

// Sets how many pages the log allocator keeps resident at once. Must be a
// power of two; invalid values are ignored.
func WithHlogBufferSize(pages int) OptionFunc {
	return func(o *Options) {
		if pages > 0 && pages&(pages-1) == 0 {
			o.HlogOptions.BufferSize = pages
		}
	}
}

// Enables or disables promoting large values to a separate object-log
// device.
func WithHlogObjectLog(enabled bool) OptionFunc {
	return func(o *Options) {
		o.HlogOptions.ObjectLogEnabled = enabled
	}
}

// Sets the largest serialized object-log batch the flush engine accumulates
// before issuing one write.
func WithHlogObjectBlockSize(size int64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.HlogOptions.ObjectBlockSize = size
		}
	}
}
