// Package engine provides the core database engine implementation for the Ignite storage system.
//
// The engine serves as the central coordinator and entry point for all database operations.
// It orchestrates the interaction between the subsystems a page-resident log store needs:
//   - Index: an in-memory hash table mapping keys to logical log addresses
//   - Hlog: the page-resident log allocator — address translation, the in-memory
//     page ring, and the flush/read engines that move pages to and from disk
//   - Compaction: a background watcher that trims the log behind HeadAddress
//
// The engine implements a thread-safe interface with proper lifecycle management,
// ensuring resources are properly initialized and cleaned up. It uses atomic operations
// for state management to provide consistent behavior across concurrent operations.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
	"github.com/iamNilotpal/ignite/internal/compaction"
	"github.com/iamNilotpal/ignite/internal/device"
	"github.com/iamNilotpal/ignite/internal/epoch"
	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/recordtypes"
	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = errors.New("operation failed: cannot access closed engine")
)

const (
	logDeviceWorkers    = 4
	objectDeviceWorkers = 4
	logDevicePrefix     = "log"
	objectDevicePrefix  = "objlog"
)

// Engine represents the main database engine that coordinates all subsystems.
// It acts as the primary interface for database operations and manages the lifecycle
// of all internal components. The engine is designed to be thread-safe and supports
// concurrent operations while maintaining data consistency.
type Engine struct {
	options *options.Options   // options contains all configuration parameters for the engine and its subsystems.
	log     *zap.SugaredLogger // log provides structured logging capabilities throughout the engine.
	closed  atomic.Bool        // closed is an atomic boolean that tracks the engine's lifecycle state.

	index      *index.Index           // index manages the in-memory data structures for fast data access.
	allocator  *hlog.Allocator        // allocator owns the page-resident log and its devices.
	compaction *compaction.Compaction // compaction trims the log behind HeadAddress in the background.

	logDevice    *device.SegmentFileDevice // logDevice is the primary append-only log's backing device.
	objectDevice *device.SegmentFileDevice // objectDevice backs promoted values, nil when the object log is disabled.

	protection *epoch.Protection // protection gates page eviction against still-active readers/writers.
	epochIdx   int                // epochIdx is this engine's own registered epoch-protection slot.
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New creates and initializes a new Engine instance with the provided configuration.
// This constructor follows the dependency injection pattern, making the engine
// testable and allowing for different configurations in different environments.
//
// Returns:
//   - *Engine: A fully initialized engine ready for use
//   - error: Any error encountered during initialization, typically from device setup
func New(ctx context.Context, config *Config) (*Engine, error) {
	opts := config.Options
	hopts := opts.HlogOptions

	// Initialize the index subsystem first since it has no external dependencies.
	idx, err := index.New(ctx, &index.Config{DataDir: opts.DataDir, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	segDir := filepath.Join(opts.DataDir, opts.SegmentOptions.Directory)

	logDevice, err := device.New(
		segDir, logDevicePrefix, int64(opts.SegmentOptions.Size), hopts.SectorSize, logDeviceWorkers, config.Logger,
	)
	if err != nil {
		return nil, err
	}

	var objectDevice *device.SegmentFileDevice
	if hopts.ObjectLogEnabled {
		objDir := filepath.Join(opts.DataDir, opts.SegmentOptions.Directory, "objects")
		objectDevice, err = device.New(
			objDir, objectDevicePrefix, int64(opts.SegmentOptions.Size), hopts.SectorSize, objectDeviceWorkers, config.Logger,
		)
		if err != nil {
			_ = logDevice.Close()
			return nil, err
		}
	}

	protection := epoch.New()
	epochIdx := protection.Register()

	pool := bufferpool.NewMmapPool(hopts.SectorSize)
	handler := recordtypes.New()

	var objDeviceIface device.Device
	if objectDevice != nil {
		objDeviceIface = objectDevice
	}

	allocator, err := hlog.New(hlog.Params{
		Config: hlog.Config{
			OffsetBits:        offsetBitsFor(hopts.PageSize),
			PageSize:          hopts.PageSize,
			BufferSize:        hopts.BufferSize,
			SectorSize:        hopts.SectorSize,
			SegmentSize:       int64(opts.SegmentOptions.Size),
			SegmentBufferSize: hopts.SegmentBufferSize,
			ObjectLogEnabled:  hopts.ObjectLogEnabled,
			ObjectBlockSize:   hopts.ObjectBlockSize,
		},
		Pool:            pool,
		Handler:         handler,
		LogDevice:       logDevice,
		ObjectLogDevice: objDeviceIface,
		Epoch:           protection,
		Logger:          config.Logger,
	})
	if err != nil {
		_ = logDevice.Close()
		if objectDevice != nil {
			_ = objectDevice.Close()
		}
		return nil, err
	}

	comp := compaction.New(compaction.Config{
		Allocator: allocator,
		Logger:    config.Logger,
		Interval:  opts.CompactInterval,
		Retention: hlog.LogicalAddress(hopts.BufferSize) * hlog.LogicalAddress(hopts.PageSize) / 2,
	})
	go comp.Run(ctx)

	return &Engine{
		options:      opts,
		log:          config.Logger,
		index:        idx,
		allocator:    allocator,
		compaction:   comp,
		logDevice:    logDevice,
		objectDevice: objectDevice,
		protection:   protection,
		epochIdx:     epochIdx,
	}, nil
}

// offsetBitsFor returns log2(pageSize), the number of low bits of a logical
// address a page of this size occupies.
func offsetBitsFor(pageSize int64) uint {
	bits := uint(0)
	for v := pageSize; v > 1; v >>= 1 {
		bits++
	}
	return bits
}

// Close shuts down the engine and releases all associated resources: it stops
// the compaction workers, closes the allocator's devices and closes the index.
// Resident pages are not flushed first, so records written since their page
// was last flushed are not persisted.
func (e *Engine) Close() error {
	// Use atomic compare-and-swap to transition from open (false) to closed (true).
	// This operation is atomic and thread-safe, ensuring only one goroutine
	// can successfully close the engine. The operation returns true if the
	// swap was successful (engine was open) or false if it failed (already closed).
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	if err := e.compaction.Close(); err != nil {
		e.log.Warnw("compaction worker shutdown reported an error", "error", err)
	}

	if err := e.allocator.Close(); err != nil {
		return err
	}

	return e.index.Close()
}
