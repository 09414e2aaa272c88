// Package index provides the in-memory hash table implementation for the ignite key-value store.
// This package embodies the core Bitcask architectural principle: maintain all keys in memory
// with minimal metadata while storing actual values on disk for optimal memory utilization.
//
// The design philosophy centers on memory efficiency as the primary constraint. Every byte
// stored in the RecordPointer structure directly impacts the system's ability to handle
// large datasets. The approach here prioritizes compact data structures over convenience
// features, recognizing that memory constraints often determine system scalability limits.
//
// The index enables O(1) key lookups through an in-memory hash table while keeping
// storage overhead minimal. This allows the system to handle datasets significantly
// larger than available RAM while maintaining excellent read performance characteristics.
package index

import (
	"context"
	stdErrors "errors"

	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

var (
	ErrIndexClosed = stdErrors.New("operation failed: cannot access closed index")
)

// New creates and initializes a new Index instance configured according to the
// provided parameters. The returned Index is immediately ready for concurrent
// use and includes optimizations like pre-allocated map capacity.
func New(ctx context.Context, config *Config) (*Index, error) {
	if config == nil || config.DataDir == "" || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "Index configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Index{
		log:           config.Logger,
		dataDir:       config.DataDir,
		recordPointer: make(map[string]*RecordPointer, 2046),
	}, nil
}

// Close gracefully shuts down the Index, cleaning up resources and ensuring
// that the index cannot be used after closure.
func (idx *Index) Close() error {
	// Use atomic compare-and-swap to safely check and update the closed state.
	if !idx.closed.CompareAndSwap(false, true) {
		return ErrIndexClosed
	}

	idx.log.Infow("Closing index system")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Clear the record pointer map to release all memory associated with
	// the index entries.
	clear(idx.recordPointer)
	idx.recordPointer = nil

	idx.log.Infow("Index system closed successfully")
	return nil
}

// Put records (or overwrites) the location of key, storing the logical
// address hlog.Allocator assigned to the record's header.
func (idx *Index) Put(key string, addr hlog.LogicalAddress, entrySize, valueSize uint32, timestamp int64) error {
	if idx.closed.Load() {
		return ErrIndexClosed
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.recordPointer[key] = &RecordPointer{
		Key:       key,
		Address:   addr,
		EntrySize: entrySize,
		ValueSize: valueSize,
		Timestamp: timestamp,
	}
	return nil
}

// Get returns the RecordPointer for key, or an IndexKeyNotFound error if no
// entry exists.
func (idx *Index) Get(key string) (*RecordPointer, error) {
	if idx.closed.Load() {
		return nil, ErrIndexClosed
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ptr, ok := idx.recordPointer[key]
	if !ok {
		return nil, errors.NewKeyNotFoundError(key)
	}
	return ptr, nil
}

// Delete removes key from the index. It reports whether the key was present.
func (idx *Index) Delete(key string) (bool, error) {
	if idx.closed.Load() {
		return false, ErrIndexClosed
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.recordPointer[key]; !ok {
		return false, nil
	}
	delete(idx.recordPointer, key)
	return true, nil
}

// Len returns the number of live keys tracked by the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.recordPointer)
}

// Range calls fn for every (key, *RecordPointer) pair currently tracked,
// stopping early if fn returns false.
func (idx *Index) Range(fn func(key string, ptr *RecordPointer) bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for k, v := range idx.recordPointer {
		if !fn(k, v) {
			return
		}
	}
}
