package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/internal/recordtypes"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// maxAllocateRetries bounds how many times Set retries Allocate after an
// AllocationStall before giving up — each retry refreshes this engine's
// epoch so the allocator's eviction path can make forward progress.
const maxAllocateRetries = 64

var versionCounter atomic.Uint64

// Set writes key/value as a new record at the tail of the log and publishes
// its location in the index. When the object log is enabled, values at or
// above recordtypes.ValueInlineThreshold are tagged for promotion to the
// object log at flush time.
func (e *Engine) Set(ctx context.Context, key string, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	promote := e.objectDevice != nil && len(value) >= recordtypes.ValueInlineThreshold
	size := recordtypes.RecordSize(len(key), len(value))

	addr, err := e.allocateWithRetry(size)
	if err != nil {
		return err
	}

	page := e.allocator.PhysicalSlice(addr, int(size))
	version := versionCounter.Add(1)
	recordtypes.EncodeRecord(page, 0, key, value, false, version, promote)

	return e.index.Put(key, addr, size, uint32(len(value)), time.Now().UnixNano())
}

// SetX stores a key-value pair exactly as Set does. The expiry is neither
// recorded nor enforced: the entry stays readable until it is overwritten
// or deleted.
func (e *Engine) SetX(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return e.Set(ctx, key, value)
}

// Get fetches the value currently stored for key, or returns the index's
// key-not-found error if it has never been written (or was deleted).
func (e *Engine) Get(ctx context.Context, key string) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	ptr, err := e.index.Get(key)
	if err != nil {
		return nil, err
	}

	type result struct {
		buf *bufferpool.Buffer
		err error
	}
	done := make(chan result, 1)

	e.allocator.ReadRecordToMemory(ctx, ptr.Address, ptr.EntrySize, func(buf *bufferpool.Buffer, err error) {
		done <- result{buf: buf, err: err}
	})

	res := <-done
	if res.err != nil {
		return nil, res.err
	}
	defer e.allocator.ReturnReadBuffer(res.buf)

	value, err := recordtypes.ExtractValue(res.buf.Aligned[res.buf.ValidOffset:res.buf.ValidOffset+res.buf.AvailableBytes], 0)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete marks key as removed: it writes a tombstone record (preserving the
// append-only invariant — nothing is ever overwritten in place) and removes
// the key from the index so subsequent Gets report not-found immediately,
// without waiting for the tombstone to be read back.
func (e *Engine) Delete(ctx context.Context, key string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	size := recordtypes.RecordSize(len(key), 0)
	addr, err := e.allocateWithRetry(size)
	if err != nil {
		return err
	}

	page := e.allocator.PhysicalSlice(addr, int(size))
	version := versionCounter.Add(1)
	recordtypes.EncodeRecord(page, 0, key, nil, true, version, false)

	if _, err := e.index.Delete(key); err != nil {
		return err
	}
	return nil
}

// allocateWithRetry calls Allocate, refreshing this engine's epoch
// registration and retrying on AllocationStall, a non-fatal error that
// clears once the epoch collaborator lets the allocator make progress.
func (e *Engine) allocateWithRetry(size uint32) (hlog.LogicalAddress, error) {
	var lastErr error
	for i := 0; i < maxAllocateRetries; i++ {
		addr, err := e.allocator.Allocate(size)
		if err == nil {
			return addr, nil
		}
		lastErr = err

		if !errors.IsHlogError(err) {
			return 0, err
		}
		e.protection.Refresh(e.epochIdx)
	}
	return 0, lastErr
}
