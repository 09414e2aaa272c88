package hlog

import (
	"context"
	"sync"
	"testing"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
	"github.com/iamNilotpal/ignite/internal/device"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/stretchr/testify/require"
)

// heldCompletion is one deferred device completion a controllableDevice is
// holding back until the test explicitly releases it, letting a test
// interleave a flush's in-flight write with a concurrent close request.
type heldCompletion struct {
	cb    device.CompletionFunc
	cbCtx any
}

// controllableDevice is a minimal device.Device whose writes don't complete
// until the test calls releaseOne, so a test can force a specific
// interleaving between a page's flush completion and its close request
// instead of relying on real goroutine scheduling.
type controllableDevice struct {
	mu      sync.Mutex
	pending []heldCompletion
}

func (d *controllableDevice) WriteAsync(ctx context.Context, src []byte, fileOffset int64, cb device.CompletionFunc, cbCtx any) {
	d.WriteAsyncSegment(ctx, src, 0, fileOffset, cb, cbCtx)
}

func (d *controllableDevice) ReadAsync(ctx context.Context, dest []byte, fileOffset int64, nBytes uint32, cb device.CompletionFunc, cbCtx any) {
	cb(0, nBytes, cbCtx)
}

func (d *controllableDevice) WriteAsyncSegment(ctx context.Context, src []byte, seg uint64, segOffset int64, cb device.CompletionFunc, cbCtx any) {
	d.mu.Lock()
	d.pending = append(d.pending, heldCompletion{cb: cb, cbCtx: cbCtx})
	d.mu.Unlock()
}

func (d *controllableDevice) ReadAsyncSegment(ctx context.Context, dest []byte, seg uint64, segOffset int64, nBytes uint32, cb device.CompletionFunc, cbCtx any) {
	cb(0, nBytes, cbCtx)
}

func (d *controllableDevice) DeleteSegmentRange(fromSeg, toSeg uint64) error { return nil }
func (d *controllableDevice) SegmentSize() int64                            { return 2048 }
func (d *controllableDevice) Close() error                                  { return nil }

// releaseOne invokes the oldest held write completion with the given
// errorCode, simulating that write finishing just now.
func (d *controllableDevice) releaseOne(errorCode int) {
	d.mu.Lock()
	h := d.pending[0]
	d.pending = d.pending[1:]
	d.mu.Unlock()
	h.cb(errorCode, 0, h.cbCtx)
}

// countingHandler is a minimal PageHandler that declares value-side objects
// (so clearPage actually calls into it) but never has any real records to
// serialize, letting a flush complete without issuing any object-log
// writes while still exercising the ClearPage call every slot reuse must
// make exactly once.
type countingHandler struct {
	mu         sync.Mutex
	clearCalls int
}

func (h *countingHandler) KeyHasObjects() bool   { return false }
func (h *countingHandler) ValueHasObjects() bool { return true }

func (h *countingHandler) ClearPage(page []byte, skipPrefix int) {
	h.mu.Lock()
	h.clearCalls++
	h.mu.Unlock()
}

func (h *countingHandler) Serialize(page []byte, start, end int, blockSize int64, w Writer) ([]int, int64, int, error) {
	return nil, 0, start, nil
}

func (h *countingHandler) Deserialize(page []byte, start, end int, r Reader) error { return nil }

func (h *countingHandler) GetObjectInfo(page []byte, ptr, end int, blockSize int64) (int, int64, int64, error) {
	return end, 0, 0, nil
}

func (h *countingHandler) clears() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clearCalls
}

func raceTestConfig() Config {
	return Config{
		OffsetBits:        8,
		PageSize:          256,
		BufferSize:        4,
		SectorSize:        64,
		SegmentSize:       2048,
		SegmentBufferSize: 4,
		ObjectLogEnabled:  false,
	}
}

// TestFlushBeforeCloseRequestClearsPageOnceFromRequestClose forces the
// ordering where a page's flush completes first; the subsequent close
// request (ShiftHeadAddress) must then observe (Flushed, *) and be the one
// responsible for clearing the page.
func TestFlushBeforeCloseRequestClearsPageOnceFromRequestClose(t *testing.T) {
	cfg := raceTestConfig()
	dev := &controllableDevice{}
	handler := &countingHandler{}
	a, err := New(Params{Config: cfg, Pool: bufferpool.NewMmapPool(cfg.SectorSize), Handler: handler, LogDevice: dev, Logger: logger.Nop()})
	require.NoError(t, err)

	_, err = a.Allocate(8)
	require.NoError(t, err)

	var flushErr error
	var wg sync.WaitGroup
	wg.Add(1)
	a.FlushPage(0, func(_ uint64, err error) {
		flushErr = err
		wg.Done()
	})
	dev.releaseOne(0)
	wg.Wait()
	require.NoError(t, flushErr)

	require.Equal(t, 0, handler.clears(), "flush completing alone must not clear a still-open page")

	a.ShiftHeadAddress(LogicalAddress(cfg.PageSize))
	require.Equal(t, 1, handler.clears(), "the close request must be the one to clear, having observed Flushed")
}

// TestCloseRequestBeforeFlushClearsPageOnceFromFinish forces the reverse
// ordering: the close request arrives while the flush write is still
// in-flight, so requestCloseUpTo must not clear (it observes InProgress),
// and the flush's own completion (finish) must be the one to clear once it
// observes the close that already landed.
func TestCloseRequestBeforeFlushClearsPageOnceFromFinish(t *testing.T) {
	cfg := raceTestConfig()
	dev := &controllableDevice{}
	handler := &countingHandler{}
	a, err := New(Params{Config: cfg, Pool: bufferpool.NewMmapPool(cfg.SectorSize), Handler: handler, LogDevice: dev, Logger: logger.Nop()})
	require.NoError(t, err)

	_, err = a.Allocate(8)
	require.NoError(t, err)

	var flushErr error
	var wg sync.WaitGroup
	wg.Add(1)
	a.FlushPage(0, func(_ uint64, err error) {
		flushErr = err
		wg.Done()
	})

	// The main-page write is still held back: the flush hasn't completed,
	// so its status is (InProgress, Open).
	a.ShiftHeadAddress(LogicalAddress(cfg.PageSize))
	require.Equal(t, 0, handler.clears(), "a close request racing an in-flight flush must not clear yet")

	dev.releaseOne(0)
	wg.Wait()
	require.NoError(t, flushErr)

	require.Equal(t, 1, handler.clears(), "the flush's own completion must be the one to clear, having observed Closed")
}
