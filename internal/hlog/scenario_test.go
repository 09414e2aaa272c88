package hlog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
	"github.com/iamNilotpal/ignite/internal/device"
	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/internal/metrics"
	"github.com/iamNilotpal/ignite/internal/recordtypes"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestFlushSplitsPromotedValuesAcrossMultipleObjectBlocks exercises the
// multi-batch path of serializeBatches: with a deliberately small
// ObjectBlockSize, three promoted values that would fit in one batch at the
// default block size must instead split into two object-log write batches,
// and every value must still round-trip correctly once read back.
func TestFlushSplitsPromotedValuesAcrossMultipleObjectBlocks(t *testing.T) {
	metrics.Register()

	cfg := testConfig()
	cfg.OffsetBits = 13
	cfg.PageSize = 8192
	cfg.SegmentSize = 8192 * 4
	cfg.ObjectBlockSize = 4096
	a := newTestAllocatorWithConfig(t, cfg)

	type rec struct {
		key   string
		value []byte
		addr  hlog.LogicalAddress
	}
	records := make([]rec, 3)
	for i := range records {
		v := make([]byte, 2000)
		for j := range v {
			v[j] = byte(i*50 + j)
		}
		records[i] = rec{key: string(rune('a' + i)), value: v}
	}

	var total uint32
	for _, r := range records {
		total += recordtypes.RecordSize(len(r.key), len(r.value))
	}

	base, err := a.Allocate(total)
	require.NoError(t, err)

	page := a.PhysicalSlice(base, int(total))
	off := 0
	for i, r := range records {
		n := recordtypes.EncodeRecord(page, off, r.key, r.value, false, 1, true)
		records[i].addr = base + hlog.LogicalAddress(off)
		off += n
	}

	before := testutil.ToFloat64(metrics.ObjectLogWrites)

	flushed := make(chan error, 1)
	a.FlushPage(0, func(_ uint64, err error) { flushed <- err })
	require.NoError(t, <-flushed)

	// written=0+2000 (rec0), then 2000+2000<=4096 (rec1) still fits the same
	// batch, then 4000+2000>4096 forces rec2 into a second, final batch.
	require.Equal(t, before+2, testutil.ToFloat64(metrics.ObjectLogWrites))

	a.ShiftHeadAddress(hlog.LogicalAddress(cfg.PageSize))

	for _, r := range records {
		size := recordtypes.RecordSize(len(r.key), len(r.value))
		type result struct {
			buf *bufferpool.Buffer
			err error
		}
		read := make(chan result, 1)
		a.ReadRecordToMemory(context.Background(), r.addr, size, func(buf *bufferpool.Buffer, err error) {
			read <- result{buf, err}
		})
		res := <-read
		require.NoError(t, res.err)

		got, err := recordtypes.ExtractValue(res.buf.Aligned[res.buf.ValidOffset:res.buf.ValidOffset+res.buf.AvailableBytes], 0)
		require.NoError(t, err)
		require.Equal(t, r.value, got)
		a.ReturnReadBuffer(res.buf)
	}
}

// errorInjectingDevice wraps a fakeDevice and reports a fixed non-zero
// completion code on every write, standing in for a device surfacing a
// real I/O failure (bad sector, ENOSPC) to the flush engine.
type errorInjectingDevice struct {
	*fakeDevice
	code int
}

func (d *errorInjectingDevice) WriteAsyncSegment(ctx context.Context, src []byte, seg uint64, segOffset int64, cb device.CompletionFunc, cbCtx any) {
	cb(d.code, 0, cbCtx)
}

// TestFlushPropagatesInjectedObjectLogErrorCodeAndStillReleasesSlot injects a
// device error code on the object-log write a promoted value's flush
// requires, and checks two things the flush engine must get right: the
// caller's callback observes the exact injected code, and the page's slot is
// still released (a second FlushPage on the same page is accepted rather
// than rejected as already-in-progress) instead of wedging forever.
func TestFlushPropagatesInjectedObjectLogErrorCodeAndStillReleasesSlot(t *testing.T) {
	const injectedCode = 5

	cfg := testConfig()
	cfg.OffsetBits = 12
	cfg.PageSize = 4096
	cfg.SegmentSize = 4096 * 8
	logDev := newFakeDevice(cfg.SegmentSize)
	objDev := &errorInjectingDevice{fakeDevice: newFakeDevice(cfg.SegmentSize), code: injectedCode}

	a, err := hlog.New(hlog.Params{
		Config:          cfg,
		Pool:            bufferpool.NewMmapPool(cfg.SectorSize),
		Handler:         recordtypes.New(),
		LogDevice:       logDev,
		ObjectLogDevice: objDev,
		Logger:          logger.Nop(),
	})
	require.NoError(t, err)

	key := "k"
	value := make([]byte, recordtypes.ValueInlineThreshold+200)
	size := recordtypes.RecordSize(len(key), len(value))

	addr, err := a.Allocate(size)
	require.NoError(t, err)
	page := a.PhysicalSlice(addr, int(size))
	recordtypes.EncodeRecord(page, 0, key, value, false, 1, true)

	var wg sync.WaitGroup
	wg.Add(1)
	var flushErr error
	a.FlushPage(0, func(_ uint64, err error) {
		flushErr = err
		wg.Done()
	})
	wg.Wait()

	require.Error(t, flushErr)
	var hlogErr interface{ DeviceErrorCode() int }
	require.ErrorAs(t, flushErr, &hlogErr)
	require.Equal(t, injectedCode, hlogErr.DeviceErrorCode())

	// The slot must have been released on completion despite the error:
	// a second flush of the same page is accepted, not rejected as
	// already-in-progress.
	wg.Add(1)
	var secondErr error
	a.FlushPage(0, func(_ uint64, err error) {
		secondErr = err
		wg.Done()
	})
	wg.Wait()
	require.NotEqual(t, "flush already in progress for this page", errMessage(secondErr))
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
