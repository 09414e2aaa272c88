package compaction

import (
	"context"
	"testing"
	"time"

	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct {
	head     hlog.LogicalAddress
	begin    hlog.LogicalAddress
	readOnly hlog.LogicalAddress
	tail     hlog.LogicalAddress
	pageSize int64

	shiftCalls         []hlog.LogicalAddress
	shiftErr           error
	shiftReadOnlyCalls []hlog.LogicalAddress
	shiftHeadCalls     []hlog.LogicalAddress
	flushedPages       []uint64
	flushErr           error
}

func (f *fakeAllocator) HeadAddress() hlog.LogicalAddress     { return f.head }
func (f *fakeAllocator) BeginAddress() hlog.LogicalAddress    { return f.begin }
func (f *fakeAllocator) ReadOnlyAddress() hlog.LogicalAddress { return f.readOnly }
func (f *fakeAllocator) TailAddress() hlog.LogicalAddress     { return f.tail }
func (f *fakeAllocator) PageSize() int64                      { return f.pageSize }

func (f *fakeAllocator) ShiftBeginAddress(addr hlog.LogicalAddress) error {
	f.shiftCalls = append(f.shiftCalls, addr)
	if f.shiftErr != nil {
		return f.shiftErr
	}
	f.begin = addr
	return nil
}

func (f *fakeAllocator) ShiftReadOnlyAddress(addr hlog.LogicalAddress) {
	f.shiftReadOnlyCalls = append(f.shiftReadOnlyCalls, addr)
	f.readOnly = addr
}

func (f *fakeAllocator) ShiftSafeReadOnlyAddress(addr hlog.LogicalAddress) {}

func (f *fakeAllocator) ShiftHeadAddress(addr hlog.LogicalAddress) {
	f.shiftHeadCalls = append(f.shiftHeadCalls, addr)
	f.head = addr
}

func (f *fakeAllocator) FlushPage(p uint64, cb hlog.FlushCallback) {
	f.flushedPages = append(f.flushedPages, p)
	cb(p, f.flushErr)
}

func TestTickNoopWhenHeadBelowRetention(t *testing.T) {
	alloc := &fakeAllocator{head: 100, begin: 0}
	c := New(Config{Allocator: alloc, Logger: logger.Nop(), Retention: 1000})

	c.tick()
	require.Empty(t, alloc.shiftCalls)
}

func TestTickNoopWhenTargetDoesNotAdvance(t *testing.T) {
	alloc := &fakeAllocator{head: 500, begin: 400}
	c := New(Config{Allocator: alloc, Logger: logger.Nop(), Retention: 200})

	// target = head - retention = 300, which is <= begin (400).
	c.tick()
	require.Empty(t, alloc.shiftCalls)
}

func TestTickShiftsBeginAddressForward(t *testing.T) {
	alloc := &fakeAllocator{head: 1000, begin: 0}
	c := New(Config{Allocator: alloc, Logger: logger.Nop(), Retention: 200})

	c.tick()
	require.Equal(t, []hlog.LogicalAddress{800}, alloc.shiftCalls)
	require.Equal(t, hlog.LogicalAddress(800), alloc.begin)
}

func TestTickLogsAndSwallowsShiftError(t *testing.T) {
	alloc := &fakeAllocator{head: 1000, begin: 0, shiftErr: require.AnError}
	c := New(Config{Allocator: alloc, Logger: logger.Nop(), Retention: 200})

	require.NotPanics(t, func() { c.tick() })
	require.Equal(t, []hlog.LogicalAddress{800}, alloc.shiftCalls)
	require.Equal(t, hlog.LogicalAddress(0), alloc.begin)
}

func TestRunStopsOnClose(t *testing.T) {
	alloc := &fakeAllocator{head: 1000, begin: 0}
	c := New(Config{Allocator: alloc, Logger: logger.Nop(), Interval: time.Millisecond})

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	require.ErrorIs(t, c.Close(), ErrCompactionClosed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	alloc := &fakeAllocator{head: 1000, begin: 0}
	c := New(Config{Allocator: alloc, Logger: logger.Nop(), Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	c := New(Config{Allocator: &fakeAllocator{}, Logger: logger.Nop()})
	require.Equal(t, 5*time.Minute, c.interval)
	require.Equal(t, DefaultEvictInterval, c.evictInterval)
}

func TestEvictNoopWhenTailStaysInReadOnlyPage(t *testing.T) {
	alloc := &fakeAllocator{pageSize: 100, readOnly: 0, tail: 50}
	c := New(Config{Allocator: alloc, Logger: logger.Nop()})

	c.evict()
	require.Empty(t, alloc.shiftReadOnlyCalls)
	require.Empty(t, alloc.flushedPages)
	require.Empty(t, alloc.shiftHeadCalls)
}

func TestEvictAdvancesReadOnlyFlushesAndShiftsHead(t *testing.T) {
	alloc := &fakeAllocator{pageSize: 100, readOnly: 0, tail: 250}
	c := New(Config{Allocator: alloc, Logger: logger.Nop()})

	c.evict()
	require.Equal(t, []uint64{0, 1}, alloc.flushedPages)
	require.Equal(t, []hlog.LogicalAddress{200}, alloc.shiftReadOnlyCalls)
	require.Equal(t, []hlog.LogicalAddress{200}, alloc.shiftHeadCalls)
	require.Equal(t, hlog.LogicalAddress(200), alloc.head)
}

func TestEvictAdvancesHeadEvenWhenAFlushFails(t *testing.T) {
	alloc := &fakeAllocator{pageSize: 100, readOnly: 0, tail: 150, flushErr: require.AnError}
	c := New(Config{Allocator: alloc, Logger: logger.Nop()})

	require.NotPanics(t, func() { c.evict() })
	require.Equal(t, []uint64{0}, alloc.flushedPages)
	require.Equal(t, hlog.LogicalAddress(100), alloc.head)
}
