// Package compaction implements the background watchers that keep the
// page-resident log moving: an eviction driver that advances ReadOnlyAddress
// and HeadAddress behind the tail, flushing newly-read-only pages so their
// slots become reusable, and a slower trim worker that advances BeginAddress
// behind HeadAddress, deleting the segment files that fall below it. Neither
// rewrites live data the way a Bitcask-style merge pass does — a
// page-resident allocator's "compaction" is purely watermark bookkeeping.
package compaction

import (
	"context"
	stdErrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/ignite/internal/hlog"
	"go.uber.org/zap"
)

var ErrCompactionClosed = stdErrors.New("operation failed: cannot access closed compaction worker")

// DefaultEvictInterval is how often the eviction driver checks whether the
// tail has advanced far enough to retire another page, when Config.EvictInterval
// is left zero.
const DefaultEvictInterval = 50 * time.Millisecond

// Allocator is the narrow slice of hlog.Allocator the background workers
// need: enough to observe how far writing and eviction have progressed and
// to drive both forward.
type Allocator interface {
	HeadAddress() hlog.LogicalAddress
	BeginAddress() hlog.LogicalAddress
	ReadOnlyAddress() hlog.LogicalAddress
	TailAddress() hlog.LogicalAddress
	PageSize() int64

	ShiftReadOnlyAddress(addr hlog.LogicalAddress)
	ShiftSafeReadOnlyAddress(addr hlog.LogicalAddress)
	ShiftHeadAddress(addr hlog.LogicalAddress)
	ShiftBeginAddress(addr hlog.LogicalAddress) error

	FlushPage(p uint64, cb hlog.FlushCallback)
}

// Compaction periodically advances BeginAddress to trail HeadAddress by a
// configured retention window, deleting the log segments that fall below it,
// and — on a separate, tighter interval — advances ReadOnlyAddress and
// HeadAddress behind TailAddress, flushing each page as it becomes read-only
// so its slot is freed for reuse. Without the latter, a page-resident ring
// buffer never shrinks and writers eventually stall forever once it fills.
type Compaction struct {
	log       *zap.SugaredLogger
	allocator Allocator
	interval  time.Duration
	evictInterval time.Duration
	retention hlog.LogicalAddress

	closed atomic.Bool
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// Config bundles everything New needs to run the background workers.
type Config struct {
	Allocator Allocator
	Logger    *zap.SugaredLogger

	// Interval is how often the trim worker checks HeadAddress for forward
	// progress. Defaults to 5 minutes when zero.
	Interval time.Duration

	// EvictInterval is how often the eviction driver checks TailAddress for
	// pages that can be marked read-only, flushed, and retired. Defaults to
	// DefaultEvictInterval when zero. Unlike Interval, this needs to be
	// short: it's what keeps the resident page ring from filling up under
	// sustained writes.
	EvictInterval time.Duration

	// Retention is how far behind HeadAddress BeginAddress is allowed to
	// trail before segments are eligible for deletion — keeping a small
	// window resident even after eviction absorbs late readers that
	// haven't yet refreshed their epoch.
	Retention hlog.LogicalAddress
}

// New constructs a Compaction worker. It does not start running until Run
// is called.
func New(cfg Config) *Compaction {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	evictInterval := cfg.EvictInterval
	if evictInterval <= 0 {
		evictInterval = DefaultEvictInterval
	}

	return &Compaction{
		log:           cfg.Logger,
		allocator:     cfg.Allocator,
		interval:      interval,
		evictInterval: evictInterval,
		retention:     cfg.Retention,
		stopCh:        make(chan struct{}),
	}
}

// Run starts the periodic trim and eviction loops and blocks until ctx is
// cancelled or Close is called. Callers typically invoke it in its own
// goroutine.
func (c *Compaction) Run(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()

	trimTicker := time.NewTicker(c.interval)
	defer trimTicker.Stop()

	evictTicker := time.NewTicker(c.evictInterval)
	defer evictTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-trimTicker.C:
			c.tick()
		case <-evictTicker.C:
			c.evict()
		}
	}
}

// evict advances ReadOnlyAddress to the start of the page TailAddress
// currently sits in — marking every whole page below it immutable — flushes
// each newly-read-only page, and once every flush has completed, advances
// HeadAddress to the same point. ShiftHeadAddress's own requestCloseUpTo
// pass then marks those pages closed, which frees their slots for reuse by
// the allocator (clearPage runs there, since the flush above has already
// completed by the time the close is requested — see the status-word race
// documented in internal/hlog).
func (c *Compaction) evict() {
	pageSize := c.allocator.PageSize()
	if pageSize <= 0 {
		return
	}

	readOnly := c.allocator.ReadOnlyAddress()
	tail := c.allocator.TailAddress()

	readOnlyPage := uint64(readOnly) / uint64(pageSize)
	tailPage := uint64(tail) / uint64(pageSize)
	if tailPage <= readOnlyPage {
		return
	}

	newReadOnly := hlog.LogicalAddress(tailPage * uint64(pageSize))
	c.allocator.ShiftReadOnlyAddress(newReadOnly)
	c.allocator.ShiftSafeReadOnlyAddress(newReadOnly)

	var wg sync.WaitGroup
	for p := readOnlyPage; p < tailPage; p++ {
		wg.Add(1)
		c.allocator.FlushPage(p, func(page uint64, err error) {
			defer wg.Done()
			if err != nil && c.log != nil {
				c.log.Errorw("background page flush failed", "page", page, "error", err)
			}
		})
	}
	wg.Wait()

	c.allocator.ShiftHeadAddress(newReadOnly)
}

func (c *Compaction) tick() {
	head := c.allocator.HeadAddress()
	if head < c.retention {
		return
	}

	target := head - c.retention
	if target <= c.allocator.BeginAddress() {
		return
	}

	if err := c.allocator.ShiftBeginAddress(target); err != nil {
		if c.log != nil {
			c.log.Errorw("segment trim failed", "targetAddress", uint64(target), "error", err)
		}
		return
	}

	if c.log != nil {
		c.log.Infow("trimmed log segments below address", "beginAddress", uint64(target))
	}
}

// Close stops the trim and eviction loops and waits for them to exit.
func (c *Compaction) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrCompactionClosed
	}
	close(c.stopCh)
	c.wg.Wait()
	return nil
}
