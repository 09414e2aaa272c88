package hlog

import (
	"sync/atomic"

	"github.com/iamNilotpal/ignite/internal/bufferpool"
	"github.com/iamNilotpal/ignite/internal/device"
	"github.com/iamNilotpal/ignite/internal/epoch"
	"github.com/iamNilotpal/ignite/internal/metrics"
	"go.uber.org/zap"
)

// Allocator is the page-resident log allocator: it owns a bounded ring of
// in-memory pages, the two (optionally one) block devices those pages flush
// to and read from, and the chain of watermarks that delimit which part of
// the logical address space is mutable, read-only, resident, or trimmed.
//
// Allocator never touches key/value bytes directly beyond the fixed
// RecordInfo header — everything record-shaped is delegated to the
// PageHandler capability supplied at construction.
type Allocator struct {
	cfg Config
	log *zap.SugaredLogger

	pages []pageSlot
	pool  bufferpool.Pool

	handler PageHandler

	logDevice       device.Device
	objectLogDevice device.Device

	segmentOffsets []*atomic.Uint64

	watermarks watermarks
	epoch      *epoch.Protection
}

// Params bundles everything New needs to construct an Allocator: its fixed
// geometry, the pool pages and scratch buffers are borrowed from, the
// record-layout collaborator, the devices it reads and writes through, and
// the epoch-protection collaborator that gates eviction.
type Params struct {
	Config Config

	Pool    bufferpool.Pool
	Handler PageHandler

	LogDevice       device.Device
	ObjectLogDevice device.Device

	Epoch *epoch.Protection

	Logger *zap.SugaredLogger
}

// New validates p.Config and constructs a ready-to-use Allocator: slot 0 is
// materialized for page 0, every other ring-buffer slot starts empty (not
// yet materialized), and the watermark
// chain starts at FirstValidAddress so logical address 0 is never handed
// out.
func New(p Params) (*Allocator, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	if p.Config.ObjectLogEnabled && p.ObjectLogDevice == nil {
		return nil, errConfigMissingObjectDevice
	}

	metrics.Register()

	a := &Allocator{
		cfg:             p.Config,
		log:             p.Logger,
		pages:           make([]pageSlot, p.Config.BufferSize),
		pool:            p.Pool,
		handler:         p.Handler,
		logDevice:       p.LogDevice,
		objectLogDevice: p.ObjectLogDevice,
		epoch:           p.Epoch,
	}

	a.segmentOffsets = make([]*atomic.Uint64, p.Config.SegmentBufferSize)
	for i := range a.segmentOffsets {
		a.segmentOffsets[i] = new(atomic.Uint64)
	}

	start := uint64(FirstValidAddress)
	a.watermarks.begin.Store(start)
	a.watermarks.head.Store(start)
	a.watermarks.safeHead.Store(start)
	a.watermarks.readOnly.Store(start)
	a.watermarks.safeReadOnly.Store(start)
	a.watermarks.tail.Store(start)
	a.watermarks.flushedUntil.Store(start)

	if err := a.allocatePage(0, 0); err != nil {
		return nil, err
	}

	if a.log != nil {
		a.log.Infow("hlog allocator initialized",
			"pageSize", p.Config.PageSize,
			"bufferSize", p.Config.BufferSize,
			"objectLogEnabled", p.Config.ObjectLogEnabled,
		)
	}

	return a, nil
}

// Close releases the devices this allocator owns. Callers that constructed
// the devices themselves and share them elsewhere should not call Close;
// internal/engine owns that decision.
func (a *Allocator) Close() error {
	if err := a.logDevice.Close(); err != nil {
		return err
	}
	if a.objectLogDevice != nil {
		return a.objectLogDevice.Close()
	}
	return nil
}

// ReturnReadBuffer releases a buffer obtained from ReadRecordToMemory back to
// the allocator's pool. Callers must not touch buf after calling this.
func (a *Allocator) ReturnReadBuffer(buf *bufferpool.Buffer) {
	a.pool.Return(buf)
}
