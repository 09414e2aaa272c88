// Package bufferpool provides the aligned scratch-buffer pool the flush and
// read engines borrow from whenever they need a sector-aligned region that
// isn't one of the ring buffer's own pages: copying a page before patching
// in-record object addresses, or receiving an on-demand record read.
//
// Buffers are allocated via an anonymous mmap rather than make([]byte, n) so
// that the returned region has a stable address the Go runtime's moving
// garbage collector can never relocate — the same pinning requirement the
// ring buffer's own pages need, just applied to scratch space instead.
package bufferpool

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a single borrowed scratch region. Aligned points at the first
// sector-aligned byte within Raw; Raw is the full mmap'd region, oversized
// by two sectors so an aligned start can always be chosen.
type Buffer struct {
	Raw     []byte
	Aligned []byte

	// ValidOffset and AvailableBytes let a caller describe where, within
	// Aligned, the actually-requested bytes begin and how many of them
	// are valid — used by readRecordToMemory when the aligned read
	// fetches extra bytes before the true record start.
	ValidOffset    int
	AvailableBytes int

	requiredBytes int
}

// Pool hands out sector-aligned buffers and reclaims them on Return. The
// allocator's flush and read paths borrow from it for scratch copies and
// on-demand record reads.
type Pool interface {
	Get(size int) (*Buffer, error)
	Return(buf *Buffer)
}

// MmapPool is the concrete Pool implementation: every Get mmaps a fresh
// anonymous, private region sized to the request plus two sectors of
// padding, and Return munmaps it. A free-list of same-sized buffers avoids
// the mmap/munmap round trip for the common case of repeatedly-sized page
// copies.
type MmapPool struct {
	sectorSize int

	mu       sync.Mutex
	freeList map[int][]*Buffer
}

// NewMmapPool creates a Pool whose buffers are aligned to sectorSize, which
// must be a power of two (the same sector size the allocator's devices use).
func NewMmapPool(sectorSize int) *MmapPool {
	return &MmapPool{
		sectorSize: sectorSize,
		freeList:   make(map[int][]*Buffer),
	}
}

// Get returns a buffer whose Aligned slice has at least size capacity and
// begins at a sectorSize-aligned address.
func (p *MmapPool) Get(size int) (*Buffer, error) {
	p.mu.Lock()
	if bufs := p.freeList[size]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		p.freeList[size] = bufs[:len(bufs)-1]
		p.mu.Unlock()
		buf.ValidOffset = 0
		buf.AvailableBytes = 0
		return buf, nil
	}
	p.mu.Unlock()

	padded := size + 2*p.sectorSize
	raw, err := unix.Mmap(-1, 0, padded, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}

	base := uintptrOf(raw)
	pad := (p.sectorSize - int(base%uintptr(p.sectorSize))) % p.sectorSize

	return &Buffer{
		Raw:           raw,
		Aligned:       raw[pad : pad+size],
		requiredBytes: size,
	}, nil
}

// Return releases buf back to the pool for reuse by a future Get of the
// same size, or unmaps it once the pool has enough spares of that size.
func (p *MmapPool) Return(buf *Buffer) {
	if buf == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	const maxSpare = 8
	if len(p.freeList[buf.requiredBytes]) < maxSpare {
		p.freeList[buf.requiredBytes] = append(p.freeList[buf.requiredBytes], buf)
		return
	}

	_ = unix.Munmap(buf.Raw)
}
