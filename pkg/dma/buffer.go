package dma

import (
	"errors"
	"fmt"
	"unsafe"
)

// Buffer is memory a DMA engine may read or write. Depending on the
// platform it is uncached or cache coherent, so it is obtained from an
// Allocator and lives until the process exits.
type Buffer struct {
	mem []byte
}

// WrapBuffer treats mem as DMA-capable memory. Allocators use it to
// hand out regions they own.
func WrapBuffer(mem []byte) *Buffer {
	return &Buffer{mem: mem}
}

// Bytes exposes the underlying memory.
func (b *Buffer) Bytes() []byte {
	return b.mem
}

// Len returns the capacity in bytes.
func (b *Buffer) Len() int {
	return len(b.mem)
}

// Allocator hands out DMA-capable memory.
type Allocator interface {
	Allocate(size int) (*Buffer, error)
}

// ErrOutOfMemory indicates the allocator region is exhausted.
var ErrOutOfMemory = errors.New("dma memory exhausted")

// Region is an Allocator carving buffers out of a fixed block of
// memory. Buffers are never returned to the region.
type Region struct {
	// Align is the address alignment of every buffer, 0 means 32.
	Align int

	mem  []byte
	next int
}

// NewRegion creates a Region of size bytes.
func NewRegion(size int) *Region {
	return &Region{mem: make([]byte, size)}
}

// Allocate implements Allocator.
func (r *Region) Allocate(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid dma buffer size %d", size)
	}
	if len(r.mem) == 0 {
		return nil, ErrOutOfMemory
	}
	align := r.Align
	if align <= 0 {
		align = 32
	}
	base := uintptr(unsafe.Pointer(&r.mem[0]))
	start := int((base+uintptr(r.next)+uintptr(align-1))/uintptr(align)*uintptr(align) - base)
	if start+size > len(r.mem) {
		return nil, ErrOutOfMemory
	}
	r.next = start + size
	return WrapBuffer(r.mem[start : start+size : start+size]), nil
}

// Used returns the number of bytes consumed including alignment padding,
// which depends on the address of the region.
func (r *Region) Used() int {
	return r.next
}
