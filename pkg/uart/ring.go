package uart

import (
	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/dma"
)

// ring consumes a buffer written circularly by a DMA channel.
// readIdx is always consumed modulo len(mem).
type ring struct {
	mem      []byte
	readIdx  int
	consumed uint64

	overruns uint64
	lost     uint64
}

func (r *ring) reset(mem []byte) {
	r.mem = mem
	r.readIdx = 0
	r.consumed = 0
	r.overruns, r.lost = 0, 0
}

// writeIndex converts the remaining count of a circular transfer over
// size bytes into the position the channel writes next.
func writeIndex(remaining, size int) int {
	idx := size - remaining
	if idx < 0 || idx >= size {
		return 0
	}
	return idx
}

// read copies the bytes that arrived since the previous call into dst.
// The channel position is sampled once.
func (r *ring) read(ch dma.Channel, dst []byte) (int, error) {
	size := len(r.mem)
	if len(dst) < size {
		return 0, ErrBufferTooSmall
	}
	p, ok := ch.(dma.Progress)
	if !ok {
		return r.copyTo(dst, writeIndex(ch.Remaining(), size)), nil
	}

	total := p.Transferred()
	writeIdx := int(total % uint64(size))
	switch unread := total - r.consumed; {
	case unread > uint64(size):
		r.overruns++
		r.lost += unread
		r.readIdx, r.consumed = writeIdx, total
		glog.V(2).Infof("rx overrun: %d bytes dropped", unread)
		return 0, ErrOverrun
	case unread == uint64(size):
		// a complete lap, write and read positions coincide
		n := copy(dst, r.mem[r.readIdx:])
		n += copy(dst[n:], r.mem[:r.readIdx])
		r.consumed = total
		return n, nil
	}
	n := r.copyTo(dst, writeIdx)
	r.consumed += uint64(n)
	return n, nil
}

func (r *ring) copyTo(dst []byte, writeIdx int) int {
	if writeIdx == r.readIdx {
		return 0
	}
	var n int
	if writeIdx > r.readIdx {
		n = copy(dst, r.mem[r.readIdx:writeIdx])
	} else {
		n = copy(dst, r.mem[r.readIdx:])
		n += copy(dst[n:], r.mem[:writeIdx])
	}
	r.readIdx = writeIdx
	return n
}
