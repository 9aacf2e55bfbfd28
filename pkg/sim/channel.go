package sim

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/dma"
)

// Channel is a simulated DMA channel. The peripheral side moves data
// with fill and drain, possibly from another goroutine than the driver.
type Channel struct {
	board *Board

	lock   sync.Mutex
	id     int
	rq     int
	xfer   dma.Transfer
	active bool
	pos    int // bytes into the current lap
	total  uint64
}

// ID returns the claimed channel number, -1 if none.
func (c *Channel) ID() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.id
}

// Request returns the request line.
func (c *Channel) Request() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.rq
}

// Init implements dma.Channel.
func (c *Channel) Init(id, rq int) bool {
	if rq < 0 || !c.board.claim(c, id) {
		return false
	}
	c.lock.Lock()
	c.id, c.rq = id, rq
	c.lock.Unlock()
	return true
}

// Arm implements dma.Channel.
func (c *Channel) Arm(t dma.Transfer) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := t.Validate(); err != nil {
		glog.Warningf("dma%d: rejected transfer: %v", c.id, err)
		c.active = false
		return
	}
	c.xfer, c.pos, c.total = t, 0, 0
	c.active = t.Count > 0
}

// Transfer returns the last armed transfer.
func (c *Channel) Transfer() dma.Transfer {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.xfer
}

// Remaining implements dma.Channel.
func (c *Channel) Remaining() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.active {
		return 0
	}
	w := c.xfer.Width
	return (c.xfer.Bytes() - c.pos + w - 1) / w
}

// Transferred implements dma.Progress.
func (c *Channel) Transferred() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.total
}

// Active implements dma.Channel.
func (c *Channel) Active() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.active
}

// Disable implements dma.Channel. It releases the claimed channel
// number, and disabling the receive channel of an engine releases the
// claims of its transmit channel too.
func (c *Channel) Disable() {
	c.lock.Lock()
	c.active = false
	c.lock.Unlock()
	c.board.release(c)
}

// advance moves pos by n bytes, wrapping or stopping at the lap end.
func (c *Channel) advance(n int) bool {
	c.pos += n
	c.total += uint64(n)
	if c.pos < c.xfer.Bytes() {
		return true
	}
	c.pos = 0
	if c.xfer.Mode != dma.Circular {
		c.active = false
		return false
	}
	return true
}

// fill stores bytes arriving from the peripheral and returns how many
// were accepted.
func (c *Channel) fill(p []byte) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	var n int
	for c.active && n < len(p) {
		mem := c.xfer.Buffer.Bytes()[:c.xfer.Bytes()]
		nn := copy(mem[c.pos:], p[n:])
		n += nn
		if !c.advance(nn) {
			break
		}
	}
	return n
}

// drain fetches up to max bytes for the peripheral, all pending bytes
// if max <= 0.
func (c *Channel) drain(max int) []byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []byte
	for c.active && (max <= 0 || len(out) < max) {
		mem := c.xfer.Buffer.Bytes()[:c.xfer.Bytes()]
		chunk := mem[c.pos:]
		if max > 0 && len(chunk) > max-len(out) {
			chunk = chunk[:max-len(out)]
		}
		out = append(out, chunk...)
		if !c.advance(len(chunk)) || max <= 0 {
			break
		}
	}
	return out
}
