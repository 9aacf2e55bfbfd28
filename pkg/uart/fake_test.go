package uart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartdma/pkg/dma"
)

type fakeChannel struct {
	id, rq    int
	failInit  bool
	active    bool
	remaining int
	total     uint64
	armed     []dma.Transfer
	disabled  int
}

func (c *fakeChannel) Init(id, rq int) bool {
	if c.failInit {
		return false
	}
	c.id, c.rq = id, rq
	return true
}

func (c *fakeChannel) Arm(t dma.Transfer) {
	c.armed = append(c.armed, t)
	c.active = true
	c.remaining = t.Count
	c.total = 0
}

func (c *fakeChannel) Remaining() int { return c.remaining }
func (c *fakeChannel) Active() bool   { return c.active }

func (c *fakeChannel) Disable() {
	c.active = false
	c.disabled++
}

func (c *fakeChannel) last() dma.Transfer {
	return c.armed[len(c.armed)-1]
}

// progressChannel additionally reports the running byte count.
type progressChannel struct {
	*fakeChannel
}

func (c progressChannel) Transferred() uint64 { return c.total }

func fake(ch dma.Channel) *fakeChannel {
	switch c := ch.(type) {
	case *fakeChannel:
		return c
	case progressChannel:
		return c.fakeChannel
	}
	panic("not a fake channel")
}

type fakeSerial struct {
	failInit bool
	dev      int
	baud     uint32
	bound    map[Direction]dma.Channel
}

func (s *fakeSerial) Init(dev int, baud uint32) bool {
	if s.failInit {
		return false
	}
	s.dev, s.baud = dev, baud
	s.bound = make(map[Direction]dma.Channel)
	return true
}

func (s *fakeSerial) BindDMA(d Direction, ch dma.Channel) {
	s.bound[d] = ch
}

type fakeHardware struct {
	progress  bool
	failAlloc bool
	allocs    int
	serials   []*fakeSerial
	channels  []*fakeChannel
}

func (h *fakeHardware) NewSerialEngine() SerialEngine {
	s := &fakeSerial{}
	h.serials = append(h.serials, s)
	return s
}

func (h *fakeHardware) NewChannel() dma.Channel {
	c := &fakeChannel{}
	h.channels = append(h.channels, c)
	if h.progress {
		return progressChannel{c}
	}
	return c
}

func (h *fakeHardware) Allocate(size int) (*dma.Buffer, error) {
	if h.failAlloc {
		return nil, errors.New("no dma memory")
	}
	h.allocs++
	return dma.WrapBuffer(make([]byte, size)), nil
}

type tableTestEnv struct {
	t     *testing.T
	hw    *fakeHardware
	table *Table
}

func newTableTestEnv(t *testing.T, hw *fakeHardware, conf Config) *tableTestEnv {
	return &tableTestEnv{t: t, hw: hw, table: NewTable(hw, conf)}
}

func (e *tableTestEnv) open(dev int) Handle {
	h, err := e.table.Open(dev, 115200)
	require.NoError(e.t, err)
	return h
}

// receive plays the role of the DMA engine writing into the circular
// receive buffer of h.
func (e *tableTestEnv) receive(h Handle, data []byte) {
	s := &e.table.slots[h]
	rx := fake(s.rx)
	mem := s.rxBuf.Bytes()
	pos := writeIndex(rx.remaining, len(mem))
	for _, b := range data {
		mem[pos] = b
		pos = (pos + 1) % len(mem)
	}
	rx.remaining = len(mem) - pos
	rx.total += uint64(len(data))
}

func (e *tableTestEnv) rx(h Handle) *fakeChannel {
	return fake(e.table.slots[h].rx)
}

func (e *tableTestEnv) tx(h Handle) *fakeChannel {
	return fake(e.table.slots[h].tx)
}

func pattern(n, offset int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i + offset)
	}
	return p
}
