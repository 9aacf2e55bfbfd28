package uart

import (
	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/dma"
)

type slotState int

const (
	slotFree slotState = iota
	slotOpen
)

// slot is the per-port state of a Table.
type slot struct {
	state slotState
	dev   int
	baud  uint32

	serial SerialEngine
	rx     dma.Channel
	tx     dma.Channel

	// allocated on the first successful open and kept afterwards
	rxBuf *dma.Buffer
	txBuf *dma.Buffer

	ring ring
}

func (s *slot) open(dev int, baud uint32, routes DeviceMap, alloc dma.Allocator, size int) error {
	if !s.serial.Init(dev, baud) {
		return ErrHardwareInit
	}
	route, ok := routes[dev]
	if !ok {
		return ErrUnsupportedDevice
	}
	if !s.tx.Init(route.TxChannel, route.TxRequest) {
		return ErrDMAInit
	}
	if !s.rx.Init(route.RxChannel, route.RxRequest) {
		return ErrDMAInit
	}
	s.serial.BindDMA(Rx, s.rx)
	s.serial.BindDMA(Tx, s.tx)

	var err error
	if s.rxBuf == nil {
		if s.rxBuf, err = alloc.Allocate(size); err != nil {
			glog.Warningf("uart%d: rx buffer: %v", dev, err)
			return ErrDMAInit
		}
	}
	if s.txBuf == nil {
		if s.txBuf, err = alloc.Allocate(size); err != nil {
			glog.Warningf("uart%d: tx buffer: %v", dev, err)
			return ErrDMAInit
		}
	}

	s.ring.reset(s.rxBuf.Bytes())
	s.rx.Arm(dma.NewCircular(s.rxBuf))

	s.dev, s.baud = dev, baud
	s.state = slotOpen
	return nil
}

func (s *slot) close() {
	if s.rx.Active() {
		s.rx.Disable()
	}
	if s.tx.Active() {
		s.tx.Disable()
	}
	s.state = slotFree
}

func (s *slot) read(dst []byte) (int, error) {
	return s.ring.read(s.rx, dst)
}

// write hands src to the transmit channel. It returns 0 while the
// previous transfer is active and truncates src to the buffer size.
func (s *slot) write(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	if s.tx.Active() {
		return 0
	}
	n := copy(s.txBuf.Bytes(), src)
	s.tx.Arm(dma.NewOneShot(s.txBuf, n))
	return n
}
