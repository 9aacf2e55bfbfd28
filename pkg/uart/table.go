package uart

import (
	"github.com/golang/glog"
)

// Handle identifies an open port of a Table.
type Handle int

// Defaults of Config.
const (
	DefaultSlots      = 4
	DefaultBufferSize = 1024
)

// Config sizes a Table.
type Config struct {
	// Slots is the number of ports open at the same time.
	Slots int
	// BufferSize is the capacity of each receive and transmit buffer.
	BufferSize int
	// Devices routes device ids to DMA channels, DefaultDevices if nil.
	Devices DeviceMap
}

// PortStatus is a snapshot of a slot.
type PortStatus struct {
	Open      bool
	Device    int
	Baud      uint32
	ReadIndex int
	TxBusy    bool
	// Overruns counts reads that found unread data overwritten,
	// Lost the bytes dropped by them. Both restart with each Open.
	Overruns uint64
	Lost     uint64
}

// Table is a fixed pool of port slots addressed by Handle.
type Table struct {
	slots   []slot
	size    int
	devices DeviceMap
	alloc   Hardware
}

// NewTable creates a Table with all slots free.
func NewTable(hw Hardware, conf Config) *Table {
	if conf.Slots <= 0 {
		conf.Slots = DefaultSlots
	}
	if conf.BufferSize <= 0 {
		conf.BufferSize = DefaultBufferSize
	}
	if conf.Devices == nil {
		conf.Devices = DefaultDevices
	}
	t := &Table{
		slots:   make([]slot, conf.Slots),
		size:    conf.BufferSize,
		devices: conf.Devices,
		alloc:   hw,
	}
	for n := range t.slots {
		s := &t.slots[n]
		s.serial = hw.NewSerialEngine()
		s.rx = hw.NewChannel()
		s.tx = hw.NewChannel()
	}
	return t
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// BufferSize returns the capacity of the port buffers. Read requires a
// destination of at least this size.
func (t *Table) BufferSize() int {
	return t.size
}

// Open opens device dev at baud on the lowest free slot.
func (t *Table) Open(dev int, baud uint32) (Handle, error) {
	free := -1
	for n := range t.slots {
		s := &t.slots[n]
		if s.state == slotOpen && s.dev == dev {
			return -1, ErrAlreadyOpen
		}
		if free < 0 && s.state == slotFree {
			free = n
		}
	}
	if free < 0 {
		return -1, ErrNoCapacity
	}
	if err := t.slots[free].open(dev, baud, t.devices, t.alloc, t.size); err != nil {
		glog.V(2).Infof("uart%d: open failed: %v", dev, err)
		return -1, err
	}
	glog.V(2).Infof("uart%d: open at %d baud, handle %d", dev, baud, free)
	return Handle(free), nil
}

// Lookup finds the handle of an open device.
func (t *Table) Lookup(dev int) (Handle, bool) {
	for n := range t.slots {
		if s := &t.slots[n]; s.state == slotOpen && s.dev == dev {
			return Handle(n), true
		}
	}
	return -1, false
}

func (t *Table) slot(h Handle) (*slot, error) {
	if h < 0 || int(h) >= len(t.slots) {
		return nil, ErrInvalidHandle
	}
	return &t.slots[h], nil
}

func (t *Table) openSlot(h Handle) (*slot, error) {
	s, err := t.slot(h)
	if err != nil {
		return nil, err
	}
	if s.state != slotOpen {
		return nil, ErrNotOpen
	}
	return s, nil
}

// Close stops the transfers of h and frees its slot. Data in flight is
// lost. Closing a free slot does nothing.
func (t *Table) Close(h Handle) error {
	s, err := t.slot(h)
	if err != nil {
		return err
	}
	if s.state == slotOpen {
		glog.V(2).Infof("uart%d: close handle %d", s.dev, h)
	}
	s.close()
	return nil
}

// Read copies the bytes received since the previous Read into dst and
// returns their count. dst must hold at least BufferSize bytes.
func (t *Table) Read(h Handle, dst []byte) (int, error) {
	s, err := t.openSlot(h)
	if err != nil {
		return 0, err
	}
	return s.read(dst)
}

// Write starts sending src and returns the number of bytes accepted.
// It returns 0 while the previous transmission is still active, and
// accepts at most BufferSize bytes.
func (t *Table) Write(h Handle, src []byte) (int, error) {
	s, err := t.openSlot(h)
	if err != nil {
		return 0, err
	}
	return s.write(src), nil
}

// Status returns a snapshot of slot h.
func (t *Table) Status(h Handle) (PortStatus, error) {
	s, err := t.slot(h)
	if err != nil {
		return PortStatus{}, err
	}
	st := PortStatus{
		Open:     s.state == slotOpen,
		Overruns: s.ring.overruns,
		Lost:     s.ring.lost,
	}
	if st.Open {
		st.Device, st.Baud = s.dev, s.baud
		st.ReadIndex = s.ring.readIdx
		st.TxBusy = s.tx.Active()
	}
	return st, nil
}
