package uart

import (
	"github.com/robotalks/uartdma/pkg/dma"
)

// Direction selects a data path of the serial engine.
type Direction int

// Data paths.
const (
	Rx Direction = iota
	Tx
)

func (d Direction) String() string {
	if d == Tx {
		return "tx"
	}
	return "rx"
}

// SerialEngine is the register level serial peripheral.
type SerialEngine interface {
	// Init configures device dev for baud and reports success.
	Init(dev int, baud uint32) bool
	// BindDMA routes the data path d through ch.
	BindDMA(d Direction, ch dma.Channel)
}

// Hardware provides the peripherals backing the slots of a Table.
// NewSerialEngine and NewChannel are called once per slot when the
// Table is created.
type Hardware interface {
	NewSerialEngine() SerialEngine
	NewChannel() dma.Channel
	dma.Allocator
}

// Channels are the DMA channels and request lines serving a device.
type Channels struct {
	TxChannel int
	TxRequest int
	RxChannel int
	RxRequest int
}

// DeviceMap maps device ids to their DMA routing.
type DeviceMap map[int]Channels

// DefaultDevices routes UART4 and UART5 of the BCM2711.
var DefaultDevices = DeviceMap{
	4: {TxChannel: 3, TxRequest: 30, RxChannel: 2, RxRequest: 31},
	5: {TxChannel: 5, TxRequest: 21, RxChannel: 4, RxRequest: 22},
}
