// Package sim simulates the serial and DMA hardware of a board so the
// uart driver runs without it.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/dma"
	fx "github.com/robotalks/uartdma/pkg/framework"
	"github.com/robotalks/uartdma/pkg/uart"
)

// Defaults of a Board.
const (
	DefaultChannels   = 16
	DefaultMemorySize = 64 << 10
)

// Peer is the device at the far end of a serial line.
type Peer interface {
	// Exchange receives the bytes sent to the peer and returns the
	// bytes it sends back.
	Exchange(sent []byte) []byte
}

// PeerFunc is the func form of Peer.
type PeerFunc func([]byte) []byte

// Exchange implements Peer.
func (f PeerFunc) Exchange(sent []byte) []byte {
	return f(sent)
}

// Loopback echoes everything sent.
var Loopback = PeerFunc(func(sent []byte) []byte { return sent })

// Board is a set of simulated serial devices and DMA channels. It
// implements uart.Hardware.
type Board struct {
	// Interval between steps of Run, zero steps continuously.
	Interval time.Duration
	// Chunk limits the bytes moved per direction and step, zero
	// moves everything pending.
	Chunk int

	lock        sync.Mutex
	channels    int
	devices     map[int]bool
	engines     map[int]*Engine
	claims      map[int]*Channel
	peers       map[int]Peer
	failSerial  map[int]bool
	failChannel map[int]bool
	failAlloc   bool
	memory      *dma.Region
}

// NewBoard creates a Board with the given serial devices present.
func NewBoard(devices ...int) *Board {
	b := &Board{
		channels:    DefaultChannels,
		devices:     make(map[int]bool),
		engines:     make(map[int]*Engine),
		claims:      make(map[int]*Channel),
		peers:       make(map[int]Peer),
		failSerial:  make(map[int]bool),
		failChannel: make(map[int]bool),
		memory:      dma.NewRegion(DefaultMemorySize),
	}
	for _, dev := range devices {
		b.devices[dev] = true
	}
	return b
}

// NewSerialEngine implements uart.Hardware.
func (b *Board) NewSerialEngine() uart.SerialEngine {
	return &Engine{board: b, dev: -1}
}

// NewChannel implements uart.Hardware.
func (b *Board) NewChannel() dma.Channel {
	return &Channel{board: b, id: -1}
}

// Allocate implements dma.Allocator.
func (b *Board) Allocate(size int) (*dma.Buffer, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.failAlloc {
		return nil, dma.ErrOutOfMemory
	}
	return b.memory.Allocate(size)
}

// FailSerialInit makes the serial init of dev fail.
func (b *Board) FailSerialInit(dev int, fail bool) {
	b.lock.Lock()
	b.failSerial[dev] = fail
	b.lock.Unlock()
}

// FailChannelInit makes the init of DMA channel id fail.
func (b *Board) FailChannelInit(id int, fail bool) {
	b.lock.Lock()
	b.failChannel[id] = fail
	b.lock.Unlock()
}

// FailAllocate makes DMA memory allocation fail.
func (b *Board) FailAllocate(fail bool) {
	b.lock.Lock()
	b.failAlloc = fail
	b.lock.Unlock()
}

// Attach connects peer to the line of dev.
func (b *Board) Attach(dev int, peer Peer) {
	b.lock.Lock()
	b.peers[dev] = peer
	b.lock.Unlock()
}

func (b *Board) claim(c *Channel, id int) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if id < 0 || id >= b.channels || b.failChannel[id] {
		return false
	}
	if owner := b.claims[id]; owner != nil && owner != c {
		return false
	}
	for cid, owner := range b.claims {
		if owner == c {
			delete(b.claims, cid)
		}
	}
	b.claims[id] = c
	return true
}

func (b *Board) release(c *Channel) {
	b.lock.Lock()
	defer b.lock.Unlock()
	owners := map[*Channel]bool{c: true}
	for _, e := range b.engines {
		if rx, tx := e.channels(); rx == c && tx != nil {
			owners[tx] = true
		}
	}
	for id, owner := range b.claims {
		if owners[owner] {
			delete(b.claims, id)
		}
	}
}

func (b *Board) register(e *Engine, dev int) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.devices[dev] || b.failSerial[dev] {
		return false
	}
	for d, owner := range b.engines {
		if owner == e {
			delete(b.engines, d)
		}
	}
	b.engines[dev] = e
	return true
}

func (b *Board) engine(dev int) *Engine {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.engines[dev]
}

// Inject delivers p on the receive line of dev and returns the bytes
// stored by DMA. Bytes arriving without an active receive transfer are
// lost.
func (b *Board) Inject(dev int, p []byte) int {
	if e := b.engine(dev); e != nil {
		if ch := e.channel(uart.Rx); ch != nil {
			return ch.fill(p)
		}
	}
	return 0
}

// Drain returns up to max bytes sent on dev, everything pending if
// max <= 0.
func (b *Board) Drain(dev, max int) []byte {
	if e := b.engine(dev); e != nil {
		if ch := e.channel(uart.Tx); ch != nil {
			return ch.drain(max)
		}
	}
	return nil
}

// Step moves pending bytes between every line and its peer.
func (b *Board) Step() {
	b.lock.Lock()
	peers := make(map[int]Peer, len(b.peers))
	for dev, peer := range b.peers {
		peers[dev] = peer
	}
	chunk := b.Chunk
	b.lock.Unlock()

	for dev, peer := range peers {
		sent := b.Drain(dev, chunk)
		if len(sent) == 0 {
			continue
		}
		if reply := peer.Exchange(sent); len(reply) > 0 {
			if n := b.Inject(dev, reply); n < len(reply) {
				glog.V(2).Infof("uart%d: %d reply bytes lost", dev, len(reply)-n)
			}
		}
	}
}

// Run steps the board until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	return fx.Every(b.Interval, func(context.Context) error {
		b.Step()
		return nil
	}).Run(ctx)
}

// Engine is a simulated serial engine.
type Engine struct {
	board *Board

	lock sync.Mutex
	dev  int
	baud uint32
	rx   *Channel
	tx   *Channel
}

// Init implements uart.SerialEngine.
func (e *Engine) Init(dev int, baud uint32) bool {
	if baud == 0 || !e.board.register(e, dev) {
		return false
	}
	e.lock.Lock()
	e.dev, e.baud = dev, baud
	e.lock.Unlock()
	return true
}

// BindDMA implements uart.SerialEngine. Only channels of the same
// board are connected.
func (e *Engine) BindDMA(d uart.Direction, ch dma.Channel) {
	c, _ := ch.(*Channel)
	e.lock.Lock()
	defer e.lock.Unlock()
	if d == uart.Tx {
		e.tx = c
	} else {
		e.rx = c
	}
}

func (e *Engine) channels() (rx, tx *Channel) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.rx, e.tx
}

// Baud returns the configured baud rate.
func (e *Engine) Baud() uint32 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.baud
}

func (e *Engine) channel(d uart.Direction) *Channel {
	e.lock.Lock()
	defer e.lock.Unlock()
	if d == uart.Tx {
		return e.tx
	}
	return e.rx
}
