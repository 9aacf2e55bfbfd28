package regbus

import (
	"bytes"
	"sync"

	"github.com/golang/glog"
)

// Device answers read requests from a register file. It satisfies
// sim.Peer and tolerates requests split across exchanges.
type Device struct {
	lock      sync.Mutex
	registers map[uint16]uint32
	pending   []byte
	requests  int
}

// NewDevice creates a Device holding registers.
func NewDevice(registers map[uint16]uint32) *Device {
	regs := make(map[uint16]uint32, len(registers))
	for addr, val := range registers {
		regs[addr] = val
	}
	return &Device{registers: regs}
}

// Set stores value in register addr.
func (d *Device) Set(addr uint16, value uint32) {
	d.lock.Lock()
	d.registers[addr] = value
	d.lock.Unlock()
}

// Requests returns the number of valid requests answered.
func (d *Device) Requests() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.requests
}

// Exchange consumes request bytes and returns the responses.
func (d *Device) Exchange(sent []byte) []byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.pending = append(d.pending, sent...)
	var out []byte
	for {
		if skip := bytes.IndexByte(d.pending, Sync); skip < 0 {
			d.pending = d.pending[:0]
			break
		} else if skip > 0 {
			glog.V(2).Infof("regbus: skipped %d bytes", skip)
			d.pending = d.pending[skip:]
		}
		if len(d.pending) < RequestLen {
			break
		}
		addr, err := ParseRequest(d.pending[:RequestLen])
		if err != nil {
			// resync on the next sync byte
			d.pending = d.pending[1:]
			continue
		}
		d.pending = d.pending[RequestLen:]
		d.requests++
		out = append(out, ReadResponse(addr, d.registers[addr])...)
	}
	return out
}
