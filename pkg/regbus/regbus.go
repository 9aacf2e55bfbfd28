// Package regbus implements the register read protocol of the serial
// test device: a 5-byte request answered by a 9-byte response carrying
// a little-endian 32-bit value.
//
//	request:  55 F2 addrLo addrHi chk
//	response: 55 F2 addrLo addrHi v0 v1 v2 v3 chk
//
// chk is 0xFF xor every byte between the sync byte and chk.
package regbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/robotalks/uartdma/pkg/poll"
)

// Frame constants.
const (
	Sync        byte = 0x55
	CmdRead     byte = 0xF2
	RequestLen       = 5
	ResponseLen      = 9
)

var (
	// ErrShortWrite indicates the port did not accept a whole request.
	ErrShortWrite = errors.New("request not accepted")
	// ErrChecksum indicates a corrupted frame.
	ErrChecksum = errors.New("checksum mismatch")
)

// FrameError reports an unexpected frame layout.
type FrameError struct {
	Frame []byte
}

// Error implements error.
func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame % X", e.Frame)
}

func checksum(p []byte) byte {
	sum := byte(0xFF)
	for _, b := range p {
		sum ^= b
	}
	return sum
}

// ReadRequest encodes a read of register addr.
func ReadRequest(addr uint16) []byte {
	req := []byte{Sync, CmdRead, byte(addr), byte(addr >> 8), 0}
	req[4] = checksum(req[1:4])
	return req
}

// ParseRequest decodes a read request.
func ParseRequest(p []byte) (uint16, error) {
	if len(p) != RequestLen || p[0] != Sync || p[1] != CmdRead {
		return 0, &FrameError{Frame: p}
	}
	if checksum(p[1:4]) != p[4] {
		return 0, ErrChecksum
	}
	return binary.LittleEndian.Uint16(p[2:4]), nil
}

// ReadResponse encodes the answer to a read of addr.
func ReadResponse(addr uint16, value uint32) []byte {
	rsp := make([]byte, ResponseLen)
	rsp[0], rsp[1] = Sync, CmdRead
	binary.LittleEndian.PutUint16(rsp[2:4], addr)
	binary.LittleEndian.PutUint32(rsp[4:8], value)
	rsp[8] = checksum(rsp[1:8])
	return rsp
}

// ParseResponse decodes a read response.
func ParseResponse(p []byte) (addr uint16, value uint32, err error) {
	if len(p) != ResponseLen || p[0] != Sync || p[1] != CmdRead {
		return 0, 0, &FrameError{Frame: p}
	}
	if checksum(p[1:8]) != p[8] {
		return 0, 0, ErrChecksum
	}
	return binary.LittleEndian.Uint16(p[2:4]), binary.LittleEndian.Uint32(p[4:8]), nil
}

// Port is the subset of uart.Port used by Client.
type Port interface {
	poll.Port
	Write(src []byte) (int, error)
}

// Client reads registers over a Port.
type Client struct {
	port Port
	recv *poll.Receiver
}

// NewClient creates a Client waiting at most timeout per response.
func NewClient(p Port, timeout time.Duration) *Client {
	return &Client{port: p, recv: poll.NewReceiver(p, timeout)}
}

// Receiver exposes the response receiver.
func (c *Client) Receiver() *poll.Receiver {
	return c.recv
}

// ReadReg reads register addr.
func (c *Client) ReadReg(addr uint16) (uint32, error) {
	n, err := c.port.Write(ReadRequest(addr))
	if err != nil {
		return 0, err
	}
	if n != RequestLen {
		return 0, ErrShortWrite
	}
	rsp, err := c.recv.Wait(ResponseLen)
	if err != nil {
		return 0, err
	}
	raddr, value, err := ParseResponse(rsp)
	if err != nil {
		return 0, err
	}
	if raddr != addr {
		return 0, fmt.Errorf("response for register %d, expected %d", raddr, addr)
	}
	return value, nil
}
