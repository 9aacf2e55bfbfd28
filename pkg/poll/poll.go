// Package poll waits for serial data by repeatedly reading a port.
package poll

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	fx "github.com/robotalks/uartdma/pkg/framework"
)

// Port is the receive side of a uart.Port.
type Port interface {
	Read(dst []byte) (int, error)
	BufferSize() int
}

// ErrTimeout indicates the expected bytes did not arrive in time.
var ErrTimeout = errors.New("receive timeout")

// ExcessError reports more bytes than expected.
type ExcessError struct {
	Expected int
	Received int
}

// Error implements error.
func (e *ExcessError) Error() string {
	return fmt.Sprintf("more bytes received than expected (%d of %d)", e.Received, e.Expected)
}

// Receiver collects responses from a Port.
type Receiver struct {
	Port    Port
	Timeout time.Duration
	// Clock defaults to the system time.
	Clock fx.TimeSource

	scratch []byte
}

// NewReceiver creates a Receiver on p.
func NewReceiver(p Port, timeout time.Duration) *Receiver {
	return &Receiver{Port: p, Timeout: timeout}
}

func (r *Receiver) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Time()
	}
	return fx.SystemTime.Time()
}

func (r *Receiver) buffer() []byte {
	if size := r.Port.BufferSize(); len(r.scratch) < size {
		r.scratch = make([]byte, size)
	}
	return r.scratch
}

// Discard drops everything received so far.
func (r *Receiver) Discard() (int, error) {
	return r.Port.Read(r.buffer())
}

// Wait reads until expected bytes arrived and returns them. The timeout
// counts from the call and is only checked when a read is empty.
func (r *Receiver) Wait(expected int) ([]byte, error) {
	buf := r.buffer()
	start := r.now()
	var got []byte
	for len(got) < expected {
		n, err := r.Port.Read(buf)
		if err != nil {
			return got, err
		}
		if n > 0 {
			got = append(got, buf[:n]...)
			continue
		}
		if r.now().Sub(start) > r.Timeout {
			return got, ErrTimeout
		}
		runtime.Gosched()
	}
	if len(got) > expected {
		return got, &ExcessError{Expected: expected, Received: len(got)}
	}
	return got, nil
}
