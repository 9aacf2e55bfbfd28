package uart

import (
	"errors"
	"fmt"
)

// Error is a driver error. Its value is the negative code reported by
// the integer interface.
type Error int

// Driver errors.
const (
	ErrInvalidHandle     Error = -1
	ErrAlreadyOpen       Error = -2
	ErrUnsupportedDevice Error = -3
	ErrHardwareInit      Error = -4
	ErrDMAInit           Error = -5
	ErrBufferTooSmall    Error = -6
	// ErrOverrun reports unread receive data was overwritten. The
	// cursor is moved to the current write position.
	ErrOverrun    Error = -7
	ErrNoCapacity Error = -8
	// ErrNotOpen is returned for valid handles of closed slots.
	ErrNotOpen Error = -9
)

var errorText = map[Error]string{
	ErrInvalidHandle:     "invalid handle",
	ErrAlreadyOpen:       "device already open",
	ErrUnsupportedDevice: "unsupported device",
	ErrHardwareInit:      "serial engine init failed",
	ErrDMAInit:           "dma init failed",
	ErrBufferTooSmall:    "destination buffer too small",
	ErrOverrun:           "receive overrun",
	ErrNoCapacity:        "no free port slot",
	ErrNotOpen:           "port not open",
}

// Error implements error.
func (e Error) Error() string {
	if msg, ok := errorText[e]; ok {
		return msg
	}
	return fmt.Sprintf("uart error %d", int(e))
}

// Code maps the result of an operation to the integer form: 0 for nil,
// the negative code for driver errors. Errors from elsewhere map to
// ErrHardwareInit.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e Error
	if errors.As(err, &e) {
		return int(e)
	}
	return int(ErrHardwareInit)
}
