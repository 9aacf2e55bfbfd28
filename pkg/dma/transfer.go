// Package dma describes DMA transfers and the channel contract
// peripheral drivers rely on.
package dma

import "fmt"

// Mode selects how a channel behaves when a transfer reaches its count.
type Mode int

// Transfer modes.
const (
	// OneShot stops the channel after Count elements.
	OneShot Mode = iota
	// Circular restarts at the beginning of the buffer indefinitely.
	Circular
)

func (m Mode) String() string {
	switch m {
	case OneShot:
		return "oneshot"
	case Circular:
		return "circular"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Transfer describes one DMA operation. A Transfer is handed to a
// Channel by value and is not modified afterwards.
type Transfer struct {
	Width  int // bytes per element
	Count  int // elements
	Buffer *Buffer
	Mode   Mode
}

// NewCircular creates a byte-wide circular transfer spanning buf.
func NewCircular(buf *Buffer) Transfer {
	return Transfer{Width: 1, Count: buf.Len(), Buffer: buf, Mode: Circular}
}

// NewOneShot creates a byte-wide one-shot transfer of the first n bytes of buf.
func NewOneShot(buf *Buffer, n int) Transfer {
	return Transfer{Width: 1, Count: n, Buffer: buf, Mode: OneShot}
}

// Bytes returns the number of bytes covered by the transfer.
func (t Transfer) Bytes() int {
	return t.Width * t.Count
}

// Validate checks the transfer fits into its buffer.
func (t Transfer) Validate() error {
	if t.Width <= 0 || t.Count < 0 {
		return fmt.Errorf("invalid transfer geometry %dx%d", t.Count, t.Width)
	}
	if t.Buffer == nil {
		return fmt.Errorf("transfer without buffer")
	}
	if t.Bytes() > t.Buffer.Len() {
		return fmt.Errorf("transfer of %d bytes exceeds buffer of %d", t.Bytes(), t.Buffer.Len())
	}
	return nil
}

// Channel is a DMA channel bound to one request line.
type Channel interface {
	// Init claims channel id and routes request line rq to it.
	Init(id, rq int) bool
	// Arm starts t on the channel, replacing any previous transfer.
	Arm(t Transfer)
	// Remaining returns the elements left until the current lap ends.
	Remaining() int
	// Active reports whether a transfer is in progress.
	Active() bool
	// Disable stops the channel.
	Disable()
}

// Progress is implemented by channels exposing the total number of
// bytes moved since the current transfer was armed. For circular
// transfers the counter keeps growing across laps.
type Progress interface {
	Transferred() uint64
}
