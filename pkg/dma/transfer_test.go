package dma

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestTransferValidate(t *testing.T) {
	buf := WrapBuffer(make([]byte, 16))
	testCases := []struct {
		name string
		xfer Transfer
		ok   bool
	}{
		{"circular", NewCircular(buf), true},
		{"oneshot", NewOneShot(buf, 5), true},
		{"words", Transfer{Width: 4, Count: 4, Buffer: buf}, true},
		{"too long", Transfer{Width: 4, Count: 5, Buffer: buf}, false},
		{"no buffer", Transfer{Width: 1, Count: 1}, false},
		{"zero width", Transfer{Count: 1, Buffer: buf}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.xfer.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCircularSpansBuffer(t *testing.T) {
	buf := WrapBuffer(make([]byte, 1024))
	xfer := NewCircular(buf)
	require.Equal(t, Circular, xfer.Mode)
	require.Equal(t, 1024, xfer.Bytes())
	require.Equal(t, "circular", xfer.Mode.String())
}

func TestRegionAllocate(t *testing.T) {
	r := NewRegion(128)
	a, err := r.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, 10, a.Len())
	b, err := r.Allocate(10)
	require.NoError(t, err)
	require.Zero(t, addr(a)%32)
	require.Zero(t, addr(b)%32)
	require.Equal(t, addr(a)+32, addr(b))
	require.True(t, r.Used() >= 42 && r.Used() < 42+32)

	// buffers must not alias
	a.Bytes()[0] = 1
	require.Equal(t, byte(0), b.Bytes()[0])

	_, err = r.Allocate(100)
	require.Equal(t, ErrOutOfMemory, err)
	_, err = r.Allocate(0)
	require.Error(t, err)
	_, err = NewRegion(0).Allocate(1)
	require.Equal(t, ErrOutOfMemory, err)
}

func TestRegionAlign(t *testing.T) {
	r := NewRegion(4096)
	r.Align = 256
	for i := 0; i < 3; i++ {
		buf, err := r.Allocate(100)
		require.NoError(t, err)
		require.Zero(t, addr(buf)%256)
	}
}

func addr(b *Buffer) uintptr {
	return uintptr(unsafe.Pointer(&b.Bytes()[0]))
}
