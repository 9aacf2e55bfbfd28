package sh

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartdma/pkg/env"
	"github.com/robotalks/uartdma/pkg/sim"
	"github.com/robotalks/uartdma/pkg/uart"
)

func newTestShell(t *testing.T) *Shell {
	conf := env.NewConfig()
	conf.Devices = env.DeviceList{4, 5}
	conf.Timeout = 100 * time.Millisecond
	board := sim.NewBoard(conf.Devices...)
	return &Shell{
		Config: conf,
		Board:  board,
		Table:  uart.NewTable(board, conf.TableConfig()),
	}
}

func TestOpenUsesConfiguredBaud(t *testing.T) {
	s := newTestShell(t)
	h, err := s.Open(5, 0)
	require.NoError(t, err)
	st, err := s.Table.Status(h)
	require.NoError(t, err)
	require.Equal(t, uint32(3000000), st.Baud)

	_, err = s.Open(5, 115200)
	require.True(t, errors.Is(err, uart.ErrAlreadyOpen))
	require.Contains(t, err.Error(), "uart5")

	// the board has no serial engine for uart7
	_, err = s.Open(7, 0)
	require.Equal(t, int(uart.ErrHardwareInit), uart.Code(err))
}

func TestReadAllAndStatuses(t *testing.T) {
	s := newTestShell(t)
	h, err := s.Open(4, 0)
	require.NoError(t, err)
	require.Equal(t, 5, s.Board.Inject(4, []byte("hello")))

	p, err := s.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), p)

	list := s.Statuses()
	require.Len(t, list, s.Table.Cap())
	require.True(t, list[int(h)].Open)
	require.Equal(t, 4, list[int(h)].Device)
	require.Equal(t, 5, list[int(h)].ReadIndex)
	require.Equal(t, "[1] free", list[1].String())
	require.Contains(t, list[int(h)].String(), "uart4 3000000 baud rx@5")
}

func TestAttach(t *testing.T) {
	s := newTestShell(t)
	h, err := s.Open(5, 0)
	require.NoError(t, err)
	require.NoError(t, s.Attach(5, "loopback"))
	require.Error(t, s.Attach(5, "modem"))

	n, err := s.Table.Write(h, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	s.Board.Step()
	p, err := s.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), p)
}

func TestReadReg(t *testing.T) {
	s := newTestShell(t)
	h, err := s.Open(5, 0)
	require.NoError(t, err)
	require.NoError(t, s.Attach(5, "regbus"))

	val, err := s.ReadReg(h, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x87654321), val)
	val, err = s.ReadReg(h, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(0x00005ECA), val)
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "(empty)", FormatBytes(nil))
	require.Equal(t, "3 bytes: 61 00 7A |a.z|", FormatBytes([]byte{'a', 0, 'z'}))
}

func TestPayload(t *testing.T) {
	testCases := []struct {
		name   string
		args   []string
		expect []byte
		ok     bool
	}{
		{"text", []string{"hello", "world"}, []byte("hello world"), true},
		{"hex", []string{"0x55", "F2"}, []byte{0x55, 0xF2}, true},
		{"bad hex", []string{"0x5"}, nil, false},
		{"empty", nil, []byte{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := payload(tc.args)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, p)
		})
	}
}
