package sh

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/uartdma/pkg/regbus"
	"github.com/robotalks/uartdma/pkg/sim"
	"github.com/robotalks/uartdma/pkg/uart"
)

// Status is the printable state of a slot.
type Status struct {
	Handle uart.Handle `json:"handle"`
	uart.PortStatus
}

func (s Status) String() string {
	if !s.Open {
		return fmt.Sprintf("[%d] free", s.Handle)
	}
	busy := ""
	if s.TxBusy {
		busy = " tx-busy"
	}
	return fmt.Sprintf("[%d] uart%d %d baud rx@%d overruns=%d lost=%d%s",
		s.Handle, s.Device, s.Baud, s.ReadIndex, s.Overruns, s.Lost, busy)
}

// Open opens dev, with the configured baud rate if baud is 0.
func (s *Shell) Open(dev int, baud uint32) (uart.Handle, error) {
	if baud == 0 {
		baud = uint32(s.Config.Baud)
	}
	h, err := s.Table.Open(dev, baud)
	if err != nil {
		return h, fmt.Errorf("open uart%d: %w", dev, err)
	}
	return h, nil
}

// ReadAll returns the bytes received on h.
func (s *Shell) ReadAll(h uart.Handle) ([]byte, error) {
	dst := make([]byte, s.Table.BufferSize())
	n, err := s.Table.Read(h, dst)
	return dst[:n], err
}

// Statuses returns the state of every slot.
func (s *Shell) Statuses() []Status {
	list := make([]Status, 0, s.Table.Cap())
	for n := 0; n < s.Table.Cap(); n++ {
		st, _ := s.Table.Status(uart.Handle(n))
		list = append(list, Status{Handle: uart.Handle(n), PortStatus: st})
	}
	return list
}

// Attach connects a named peer to dev: loopback or regbus.
func (s *Shell) Attach(dev int, kind string) error {
	switch kind {
	case "loopback", "echo":
		s.Board.Attach(dev, sim.Loopback)
	case "regbus":
		s.Board.Attach(dev, regbus.NewDevice(map[uint16]uint32{
			0: 0x87654321,
			1: 0x00005ECA,
		}))
	default:
		return fmt.Errorf("unknown peer %q", kind)
	}
	return nil
}

// ReadReg reads a register of the regbus peer behind h, stepping the
// board while waiting.
func (s *Shell) ReadReg(h uart.Handle, addr uint16) (uint32, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.Board.Step()
				time.Sleep(10 * time.Microsecond)
			}
		}
	}()
	return regbus.NewClient(uart.NewPort(s.Table, h), s.Config.Timeout).ReadReg(addr)
}

// FormatBytes renders p as hex followed by its printable characters.
func FormatBytes(p []byte) string {
	if len(p) == 0 {
		return "(empty)"
	}
	text := []byte(string(p))
	for i, b := range text {
		if b < 0x20 || b > 0x7e {
			text[i] = '.'
		}
	}
	return fmt.Sprintf("%d bytes: % X |%s|", len(p), p, text)
}

func intArg(c *ishell.Context, n int, name string) (int, bool) {
	if len(c.Args) <= n {
		c.Err(fmt.Errorf("%s expected", name))
		return 0, false
	}
	v, err := strconv.ParseInt(c.Args[n], 0, 32)
	if err != nil {
		c.Err(fmt.Errorf("invalid %s %q", name, c.Args[n]))
		return 0, false
	}
	return int(v), true
}

// payload joins args as text, or decodes them when prefixed with 0x.
func payload(args []string) ([]byte, error) {
	joined := strings.Join(args, " ")
	if strings.HasPrefix(joined, "0x") {
		return hex.DecodeString(strings.Replace(joined[2:], " ", "", -1))
	}
	return []byte(joined), nil
}

var (
	// OpenCmd opens a device.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "DEV [BAUD]",
		Func: func(c *ishell.Context) {
			dev, ok := intArg(c, 0, "device")
			if !ok {
				return
			}
			var baud int
			if len(c.Args) > 1 {
				if baud, ok = intArg(c, 1, "baud"); !ok {
					return
				}
			}
			h, err := ShellFrom(c).Open(dev, uint32(baud))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("handle %d\n", h)
		},
	}

	// CloseCmd closes a handle.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "HANDLE",
		Func: func(c *ishell.Context) {
			h, ok := intArg(c, 0, "handle")
			if !ok {
				return
			}
			if err := ShellFrom(c).Table.Close(uart.Handle(h)); err != nil {
				c.Err(err)
			}
		},
	}

	// ReadCmd prints received bytes.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "HANDLE",
		Func: func(c *ishell.Context) {
			h, ok := intArg(c, 0, "handle")
			if !ok {
				return
			}
			p, err := ShellFrom(c).ReadAll(uart.Handle(h))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(FormatBytes(p))
		},
	}

	// WriteCmd sends text or 0x prefixed hex.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "HANDLE TEXT|0xHEX",
		Func: func(c *ishell.Context) {
			h, ok := intArg(c, 0, "handle")
			if !ok {
				return
			}
			p, err := payload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			n, err := ShellFrom(c).Table.Write(uart.Handle(h), p)
			if err != nil {
				c.Err(err)
				return
			}
			if n == 0 && len(p) > 0 {
				c.Println("busy, try again")
				return
			}
			c.Printf("%d of %d bytes sent\n", n, len(p))
		},
	}

	// StatusCmd prints slot states.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			list := s.Statuses()
			if s.OutputJSON {
				s.Print(c, list)
				return
			}
			for _, st := range list {
				s.Print(c, st)
			}
		},
	}

	// InjectCmd delivers bytes on the receive line of a simulated device.
	InjectCmd = ishell.Cmd{
		Name: "inject",
		Help: "DEV TEXT|0xHEX",
		Func: func(c *ishell.Context) {
			dev, ok := intArg(c, 0, "device")
			if !ok {
				return
			}
			p, err := payload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d of %d bytes stored\n", ShellFrom(c).Board.Inject(dev, p), len(p))
		},
	}

	// DrainCmd prints the bytes transmitted by a simulated device.
	DrainCmd = ishell.Cmd{
		Name: "drain",
		Help: "DEV",
		Func: func(c *ishell.Context) {
			dev, ok := intArg(c, 0, "device")
			if !ok {
				return
			}
			c.Println(FormatBytes(ShellFrom(c).Board.Drain(dev, 0)))
		},
	}

	// AttachCmd connects a peer to a simulated device.
	AttachCmd = ishell.Cmd{
		Name: "attach",
		Help: "DEV loopback|regbus",
		Func: func(c *ishell.Context) {
			dev, ok := intArg(c, 0, "device")
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("peer expected"))
				return
			}
			if err := ShellFrom(c).Attach(dev, c.Args[1]); err != nil {
				c.Err(err)
			}
		},
	}

	// StepCmd advances the simulated lines.
	StepCmd = ishell.Cmd{
		Name: "step",
		Help: "[COUNT]",
		Func: func(c *ishell.Context) {
			count := 1
			if len(c.Args) > 0 {
				var ok bool
				if count, ok = intArg(c, 0, "count"); !ok {
					return
				}
			}
			for i := 0; i < count; i++ {
				ShellFrom(c).Board.Step()
			}
		},
	}

	// RegReadCmd reads a register from a regbus peer.
	RegReadCmd = ishell.Cmd{
		Name:    "regread",
		Aliases: []string{"rr"},
		Help:    "HANDLE ADDR",
		Func: func(c *ishell.Context) {
			h, ok := intArg(c, 0, "handle")
			if !ok {
				return
			}
			addr, ok := intArg(c, 1, "address")
			if !ok {
				return
			}
			val, err := ShellFrom(c).ReadReg(uart.Handle(h), uint16(addr))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("reg[%d] = 0x%08X\n", addr, val)
		},
	}
)

func init() {
	AddCmds(
		&OpenCmd,
		&CloseCmd,
		&ReadCmd,
		&WriteCmd,
		&StatusCmd,
		&InjectCmd,
		&DrainCmd,
		&AttachCmd,
		&StepCmd,
		&RegReadCmd,
	)
}
