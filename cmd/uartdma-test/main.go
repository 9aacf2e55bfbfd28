package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/env"
	fx "github.com/robotalks/uartdma/pkg/framework"
	"github.com/robotalks/uartdma/pkg/regbus"
	"github.com/robotalks/uartdma/pkg/sim"
	"github.com/robotalks/uartdma/pkg/uart"
)

var (
	count int

	expected = map[uint16]uint32{
		0: 0x87654321,
		1: 0x00005ECA,
	}
)

func init() {
	env.SetupFlags()
	flag.IntVar(&count, "count", count, "Number of request rounds, 0 repeats until interrupted.")
}

type tester struct {
	client *regbus.Client
	rounds int
}

func (t *tester) Run(ctx context.Context) error {
	rspcnt := 0
	last := time.Now()
	for round := 0; t.rounds == 0 || round < t.rounds; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for addr := uint16(0); addr < 2; addr++ {
			val, err := t.client.ReadReg(addr)
			if err != nil {
				return fmt.Errorf("rq %d: %w", addr+1, err)
			}
			if val != expected[addr] {
				return fmt.Errorf("rq %d: invalid response value 0x%08X", addr+1, val)
			}
			rspcnt++
		}
		if now := time.Now(); now.Sub(last) >= time.Second {
			fmt.Printf("rspcnt = %d\n", rspcnt)
			last = now
		}
	}
	fmt.Printf("rspcnt = %d\n", rspcnt)
	return nil
}

func main() {
	flag.Parse()
	conf := env.NewConfig()
	dev := conf.Devices[0]

	board := sim.NewBoard(conf.Devices...)
	board.Interval = conf.Interval
	board.Attach(dev, regbus.NewDevice(expected))

	fmt.Printf("Opening uart%d with %d bit/s ...\n", dev, conf.Baud)
	port, err := uart.OpenPort(uart.NewTable(board, conf.TableConfig()), dev, uint32(conf.Baud))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening uart: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("uart opened.")

	client := regbus.NewClient(port, conf.Timeout)
	if n, err := client.Receiver().Discard(); err != nil {
		glog.Warningf("discard: %v", err)
	} else if n > 0 {
		glog.V(2).Infof("discarded %d stale bytes", n)
	}

	fmt.Println("Repeating requests...")
	runner := fx.NewRunner().HandleSignals()
	ctx, stop := context.WithCancel(runner.Context)
	runner.Context = ctx
	err = runner.Go(
		fx.NamedRun("board", fx.RunFunc(board.Run)),
		fx.NamedRun("test", fx.RunFunc(func(ctx context.Context) error {
			defer stop()
			return (&tester{client: client, rounds: count}).Run(ctx)
		})),
	).Wait()
	port.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
