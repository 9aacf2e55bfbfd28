package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/bridge"
	"github.com/robotalks/uartdma/pkg/env"
	fx "github.com/robotalks/uartdma/pkg/framework"
	"github.com/robotalks/uartdma/pkg/mqtt"
	"github.com/robotalks/uartdma/pkg/sim"
	"github.com/robotalks/uartdma/pkg/uart"
)

var loopback bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&loopback, "loopback", loopback, "Connect the simulated lines in loopback.")
}

func main() {
	flag.Parse()
	conf := env.NewConfig()
	node := conf.NodeName()

	opts, prefix, err := mqtt.ClientOptionsFromURL(conf.BrokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	if opts.ClientID == "" {
		opts.SetClientID("uartbridge-" + node)
	}
	q := mqtt.NewQueue(opts, prefix)
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	board := sim.NewBoard(conf.Devices...)
	board.Interval = conf.Interval
	table := uart.NewTable(board, conf.TableConfig())
	broker := &bridge.QueueBroker{Queue: q}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("board", fx.RunFunc(board.Run)))
	for _, dev := range conf.Devices {
		if loopback {
			board.Attach(dev, sim.Loopback)
		}
		port, err := uart.OpenPort(table, dev, uint32(conf.Baud))
		if err != nil {
			log.Fatalf("open uart%d: %v", dev, err)
		}
		b := bridge.New(fmt.Sprintf("%s/uart%d", node, dev), port, broker)
		b.Interval = conf.Interval
		glog.Infof("bridging uart%d on %s%s", dev, prefix, b.Name)
		runner.Go(fx.NamedRun(b.String(), b))
	}
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
