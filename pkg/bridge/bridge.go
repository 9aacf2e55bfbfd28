// Package bridge forwards serial traffic to MQTT topics.
//
// For a bridge named NAME, bytes received on the port are published to
// NAME/rx and payloads published to NAME/tx are written to the port.
package bridge

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/uartdma/pkg/framework"
	"github.com/robotalks/uartdma/pkg/mqtt"
	"github.com/robotalks/uartdma/pkg/uart"
)

// Port is the subset of uart.Port used by Bridge.
type Port interface {
	Read(dst []byte) (int, error)
	Write(src []byte) (int, error)
	BufferSize() int
}

// Broker is the message transport.
type Broker interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, fn func(payload []byte)) (io.Closer, error)
}

// DefaultQueueLen is the number of tx payloads buffered before dropping.
const DefaultQueueLen = 16

// Stats are the counters of a Bridge.
type Stats struct {
	RxBytes  uint64
	TxBytes  uint64
	Dropped  uint64
	Overruns uint64
}

// Bridge pumps one port. Run is the only goroutine touching the port.
type Bridge struct {
	stats Stats // first for 64-bit atomic alignment

	Name     string
	Port     Port
	Broker   Broker
	Interval time.Duration

	sendCh  chan []byte
	pending []byte
	buf     []byte
}

// New creates a Bridge.
func New(name string, port Port, broker Broker) *Bridge {
	return &Bridge{
		Name:     name,
		Port:     port,
		Broker:   broker,
		Interval: time.Millisecond,
		sendCh:   make(chan []byte, DefaultQueueLen),
		buf:      make([]byte, port.BufferSize()),
	}
}

// RxTopic is where received bytes are published.
func (b *Bridge) RxTopic() string {
	return b.Name + "/rx"
}

// TxTopic is where bytes to send are subscribed.
func (b *Bridge) TxTopic() string {
	return b.Name + "/tx"
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		RxBytes:  atomic.LoadUint64(&b.stats.RxBytes),
		TxBytes:  atomic.LoadUint64(&b.stats.TxBytes),
		Dropped:  atomic.LoadUint64(&b.stats.Dropped),
		Overruns: atomic.LoadUint64(&b.stats.Overruns),
	}
}

// String implements fmt.Stringer.
func (b *Bridge) String() string {
	return b.Name
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.Broker.Subscribe(b.TxTopic(), b.enqueue)
	if err != nil {
		return err
	}
	defer sub.Close()
	glog.Infof("bridge %s: forwarding %s <-> %s", b.Name, b.RxTopic(), b.TxTopic())
	return fx.Every(b.Interval, b.pump).Run(ctx)
}

func (b *Bridge) enqueue(payload []byte) {
	p := append([]byte(nil), payload...)
	select {
	case b.sendCh <- p:
	default:
		atomic.AddUint64(&b.stats.Dropped, uint64(len(p)))
		glog.Warningf("bridge %s: tx queue full, %d bytes dropped", b.Name, len(p))
	}
}

// pump does one round of receive and transmit.
func (b *Bridge) pump(context.Context) error {
	n, err := b.Port.Read(b.buf)
	switch {
	case err == uart.ErrOverrun:
		atomic.AddUint64(&b.stats.Overruns, 1)
		glog.Warningf("bridge %s: receive overrun", b.Name)
	case err != nil:
		return err
	case n > 0:
		if err := b.Broker.Publish(b.RxTopic(), append([]byte(nil), b.buf[:n]...)); err != nil {
			glog.Errorf("bridge %s: publish: %v", b.Name, err)
		}
		atomic.AddUint64(&b.stats.RxBytes, uint64(n))
	}

	if len(b.pending) == 0 {
		select {
		case b.pending = <-b.sendCh:
		default:
		}
	}
	if len(b.pending) > 0 {
		n, err := b.Port.Write(b.pending)
		if err != nil {
			return err
		}
		b.pending = b.pending[n:]
		atomic.AddUint64(&b.stats.TxBytes, uint64(n))
	}
	return nil
}

// QueueBroker adapts mqtt.Queue to Broker.
type QueueBroker struct {
	Queue *mqtt.Queue
}

// Publish implements Broker.
func (q *QueueBroker) Publish(topic string, payload []byte) error {
	token := q.Queue.Pub(topic, payload)
	token.Wait()
	return token.Error()
}

// Subscribe implements Broker.
func (q *QueueBroker) Subscribe(topic string, fn func([]byte)) (io.Closer, error) {
	sub := q.Queue.Sub(topic, func(_ string, payload []byte) { fn(payload) })
	sub.Token.Wait()
	if err := sub.Token.Error(); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}
