package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartdma/pkg/sim"
	"github.com/robotalks/uartdma/pkg/uart"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fakeBroker struct {
	lock      sync.Mutex
	published map[string][][]byte
	handlers  map[string]func([]byte)
	subErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		published: make(map[string][][]byte),
		handlers:  make(map[string]func([]byte)),
	}
}

func (b *fakeBroker) Publish(topic string, payload []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

func (b *fakeBroker) Subscribe(topic string, fn func([]byte)) (io.Closer, error) {
	if b.subErr != nil {
		return nil, b.subErr
	}
	b.lock.Lock()
	b.handlers[topic] = fn
	b.lock.Unlock()
	return nopCloser{}, nil
}

func (b *fakeBroker) send(topic string, payload []byte) {
	b.lock.Lock()
	fn := b.handlers[topic]
	b.lock.Unlock()
	fn(payload)
}

func (b *fakeBroker) received(topic string) []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	var all []byte
	for _, p := range b.published[topic] {
		all = append(all, p...)
	}
	return all
}

type bridgeTestEnv struct {
	t      *testing.T
	board  *sim.Board
	broker *fakeBroker
	bridge *Bridge
}

func newBridgeTestEnv(t *testing.T) *bridgeTestEnv {
	board := sim.NewBoard(5)
	board.Attach(5, sim.Loopback)
	port, err := uart.OpenPort(uart.NewTable(board, uart.Config{}), 5, 3000000)
	require.NoError(t, err)
	broker := newFakeBroker()
	return &bridgeTestEnv{
		t:      t,
		board:  board,
		broker: broker,
		bridge: New("uart5", port, broker),
	}
}

func (e *bridgeTestEnv) subscribe() {
	_, err := e.broker.Subscribe(e.bridge.TxTopic(), e.bridge.enqueue)
	require.NoError(e.t, err)
}

func (e *bridgeTestEnv) pump(times int) {
	for i := 0; i < times; i++ {
		require.NoError(e.t, e.bridge.pump(context.Background()))
		e.board.Step()
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	env := newBridgeTestEnv(t)
	env.subscribe()
	env.broker.send("uart5/tx", []byte("hello"))
	env.pump(2)
	require.Equal(t, "hello", string(env.broker.received("uart5/rx")))
	st := env.bridge.Stats()
	require.Equal(t, uint64(5), st.TxBytes)
	require.Equal(t, uint64(5), st.RxBytes)
}

func TestBridgeRetriesBusyTransmitter(t *testing.T) {
	env := newBridgeTestEnv(t)
	env.board.Chunk = 3
	env.subscribe()
	env.broker.send("uart5/tx", []byte("0123456789"))
	env.broker.send("uart5/tx", []byte("abc"))
	env.pump(10)
	require.Equal(t, "0123456789abc", string(env.broker.received("uart5/rx")))
}

func TestBridgeTruncatedWriteContinues(t *testing.T) {
	env := newBridgeTestEnv(t)
	env.subscribe()
	big := make([]byte, 1500)
	for i := range big {
		big[i] = byte(i)
	}
	env.broker.send("uart5/tx", big)
	env.pump(4)
	require.Equal(t, big, env.broker.received("uart5/rx"))
}

func TestBridgeDropsWhenQueueFull(t *testing.T) {
	env := newBridgeTestEnv(t)
	env.subscribe()
	for i := 0; i < DefaultQueueLen+2; i++ {
		env.broker.send("uart5/tx", []byte{byte(i)})
	}
	require.Equal(t, uint64(2), env.bridge.Stats().Dropped)
}

func TestBridgeCountsOverruns(t *testing.T) {
	env := newBridgeTestEnv(t)
	env.board.Inject(5, make([]byte, 3000))
	env.pump(1)
	require.Equal(t, uint64(1), env.bridge.Stats().Overruns)
	require.Empty(t, env.broker.received("uart5/rx"))
}

func TestBridgeRun(t *testing.T) {
	env := newBridgeTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.board.Run(ctx)
	done := make(chan error, 1)
	go func() { done <- env.bridge.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		env.broker.lock.Lock()
		fn := env.broker.handlers["uart5/tx"]
		env.broker.lock.Unlock()
		if fn != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	env.broker.send("uart5/tx", []byte("ping"))
	for string(env.broker.received("uart5/rx")) != "ping" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, "ping", string(env.broker.received("uart5/rx")))
	cancel()
	require.Equal(t, context.Canceled, <-done)
}

func TestBridgeSubscribeError(t *testing.T) {
	env := newBridgeTestEnv(t)
	env.broker.subErr = errors.New("offline")
	require.Equal(t, env.broker.subErr, env.bridge.Run(context.Background()))
}
