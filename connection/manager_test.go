package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/types"
)

type fakeConn struct {
	mu       sync.Mutex
	messages chan []byte
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{messages: make(chan []byte, 8)}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	msg, ok := <-c.messages
	if !ok {
		return nil, errors.New("fake conn closed")
	}
	return msg, nil
}

func (c *fakeConn) WriteMessage(data []byte) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.messages)
	}
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func TestManagerOpensAndDeliversMessages(t *testing.T) {
	dialer := &fakeDialer{}
	var received [][]byte
	var mu sync.Mutex

	opened := make(chan struct{}, 1)
	cfg := DefaultConfig("ws://example")
	cfg.Clock = clock.NewDefaultClock()

	m := New(cfg, dialer, func(c Conn) {
		opened <- struct{}{}
	}, func(data []byte) {
		mu.Lock()
		received = append(received, data)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("connection never opened")
	}
	require.Equal(t, StateOpen, m.State())

	dialer.mu.Lock()
	conn := dialer.conns[0]
	dialer.mu.Unlock()
	conn.messages <- []byte(`{"event":"update"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestManagerFallsBackToPollingAfterRepeatedFailures(t *testing.T) {
	dialer := &fakeDialer{failures: 10}
	var pollCount int32

	cfg := DefaultConfig("ws://example")
	cfg.Clock = clock.NewDefaultClock()
	cfg.ReconnectDelay = time.Millisecond
	cfg.MaxReconnectDelay = 5 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxConsecutiveFailures = 2

	m := New(cfg, dialer, nil, nil, func(ctx context.Context) error {
		atomic.AddInt32(&pollCount, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.State() == StatePollingFallback
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&pollCount) >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollAllRunsConcurrentlyAndReturnsFirstError(t *testing.T) {
	ids := []types.SwapId{"a", "b", "c"}
	var count int32

	err := PollAll(context.Background(), ids, func(ctx context.Context, id types.SwapId) error {
		atomic.AddInt32(&count, 1)
		if id == "b" {
			return errors.New("boom")
		}
		return nil
	})

	require.Error(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&count))
}
