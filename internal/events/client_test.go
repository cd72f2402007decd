package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/model"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeConn struct {
	mu        sync.Mutex
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	written   [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, frame model.EventFrame) {
	t.Helper()
	b, err := json.Marshal(frame)
	require.NoError(t, err)
	c.frames <- b
}

func (c *fakeConn) writtenFrames(t *testing.T) []model.EventFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventFrame, 0, len(c.written))
	for _, raw := range c.written {
		var f model.EventFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

type scriptedDialer struct {
	mu         sync.Mutex
	failures   int
	conns      chan *fakeConn
	dials      int
	lastHeader http.Header
}

func (d *scriptedDialer) dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.lastHeader = header
	fail := d.failures > 0
	if fail {
		d.failures--
	}
	d.mu.Unlock()
	if fail {
		return nil, errors.New("dial refused")
	}
	select {
	case c := <-d.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

func staticTokens(ctx context.Context) (string, error) { return "tok-123", nil }

func newTestClient(d *scriptedDialer, clock *fakeClock) *Client {
	return NewClient(Options{
		URL:      "ws://ws.localhost/agent",
		Tokens:   staticTokens,
		Backoff:  NewReconnectBackoff(10*time.Millisecond, 40*time.Millisecond, 0),
		Activity: activity.NewLog(100),
		Dialer:   d.dial,
		Clock:    clock,
	})
}

func TestConnectRetriesWithGrowingBackoff(t *testing.T) {
	dialer := &scriptedDialer{failures: 4, conns: make(chan *fakeConn, 1)}
	clock := &fakeClock{}
	c := newTestClient(dialer, clock)
	defer c.Close()

	conn := newFakeConn()
	dialer.conns <- conn

	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	delays := clock.recorded()
	require.Len(t, delays, 4)
	require.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond,
	}, delays)
}

func TestReconnectTransparency(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 4)}
	clock := &fakeClock{}
	c := newTestClient(dialer, clock)
	defer c.Close()

	received := make(chan model.OrderCreated, 16)
	c.OnOrderCreated(func(ev model.OrderCreated) { received <- ev })

	conn1 := newFakeConn()
	dialer.conns <- conn1
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	conn1.push(t, orderFrame(t, 1, "A-1"))
	require.Equal(t, int64(1), (<-received).OrderID)

	// Drop the link three times; the subscriber comes back each time.
	for i := 2; i <= 4; i++ {
		next := newFakeConn()
		dialer.conns <- next
		conn1.Close()
		require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

		next.push(t, orderFrame(t, int64(i), "A-x"))
		require.Equal(t, int64(i), (<-received).OrderID)
		conn1 = next
	}

	require.GreaterOrEqual(t, dialer.dialCount(), 4)
}

func TestTokenSentOnEveryDial(t *testing.T) {
	dialer := &scriptedDialer{failures: 1, conns: make(chan *fakeConn, 1)}
	clock := &fakeClock{}
	c := newTestClient(dialer, clock)
	defer c.Close()

	dialer.conns <- newFakeConn()
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	require.Equal(t, "Bearer tok-123", dialer.lastHeader.Get("Authorization"))
}

func TestSubscribeFrameSentAfterDial(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	c := newTestClient(dialer, &fakeClock{})
	defer c.Close()

	conn := newFakeConn()
	dialer.conns <- conn
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	frames := conn.writtenFrames(t)
	require.NotEmpty(t, frames)
	require.Equal(t, model.MessageTypeSubscribe, frames[0].Type)
}

func TestPingAnsweredWithPong(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	c := newTestClient(dialer, &fakeClock{})
	defer c.Close()

	conn := newFakeConn()
	dialer.conns <- conn
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	conn.push(t, model.EventFrame{Type: model.MessageTypePing})
	require.Eventually(t, func() bool {
		for _, f := range conn.writtenFrames(t) {
			if f.Type == model.MessageTypePong {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestHandlersFireInRegistrationOrderAndOffRemoves(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	c := newTestClient(dialer, &fakeClock{})
	defer c.Close()

	var mu sync.Mutex
	var calls []string
	first := c.OnOrderCreated(func(model.OrderCreated) {
		mu.Lock()
		calls = append(calls, "first")
		mu.Unlock()
	})
	done := make(chan struct{}, 8)
	c.OnOrderCreated(func(model.OrderCreated) {
		mu.Lock()
		calls = append(calls, "second")
		mu.Unlock()
		done <- struct{}{}
	})

	conn := newFakeConn()
	dialer.conns <- conn
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	conn.push(t, orderFrame(t, 7, "A-7"))
	<-done
	mu.Lock()
	require.Equal(t, []string{"first", "second"}, calls)
	mu.Unlock()

	c.Off(first)
	conn.push(t, orderFrame(t, 8, "A-8"))
	<-done
	mu.Lock()
	require.Equal(t, []string{"first", "second", "second"}, calls)
	mu.Unlock()
}

func TestEachDeliveryDispatchedOnce(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	c := newTestClient(dialer, &fakeClock{})
	defer c.Close()

	received := make(chan model.OrderCreated, 16)
	c.OnOrderCreated(func(ev model.OrderCreated) { received <- ev })

	conn := newFakeConn()
	dialer.conns <- conn
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	conn.push(t, orderFrame(t, 1, "A-1"))
	conn.push(t, orderFrame(t, 2, "A-2"))

	require.Equal(t, int64(1), (<-received).OrderID)
	require.Equal(t, int64(2), (<-received).OrderID)
	select {
	case ev := <-received:
		t.Fatalf("unexpected duplicate delivery: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSecondConnectFails(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	c := newTestClient(dialer, &fakeClock{})
	defer c.Close()

	dialer.conns <- newFakeConn()
	require.NoError(t, c.Connect(context.Background()))
	require.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyStarted)
}

func TestCloseDuringLateDialCompletion(t *testing.T) {
	// The dial only hands the connection over after Close has already
	// cancelled the supervisor; the client must still close it and exit.
	release := make(chan struct{})
	conn := newFakeConn()
	c := NewClient(Options{
		URL:    "ws://ws.localhost/agent",
		Tokens: staticTokens,
		Dialer: func(ctx context.Context, url string, header http.Header) (Conn, error) {
			<-release
			return conn, nil
		},
		Clock:    &fakeClock{},
		Backoff:  NewReconnectBackoff(10*time.Millisecond, 40*time.Millisecond, 0),
		Activity: activity.NewLog(100),
	})
	require.NoError(t, c.Connect(context.Background()))

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after a dial completed post-cancellation")
	}
	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("late connection was never closed")
	}
	require.False(t, c.IsConnected())
}

func TestServerErrorFrameLoggedAndSkipped(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	act := activity.NewLog(100)
	c := NewClient(Options{
		URL:      "ws://ws.localhost/agent",
		Tokens:   staticTokens,
		Backoff:  NewReconnectBackoff(10*time.Millisecond, 40*time.Millisecond, 0),
		Activity: act,
		Dialer:   dialer.dial,
		Clock:    &fakeClock{},
	})
	defer c.Close()

	received := make(chan model.OrderCreated, 4)
	c.OnOrderCreated(func(ev model.OrderCreated) { received <- ev })

	conn := newFakeConn()
	dialer.conns <- conn
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	conn.push(t, model.EventFrame{Type: model.MessageTypeError, Error: "subscription rejected"})
	conn.push(t, orderFrame(t, 5, "A-5"))

	// The error frame is surfaced but does not drop the subscription.
	require.Equal(t, int64(5), (<-received).OrderID)
	found := false
	for _, e := range act.Snapshot() {
		if e.Severity == activity.SeverityWarning && strings.Contains(e.Message, "subscription rejected") {
			found = true
		}
	}
	require.True(t, found, "expected a warning for the server error frame")
}

func TestCloseStopsClient(t *testing.T) {
	dialer := &scriptedDialer{conns: make(chan *fakeConn, 1)}
	c := newTestClient(dialer, &fakeClock{})

	dialer.conns <- newFakeConn()
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	require.False(t, c.IsConnected())
}

func orderFrame(t *testing.T, id int64, number string) model.EventFrame {
	t.Helper()
	payload, err := json.Marshal(model.OrderCreated{OrderID: id, OrderNumber: number})
	require.NoError(t, err)
	return model.EventFrame{Type: model.MessageTypeOrderCreated, Payload: payload}
}
