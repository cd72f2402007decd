package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/model"
)

var ErrAlreadyStarted = errors.New("event channel already started")

// TokenProvider returns the current bearer token. It is re-invoked on every
// reconnect so rotated credentials are honored.
type TokenProvider func(ctx context.Context) (string, error)

// Handler receives one order-created notification.
type Handler func(model.OrderCreated)

// Subscription identifies a registered handler so it can be removed.
type Subscription uuid.UUID

// Conn is the subset of *websocket.Conn the client needs; tests substitute a
// fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

// Clock abstracts timer waits so reconnect behavior is testable.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func defaultDialer(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Options struct {
	URL      string
	Tokens   TokenProvider
	Backoff  *ReconnectBackoff
	Activity *activity.Log
	Dialer   Dialer // nil: gorilla websocket
	Clock    Clock  // nil: wall clock
}

// Client maintains a persistent subscription to the order-created channel.
// Any transport drop is recovered with capped exponential backoff; loss of
// connectivity is never fatal.
type Client struct {
	url      string
	tokens   TokenProvider
	dial     Dialer
	clock    Clock
	backoff  *ReconnectBackoff
	activity *activity.Log

	mu       sync.Mutex
	handlers map[Subscription]Handler
	seq      []Subscription
	started  bool
	cancel   context.CancelFunc
	conn     Conn
	done     chan struct{}

	connected atomic.Bool
}

func NewClient(opts Options) *Client {
	c := &Client{
		url:      opts.URL,
		tokens:   opts.Tokens,
		dial:     opts.Dialer,
		clock:    opts.Clock,
		backoff:  opts.Backoff,
		activity: opts.Activity,
		handlers: make(map[Subscription]Handler),
	}
	if c.dial == nil {
		c.dial = defaultDialer
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.backoff == nil {
		c.backoff = NewReconnectBackoff(500*time.Millisecond, 30*time.Second, 10)
	}
	return c
}

// Connect starts the subscription supervisor. It returns immediately; dial
// failures are retried with backoff until Close or ctx cancellation.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
	return nil
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

// OnOrderCreated registers a handler invoked once per delivered event, in
// server emission order.
func (c *Client) OnOrderCreated(h Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := Subscription(uuid.New())
	c.handlers[sub] = h
	c.seq = append(c.seq, sub)
	return sub
}

// Off removes a previously registered handler.
func (c *Client) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, sub)
	for i, s := range c.seq {
		if s == sub {
			c.seq = append(c.seq[:i], c.seq[i+1:]...)
			break
		}
	}
}

// Close stops the supervisor and closes the active connection. The client is
// not restartable after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel, conn, done := c.cancel, c.conn, c.done
	c.mu.Unlock()

	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
	return nil
}

// --- Supervisor ---

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		conn, err := c.dialOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := c.backoff.Next()
			logger.Warn("event channel dial failed", "err", err, "retry_in", delay)
			c.activity.Append(activity.SeverityWarning, "event channel unreachable, retrying in %s", delay)
			if !c.wait(ctx, delay) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		// A cancel can land after the handshake succeeds, in which case Close
		// saw a nil conn and this goroutine is the only one left to close it.
		if ctx.Err() != nil {
			_ = conn.Close()
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			return
		}
		c.connected.Store(true)
		c.backoff.Reset()
		logger.Info("event channel connected", "url", c.url)
		c.activity.Append(activity.SeverityInfo, "event channel connected")

		c.readLoop(conn)

		c.connected.Store(false)
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		delay := c.backoff.Next()
		logger.Warn("event channel disconnected", "retry_in", delay)
		c.activity.Append(activity.SeverityWarning, "event channel disconnected, reconnecting in %s", delay)
		if !c.wait(ctx, delay) {
			return
		}
	}
}

func (c *Client) dialOnce(ctx context.Context) (Conn, error) {
	token, err := c.tokens(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, err := c.dial(ctx, c.url, header)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, model.EventFrame{Type: model.MessageTypeSubscribe}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("event channel read error", "err", err)
			return
		}

		var frame model.EventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warn("event channel invalid frame, skipping", "err", err)
			continue
		}

		switch frame.Type {
		case model.MessageTypeRegistered:
			logger.Info("event channel subscription registered")

		case model.MessageTypePing:
			if err := writeFrame(conn, model.EventFrame{Type: model.MessageTypePong}); err != nil {
				logger.Warn("pong write failed", "err", err)
				return
			}

		case model.MessageTypeError:
			logger.Warn("event channel server error", "err", frame.Error)
			c.activity.Append(activity.SeverityWarning, "event channel error: %s", frame.Error)

		case model.MessageTypeOrderCreated:
			var ev model.OrderCreated
			if err := json.Unmarshal(frame.Payload, &ev); err != nil {
				logger.Warn("order_created payload invalid, skipping", "err", err)
				continue
			}
			c.dispatch(ev)

		default:
			logger.Warn("unknown event frame type", "type", frame.Type)
		}
	}
}

// dispatch invokes handlers synchronously so events reach them in the order
// the server emitted them.
func (c *Client) dispatch(ev model.OrderCreated) {
	c.mu.Lock()
	hs := make([]Handler, 0, len(c.seq))
	for _, sub := range c.seq {
		if h, ok := c.handlers[sub]; ok {
			hs = append(hs, h)
		}
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

func writeFrame(conn Conn, frame model.EventFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
