package printer

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
)

// State of the single device link. Transitions are serialized through the
// manager's mutex; no other component touches the transport.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBusy
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBusy:
		return "busy"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// Manager owns the printer link. One connect attempt at a time, one
// transmission at a time, and a faulted link stays faulted until the operator
// explicitly resets it. Silent auto-reconnect to a physical peripheral risks
// printing to a stale device.
type Manager struct {
	transport   Transport
	activity    *activity.Log
	sendTimeout time.Duration

	mu        sync.Mutex
	state     State
	info      DeviceInfo
	observers []func(State)
}

func NewManager(transport Transport, act *activity.Log, sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Manager{
		transport:   transport,
		activity:    act,
		sendTimeout: sendTimeout,
		state:       StateDisconnected,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Info() DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// OnStateChange registers an observer called after every transition.
func (m *Manager) OnStateChange(f func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, f)
}

// Connect discovers and pairs with the printer. A second call while
// Connecting or Connected fails fast instead of racing the transport.
func (m *Manager) Connect(ctx context.Context) (DeviceInfo, error) {
	m.mu.Lock()
	switch m.state {
	case StateConnecting:
		m.mu.Unlock()
		return DeviceInfo{}, ErrAlreadyConnecting
	case StateConnected, StateBusy:
		m.mu.Unlock()
		return DeviceInfo{}, ErrAlreadyConnected
	case StateFaulted:
		m.mu.Unlock()
		return DeviceInfo{}, ErrFaulted
	}
	m.transitionLocked(StateConnecting)
	m.mu.Unlock()
	m.notify(StateConnecting)

	info, err := m.transport.Open(ctx)
	if err != nil {
		m.setState(StateFaulted)
		m.activity.Append(activity.SeverityError, "printer pairing failed: %v", err)
		return DeviceInfo{}, &ConnectError{Err: err}
	}

	m.mu.Lock()
	m.info = info
	m.transitionLocked(StateConnected)
	m.mu.Unlock()
	m.notify(StateConnected)
	m.activity.Append(activity.SeveritySuccess, "printer connected at %s", info.Address)
	return info, nil
}

// Send transmits one encoded receipt. Rejected immediately unless the link is
// idle Connected; any failure, timeout, or cancellation mid-write leaves the
// link Faulted so a partial receipt is never mistaken for success.
func (m *Manager) Send(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.transitionLocked(StateBusy)
	m.mu.Unlock()
	m.notify(StateBusy)

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	err := m.transport.Write(sendCtx, payload)
	if err == nil && sendCtx.Err() != nil {
		err = sendCtx.Err()
	}
	if err != nil {
		m.setState(StateFaulted)
		terr := &TransmitError{Timeout: isTimeout(err, sendCtx), Err: err}
		m.activity.Append(activity.SeverityError, "transmit failed: %v", terr)
		return terr
	}

	m.setState(StateConnected)
	return nil
}

// Disconnect releases the transport and returns to Disconnected
// unconditionally. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	_ = m.transport.Close()
	changed := m.state != StateDisconnected
	if changed {
		m.transitionLocked(StateDisconnected)
	}
	m.mu.Unlock()
	if changed {
		m.notify(StateDisconnected)
	}
}

// Reset acknowledges a faulted link, returning it to Disconnected so the
// operator can connect again.
func (m *Manager) Reset() {
	m.mu.Lock()
	if m.state != StateFaulted {
		m.mu.Unlock()
		return
	}
	_ = m.transport.Close()
	m.transitionLocked(StateDisconnected)
	m.mu.Unlock()
	m.notify(StateDisconnected)
}

func (m *Manager) setState(to State) {
	m.mu.Lock()
	m.transitionLocked(to)
	m.mu.Unlock()
	m.notify(to)
}

// transitionLocked must be called with m.mu held.
func (m *Manager) transitionLocked(to State) {
	from := m.state
	m.state = to
	logger.Info("printer state", "from", from.String(), "to", to.String())
}

// notify runs observers outside the lock; observers may call State().
func (m *Manager) notify(to State) {
	m.mu.Lock()
	obs := make([]func(State), len(m.observers))
	copy(obs, m.observers)
	m.mu.Unlock()
	for _, f := range obs {
		f(to)
	}
}

func isTimeout(err error, ctx context.Context) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
