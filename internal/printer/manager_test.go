package printer

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeTransport scripts the device link for tests.
type fakeTransport struct {
	mu        sync.Mutex
	openErr   error
	openGate  chan struct{} // when set, Open blocks until closed
	writeErr  error
	writeGate chan struct{} // when set, Write blocks until closed or ctx done
	writes    [][]byte
	closed    int
}

func (f *fakeTransport) Open(ctx context.Context) (DeviceInfo, error) {
	if f.openGate != nil {
		select {
		case <-f.openGate:
		case <-ctx.Done():
			return DeviceInfo{}, ctx.Err()
		}
	}
	if f.openErr != nil {
		return DeviceInfo{}, f.openErr
	}
	return DeviceInfo{Name: "Fake", Address: "10.0.0.9:9100"}, nil
}

func (f *fakeTransport) Write(ctx context.Context, p []byte) error {
	if f.writeGate != nil {
		select {
		case <-f.writeGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func newTestManager(tr Transport) *Manager {
	return NewManager(tr, activity.NewLog(50), 100*time.Millisecond)
}

func TestConnectTransitionsToConnected(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	info, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "10.0.0.9:9100", info.Address)
	require.Equal(t, StateConnected, m.State())
}

func TestConnectFailureFaults(t *testing.T) {
	m := newTestManager(&fakeTransport{openErr: errors.New("no route to host")})

	_, err := m.Connect(context.Background())
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, StateFaulted, m.State())

	// Faulted requires an explicit reset before connecting again.
	_, err = m.Connect(context.Background())
	require.ErrorIs(t, err, ErrFaulted)
	m.Reset()
	require.Equal(t, StateDisconnected, m.State())
}

func TestSecondConnectFailsFast(t *testing.T) {
	gate := make(chan struct{})
	tr := &fakeTransport{openGate: gate}
	m := newTestManager(tr)

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return m.State() == StateConnecting }, time.Second, time.Millisecond)
	_, err := m.Connect(context.Background())
	require.ErrorIs(t, err, ErrAlreadyConnecting)

	close(gate)
	require.NoError(t, <-done)

	_, err = m.Connect(context.Background())
	require.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestSendRequiresConnected(t *testing.T) {
	m := newTestManager(&fakeTransport{})
	err := m.Send(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendRoundTrip(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(tr)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), []byte("receipt")))
	require.Equal(t, StateConnected, m.State())
	require.Equal(t, [][]byte{[]byte("receipt")}, tr.writes)
}

func TestFaultedSendLeavesNoPartialState(t *testing.T) {
	tr := &fakeTransport{writeErr: errors.New("write failed after 12/80 bytes: broken pipe")}
	m := newTestManager(tr)
	act := activity.NewLog(50)
	m.activity = act
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	err = m.Send(context.Background(), []byte("receipt"))
	var terr *TransmitError
	require.ErrorAs(t, err, &terr)
	require.False(t, terr.Timeout)
	require.Equal(t, StateFaulted, m.State())
	require.Empty(t, tr.writes)

	found := false
	for _, e := range act.Snapshot() {
		if e.Severity == activity.SeverityError {
			found = true
		}
	}
	require.True(t, found, "expected a transmit error log entry")

	// A faulted link rejects further sends until reset and reconnected.
	require.ErrorIs(t, m.Send(context.Background(), []byte("again")), ErrNotConnected)
}

func TestSendTimeoutFaults(t *testing.T) {
	tr := &fakeTransport{writeGate: make(chan struct{})}
	m := newTestManager(tr)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	err = m.Send(context.Background(), []byte("receipt"))
	var terr *TransmitError
	require.ErrorAs(t, err, &terr)
	require.True(t, terr.Timeout)
	require.Equal(t, StateFaulted, m.State())
}

func TestSendCancellationFaults(t *testing.T) {
	tr := &fakeTransport{writeGate: make(chan struct{})}
	m := NewManager(tr, activity.NewLog(50), time.Minute)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err = m.Send(ctx, []byte("receipt"))
	var terr *TransmitError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, StateFaulted, m.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(tr)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	m.Disconnect()
	m.Disconnect()
	require.Equal(t, StateDisconnected, m.State())
}

func TestStateObserverSeesTransitions(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(tr)

	var mu sync.Mutex
	var seen []State
	m.OnStateChange(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), []byte("r")))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{StateConnecting, StateConnected, StateBusy, StateConnected}, seen)
}
