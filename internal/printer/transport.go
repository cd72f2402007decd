package printer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

type DeviceInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Transport is the low-level device link. Exactly one logical channel per
// paired device; writes are acknowledged or time out; disconnection is
// detectable as a write error.
type Transport interface {
	Open(ctx context.Context) (DeviceInfo, error)
	Write(ctx context.Context, p []byte) error
	Close() error
}

// TCPTransport speaks raw ESC/POS over a JetDirect-style socket (port 9100).
// When IP is empty, Open scans the local /24 subnet and pairs with the first
// host answering on the configured port.
type TCPTransport struct {
	IP          string
	Port        int
	Name        string
	DialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewTCPTransport(ip string, port int, name string) *TCPTransport {
	return &TCPTransport{IP: ip, Port: port, Name: name, DialTimeout: 5 * time.Second}
}

func (t *TCPTransport) Open(ctx context.Context) (DeviceInfo, error) {
	ip := t.IP
	if ip == "" {
		found, err := discoverPrinter(ctx, t.Port)
		if err != nil {
			return DeviceInfo{}, err
		}
		ip = found
	}

	addr := fmt.Sprintf("%s:%d", ip, t.Port)
	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("connection failed: %w", err)
	}

	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = conn
	t.mu.Unlock()

	return DeviceInfo{Name: t.Name, Address: addr}, nil
}

func (t *TCPTransport) Write(ctx context.Context, p []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport not open")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	// Unblock the write if the caller cancels mid-flight.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now())
		case <-stop:
		}
	}()
	defer close(stop)

	n, err := conn.Write(p)
	if err != nil {
		return fmt.Errorf("write failed after %d/%d bytes: %w", n, len(p), err)
	}
	if n < len(p) {
		return fmt.Errorf("short write: %d/%d bytes", n, len(p))
	}
	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
