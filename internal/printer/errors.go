package printer

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("printer not connected")
	ErrAlreadyConnected  = errors.New("printer already connected")
	ErrAlreadyConnecting = errors.New("printer connect already in flight")
	// ErrFaulted means the link must be explicitly reset before reconnecting.
	ErrFaulted = errors.New("printer link faulted")
)

// ConnectError wraps a failure to discover or pair with the device.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("printer pairing failed: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// TransmitError wraps a write that failed or timed out mid-flight.
type TransmitError struct {
	Timeout bool
	Err     error
}

func (e *TransmitError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transmit timed out: %v", e.Err)
	}
	return fmt.Sprintf("transmit failed: %v", e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }
