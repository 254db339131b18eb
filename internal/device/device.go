package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GATT profile of the Progressor
const (
	ServiceUUID          = "7e4e1701-1ea6-40c9-9dcc-13d34ffead57"
	DataCharUUID         = "7e4e1702-1ea6-40c9-9dcc-13d34ffead57"
	ControlPointCharUUID = "7e4e1703-1ea6-40c9-9dcc-13d34ffead57"

	// DefaultNamePrefix is the advertised local name prefix of every gauge
	DefaultNamePrefix = "Progressor"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "device", "service", "characteristic"
	UUIDs    []string // One or more identifiers (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")
	ErrNoDevice    = errors.New("no matching device found")
)

// TransportError wraps a failed transport operation (subscribe, write, connect).
// A TransportError ends the session; the driver never retries.
type TransportError struct {
	Op   string // "subscribe", "write", "connect", "discover"
	UUID string // characteristic involved, if any
	Err  error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.UUID != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, ShortenUUID(e.UUID), e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NormalizeError maps known transport error strings to structured ConnectionError types.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is Bluetooth turned on"), containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"), containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	default:
		return err
	}
}

// DeviceInfo describes a discovered gauge
//
//nolint:revive // DeviceInfo name is intentional for clarity when used as a device.DeviceInfo
type DeviceInfo struct {
	Name    string
	Address string
	RSSI    int
}

// DisplayName returns the name, falling back to the address
func (d DeviceInfo) DisplayName() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Name
}

// DiscoverOptions controls gauge discovery
type DiscoverOptions struct {
	NamePrefix string        // advertised name prefix, DefaultNamePrefix when empty
	Timeout    time.Duration // scan duration, 0 means until ctx is done
}

// ConnectOptions defines BLE connection options
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// Scanner finds advertising gauges
type Scanner interface {
	// Discover returns the first device whose name matches opts.NamePrefix
	Discover(ctx context.Context, opts DiscoverOptions) (DeviceInfo, error)
	// Scan reports every matching device (once per address) until the timeout
	Scan(ctx context.Context, opts DiscoverOptions, handler func(DeviceInfo)) error
}

// Connector establishes links to gauges
type Connector interface {
	Connect(ctx context.Context, address string, opts ConnectOptions) (Link, error)
}

// Link is a live GATT connection to one gauge
type Link interface {
	// Subscribe delivers every notification of the characteristic to handler.
	// handler runs on the transport's goroutine and must not retain the slice.
	Subscribe(charUUID string, handler func([]byte)) error
	// Write sends data to the characteristic, waiting for the ATT acknowledgement
	// when withResponse is set.
	Write(charUUID string, data []byte, withResponse bool) error
	// Disconnect tears the link down; safe to call more than once.
	Disconnect() error
	// Done is closed when the link is lost or disconnected.
	Done() <-chan struct{}
}
