package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/groutine"
)

// Connector dials gauges through a go-ble device
type Connector struct {
	logger *logrus.Logger
}

// NewConnector creates a device.Connector backed by DeviceFactory
func NewConnector(logger *logrus.Logger) *Connector {
	return &Connector{logger: logger}
}

// Connect dials address, discovers its GATT profile and checks the Progressor service is present
func (c *Connector) Connect(ctx context.Context, address string, opts device.ConnectOptions) (device.Link, error) {
	if strings.TrimSpace(address) == "" {
		c.logger.Error("Connection attempt with empty address")
		return nil, &device.TransportError{Op: "connect", Err: fmt.Errorf("device address is empty")}
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	// Create a BLE device using the factory (allows for mocking in tests)
	dev, err := DeviceFactory()
	if err != nil {
		c.logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, &device.TransportError{Op: "connect", Err: NormalizeError(err)}
	}

	connCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := dev.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return nil, &device.TransportError{Op: "connect", Err: fmt.Errorf("address %q: %w", address, NormalizeError(err))}
	}

	c.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, &device.TransportError{Op: "discover", Err: NormalizeError(err)}
	}

	chars, ok := indexProfile(profile)
	if !ok {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection")
		}
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{device.ServiceUUID}}
	}

	c.logger.WithFields(logrus.Fields{
		"address":         address,
		"services":        len(profile.Services),
		"characteristics": len(chars),
	}).Debug("Profile discovered successfully")

	l := &link{
		client: client,
		logger: c.logger,
		chars:  chars,
		done:   make(chan struct{}),
	}
	l.monitor()

	c.logger.WithField("address", address).Info("Connected")
	return l, nil
}

// indexProfile maps normalized characteristic UUIDs of the Progressor service
func indexProfile(profile *ble.Profile) (map[string]*ble.Characteristic, bool) {
	if profile == nil {
		return nil, false
	}
	for _, svc := range profile.Services {
		if !device.SameUUID(svc.UUID.String(), device.ServiceUUID) {
			continue
		}
		chars := make(map[string]*ble.Characteristic, len(svc.Characteristics))
		for _, ch := range svc.Characteristics {
			chars[device.NormalizeUUID(ch.UUID.String())] = ch
		}
		return chars, true
	}
	return nil, false
}

// link is a live go-ble connection implementing device.Link
type link struct {
	client     ble.Client
	logger     *logrus.Logger
	chars      map[string]*ble.Characteristic
	writeMutex sync.Mutex

	mu         sync.Mutex
	subscribed []*ble.Characteristic
	closed     bool

	done     chan struct{}
	doneOnce sync.Once
}

func (l *link) characteristic(charUUID string) (*ble.Characteristic, error) {
	ch, ok := l.chars[device.NormalizeUUID(charUUID)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{device.ServiceUUID, charUUID}}
	}
	return ch, nil
}

// Subscribe enables notifications (or indications when that is all the characteristic supports)
func (l *link) Subscribe(charUUID string, handler func([]byte)) error {
	ch, err := l.characteristic(charUUID)
	if err != nil {
		return err
	}
	if ch.Property&ble.CharNotify == 0 && ch.Property&ble.CharIndicate == 0 {
		return &device.TransportError{Op: "subscribe", UUID: charUUID, Err: fmt.Errorf("%w: characteristic does not support notifications", device.ErrUnsupported)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &device.TransportError{Op: "subscribe", UUID: charUUID, Err: device.ErrNotConnected}
	}

	indicate := ch.Property&ble.CharNotify == 0
	err = l.client.Subscribe(ch, indicate, handler)
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"char_uuid": charUUID,
			"error":     err,
		}).Error("Failed to subscribe")
		return &device.TransportError{Op: "subscribe", UUID: charUUID, Err: NormalizeError(err)}
	}
	l.subscribed = append(l.subscribed, ch)

	l.logger.WithFields(logrus.Fields{
		"char_uuid": charUUID,
		"indicate":  indicate,
	}).Debug("Subscribed to characteristic notifications")
	return nil
}

// Write sends data to the characteristic; writes are serialized
func (l *link) Write(charUUID string, data []byte, withResponse bool) error {
	ch, err := l.characteristic(charUUID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return &device.TransportError{Op: "write", UUID: charUUID, Err: device.ErrNotConnected}
	}

	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	l.logger.WithFields(logrus.Fields{
		"char_uuid":     charUUID,
		"data":          fmt.Sprintf("%x", data),
		"with_response": withResponse,
	}).Debug("Writing characteristic")

	if err := l.client.WriteCharacteristic(ch, data, !withResponse); err != nil {
		return &device.TransportError{Op: "write", UUID: charUUID, Err: NormalizeError(err)}
	}
	return nil
}

// Disconnect unsubscribes everything and cancels the connection; later calls are no-ops
func (l *link) Disconnect() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	subscribed := l.subscribed
	l.subscribed = nil
	l.mu.Unlock()

	for _, ch := range subscribed {
		indicate := ch.Property&ble.CharNotify == 0
		if err := l.client.Unsubscribe(ch, indicate); err != nil {
			l.logger.WithFields(logrus.Fields{
				"char_uuid": ch.UUID.String(),
				"error":     err,
			}).Warn("Failed to unsubscribe from characteristic notifications")
		}
	}

	err := l.client.CancelConnection()
	l.markDone()

	if err != nil {
		l.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	l.logger.Info("BLE device disconnected successfully")
	return nil
}

// Done is closed once the link is gone
func (l *link) Done() <-chan struct{} {
	return l.done
}

func (l *link) markDone() {
	l.doneOnce.Do(func() { close(l.done) })
}

// monitor watches the go-ble Disconnected() channel, when the client provides one
func (l *link) monitor() {
	dc, ok := l.client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		l.logger.Debug("Client does not support Disconnected() channel")
		return
	}
	disconnected := dc.Disconnected()
	if disconnected == nil {
		return
	}

	groutine.Go(context.Background(), "ble-link-monitor", func(ctx context.Context) {
		select {
		case <-disconnected:
			l.mu.Lock()
			wasClosed := l.closed
			l.closed = true
			l.mu.Unlock()
			if !wasClosed {
				l.logger.WithField("goroutine", groutine.GetName(ctx)).Warn("BLE device disconnected unexpectedly")
			}
			l.markDone()
		case <-l.done:
		}
	})
}
