package testutils

import (
	"encoding/binary"
	"sync"

	blelib "github.com/go-ble/ble"
	"github.com/srg/progressor/internal/device"
	"github.com/srg/progressor/internal/protocol"
	"github.com/srg/progressor/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// Responder produces the notification frames a simulated gauge emits after a control point write
type Responder func(cmd protocol.Command, payload []byte) [][]byte

// GaugeResponder answers queries like a healthy gauge and streams samples once measurement starts
func GaugeResponder(version string, batteryMillivolts uint32, samples ...protocol.Sample) Responder {
	return func(cmd protocol.Command, _ []byte) [][]byte {
		switch cmd {
		case protocol.CmdGetAppVersion:
			return [][]byte{protocol.EncodeCommandResponse([]byte(version))}
		case protocol.CmdGetBatteryVoltage:
			return [][]byte{protocol.EncodeCommandResponse(binary.LittleEndian.AppendUint32(nil, batteryMillivolts))}
		case protocol.CmdGetErrorInformation:
			return [][]byte{protocol.EncodeCommandResponse(nil)}
		case protocol.CmdStartWeightMeasurement:
			if len(samples) == 0 {
				return nil
			}
			return [][]byte{protocol.EncodeWeightFrame(samples...)}
		default:
			return nil
		}
	}
}

// Write is one recorded control point write
type Write struct {
	Data       []byte
	NoResponse bool
}

// PeripheralDeviceBuilder builds a mocked ble.Device exposing the Progressor GATT profile
type PeripheralDeviceBuilder struct {
	dataProps          blelib.Property
	withoutService     bool
	responder          Responder
	scanAdvertisements []blelib.Advertisement
	dialErr            error
	discoverErr        error
	subscribeErr       error
	writeErr           error
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{dataProps: blelib.CharNotify}
}

// WithResponder sets how the peripheral answers control point writes
func (b *PeripheralDeviceBuilder) WithResponder(r Responder) *PeripheralDeviceBuilder {
	b.responder = r
	return b
}

// WithDataProperties overrides the data characteristic properties
func (b *PeripheralDeviceBuilder) WithDataProperties(p blelib.Property) *PeripheralDeviceBuilder {
	b.dataProps = p
	return b
}

// WithoutService makes the discovered profile lack the Progressor service
func (b *PeripheralDeviceBuilder) WithoutService() *PeripheralDeviceBuilder {
	b.withoutService = true
	return b
}

// WithScanAdvertisements adds advertisements reported by Scan
func (b *PeripheralDeviceBuilder) WithScanAdvertisements(ads ...blelib.Advertisement) *PeripheralDeviceBuilder {
	b.scanAdvertisements = append(b.scanAdvertisements, ads...)
	return b
}

// WithDialError makes Dial fail
func (b *PeripheralDeviceBuilder) WithDialError(err error) *PeripheralDeviceBuilder {
	b.dialErr = err
	return b
}

// WithDiscoverError makes profile discovery fail
func (b *PeripheralDeviceBuilder) WithDiscoverError(err error) *PeripheralDeviceBuilder {
	b.discoverErr = err
	return b
}

// WithSubscribeError makes Subscribe fail
func (b *PeripheralDeviceBuilder) WithSubscribeError(err error) *PeripheralDeviceBuilder {
	b.subscribeErr = err
	return b
}

// WithWriteError makes every characteristic write fail
func (b *PeripheralDeviceBuilder) WithWriteError(err error) *PeripheralDeviceBuilder {
	b.writeErr = err
	return b
}

// MockPeripheral is a built mock gauge with access to what the transport did to it
type MockPeripheral struct {
	Device *mocks.MockDevice
	Client *mocks.MockClient

	DataChar         *blelib.Characteristic
	ControlPointChar *blelib.Characteristic

	mu           sync.Mutex
	handler      blelib.NotificationHandler
	writes       []Write
	disconnected chan struct{}
	dropOnce     sync.Once
}

// Notify delivers a frame on the data characteristic; false when nothing is subscribed
func (p *MockPeripheral) Notify(frame []byte) bool {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return false
	}
	h(frame)
	return true
}

// Subscribed reports whether a notification handler is installed
func (p *MockPeripheral) Subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler != nil
}

// Writes returns a copy of the recorded control point writes
func (p *MockPeripheral) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.writes...)
}

// Commands returns the opcodes written so far
func (p *MockPeripheral) Commands() []protocol.Command {
	var cmds []protocol.Command
	for _, w := range p.Writes() {
		if len(w.Data) > 0 {
			cmds = append(cmds, protocol.Command(w.Data[0]))
		}
	}
	return cmds
}

// Drop simulates the peripheral going away
func (p *MockPeripheral) Drop() {
	p.dropOnce.Do(func() { close(p.disconnected) })
}

// Build creates the mocked device with expectations for every call the transport makes
func (b *PeripheralDeviceBuilder) Build() *MockPeripheral {
	p := &MockPeripheral{
		Device:       &mocks.MockDevice{},
		Client:       &mocks.MockClient{},
		disconnected: make(chan struct{}),
		DataChar: &blelib.Characteristic{
			UUID:     blelib.MustParse(device.DataCharUUID),
			Property: b.dataProps,
		},
		ControlPointChar: &blelib.Characteristic{
			UUID:     blelib.MustParse(device.ControlPointCharUUID),
			Property: blelib.CharWrite | blelib.CharWriteNR,
		},
	}

	profile := &blelib.Profile{}
	if !b.withoutService {
		profile.Services = append(profile.Services, &blelib.Service{
			UUID:            blelib.MustParse(device.ServiceUUID),
			Characteristics: []*blelib.Characteristic{p.DataChar, p.ControlPointChar},
		})
	}
	profile.Services = append(profile.Services, &blelib.Service{
		UUID: blelib.MustParse("180F"),
		Characteristics: []*blelib.Characteristic{
			{UUID: blelib.MustParse("2A19"), Property: blelib.CharRead | blelib.CharNotify},
		},
	})

	if b.dialErr != nil {
		p.Device.On("Dial", mock.Anything, mock.Anything).Return(nil, b.dialErr).Maybe()
	} else {
		p.Device.On("Dial", mock.Anything, mock.Anything).Return(p.Client, nil).Maybe()
	}

	p.Device.On("Scan", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		handler := args.Get(2).(blelib.AdvHandler)
		for _, adv := range b.scanAdvertisements {
			handler(adv)
		}
	}).Return(nil).Maybe()

	if b.discoverErr != nil {
		p.Client.On("DiscoverProfile", true).Return(nil, b.discoverErr).Maybe()
	} else {
		p.Client.On("DiscoverProfile", true).Return(profile, nil).Maybe()
	}

	p.Client.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		if b.subscribeErr != nil {
			return
		}
		p.mu.Lock()
		p.handler = args.Get(2).(blelib.NotificationHandler)
		p.mu.Unlock()
	}).Return(b.subscribeErr).Maybe()

	p.Client.On("Unsubscribe", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		p.mu.Lock()
		p.handler = nil
		p.mu.Unlock()
	}).Return(nil).Maybe()

	p.Client.On("WriteCharacteristic", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		data := append([]byte(nil), args.Get(1).([]byte)...)
		p.mu.Lock()
		p.writes = append(p.writes, Write{Data: data, NoResponse: args.Bool(2)})
		p.mu.Unlock()

		if b.writeErr != nil || b.responder == nil || len(data) == 0 {
			return
		}
		for _, frame := range b.responder(protocol.Command(data[0]), data[1:]) {
			p.Notify(frame)
		}
	}).Return(b.writeErr).Maybe()

	p.Client.On("CancelConnection").Run(func(mock.Arguments) { p.Drop() }).Return(nil).Maybe()
	p.Client.On("Disconnected").Return((<-chan struct{})(p.disconnected)).Maybe()

	return p
}
