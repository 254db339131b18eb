// Package mocks provides testify mocks for the go-ble interfaces the transport uses.
// Unmocked interface methods panic through the embedded nil interface.
package mocks

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockDevice is a mock ble.Device
type MockDevice struct {
	ble.Device
	mock.Mock
}

func (m *MockDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	ret := m.Called(ctx, allowDup, h)
	return ret.Error(0)
}

func (m *MockDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	ret := m.Called(ctx, a)
	client, _ := ret.Get(0).(ble.Client)
	return client, ret.Error(1)
}

func (m *MockDevice) Stop() error {
	ret := m.Called()
	return ret.Error(0)
}

// MockClient is a mock ble.Client
type MockClient struct {
	ble.Client
	mock.Mock
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	ret := m.Called(force)
	profile, _ := ret.Get(0).(*ble.Profile)
	return profile, ret.Error(1)
}

func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	ret := m.Called(c, ind, h)
	return ret.Error(0)
}

func (m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	ret := m.Called(c, ind)
	return ret.Error(0)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	ret := m.Called(c, value, noRsp)
	return ret.Error(0)
}

func (m *MockClient) CancelConnection() error {
	ret := m.Called()
	return ret.Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	ret := m.Called()
	ch, _ := ret.Get(0).(<-chan struct{})
	return ch
}

// MockAdvertisement is a mock ble.Advertisement
type MockAdvertisement struct {
	ble.Advertisement
	mock.Mock
}

func (m *MockAdvertisement) LocalName() string {
	ret := m.Called()
	return ret.String(0)
}

func (m *MockAdvertisement) RSSI() int {
	ret := m.Called()
	return ret.Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	ret := m.Called()
	addr, _ := ret.Get(0).(ble.Addr)
	return addr
}

func (m *MockAdvertisement) Services() []ble.UUID {
	ret := m.Called()
	uuids, _ := ret.Get(0).([]ble.UUID)
	return uuids
}

func (m *MockAdvertisement) Connectable() bool {
	ret := m.Called()
	return ret.Bool(0)
}

// MockAddr is a mock ble.Addr
type MockAddr struct {
	mock.Mock
}

func (m *MockAddr) String() string {
	ret := m.Called()
	return ret.String(0)
}
