package testutils

import (
	"github.com/go-ble/ble"
	"github.com/srg/progressor/internal/testutils/mocks"
)

// AdvertisementBuilder builds mocked BLE advertisements for testing.
// Only the fields read during discovery get expectations, all marked Maybe.
type AdvertisementBuilder struct {
	name     string
	address  string
	rssi     int
	services []string
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder with default values.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = append(b.services, uuids...)
	return b
}

// Build creates a MockAdvertisement that implements ble.Advertisement.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	adv := &mocks.MockAdvertisement{}

	var bleServices []ble.UUID
	for _, s := range b.services {
		bleServices = append(bleServices, ble.MustParse(s))
	}

	addr := &mocks.MockAddr{}
	addr.On("String").Return(b.address).Maybe()

	adv.On("Addr").Return(addr).Maybe()
	adv.On("LocalName").Return(b.name).Maybe()
	adv.On("RSSI").Return(b.rssi).Maybe()
	adv.On("Services").Return(bleServices).Maybe()
	adv.On("Connectable").Return(true).Maybe()

	return adv
}
