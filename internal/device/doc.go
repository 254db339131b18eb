// Package device defines the transport boundary of the Progressor driver.
//
// The session core never touches the radio. It talks to a connected gauge through
// the Link interface (subscribe to the data characteristic, write the control point)
// and discovers gauges through Scanner and Connector. The go-ble subpackage provides
// the production implementation; tests substitute their own.
//
// The package also owns the transport error taxonomy: ConnectionError for link state
// problems, NotFoundError for missing GATT resources and TransportError for failed
// operations, all of which are fatal to a session.
package device
