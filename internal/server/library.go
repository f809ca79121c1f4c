package server

import (
	"strings"
)

// Permission is a bitmask of GATT characteristic permissions.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermNotify

	PermReadWrite = PermRead | PermWrite
)

// Has reports whether all bits of q are set in p.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

func (p Permission) String() string {
	var parts []string
	if p.Has(PermRead) {
		parts = append(parts, "read")
	}
	if p.Has(PermWrite) {
		parts = append(parts, "write")
	}
	if p.Has(PermNotify) {
		parts = append(parts, "notify")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// WriteCallback receives the raw value written by a central.
type WriteCallback func(value []byte)

// ServiceLibrary is the GATT side of the wireless stack.
//
// UUIDs are accepted in any form understood by NormalizeUUID. Characteristics
// must be created before their service is started.
type ServiceLibrary interface {
	CreateService(uuid string) error
	StartService(uuid string) error
	CreateCharacteristic(serviceUUID, charUUID string, perm Permission) error

	// SetValue stores the value served to reads and sent by Notify.
	SetValue(uuid string, value []byte) error
	Value(uuid string) ([]byte, error)
	// Notify sends the current value to subscribed centrals.
	Notify(uuid string) error

	// OnWrite registers a callback invoked after a central writes the
	// characteristic. Callbacks run in registration order.
	OnWrite(uuid string, cb WriteCallback) error

	HasConnectedCentrals() bool
}

// AdvertisementLibrary is the advertising side of the wireless stack.
type AdvertisementLibrary interface {
	// SetAdvertisingData sets the manufacturer data block, company id first.
	SetAdvertisingData(data []byte) error
	StartAdvertising() error
	StopAdvertising() error
	DeviceAddress() string
}

// Library is the complete wireless stack used by Server.
type Library interface {
	ServiceLibrary
	AdvertisementLibrary

	// SetProviderCallbacks installs the receiver of connection and
	// subscription events. Events may arrive on any goroutine.
	SetProviderCallbacks(cb ProviderCallbacks)
}

// ProviderCallbacks receives connection-level events from the stack.
type ProviderCallbacks interface {
	OnConnect()
	OnDisconnect()
	// OnSubscribe reports a CCCD write: 0 off, 1 notify, 2 indicate.
	OnSubscribe(uuid string, value uint16)
}

// ServiceProvider contributes one GATT service to the server.
type ServiceProvider interface {
	ProviderCallbacks

	// Begin creates and starts the provider's service.
	Begin(lib ServiceLibrary) error
}

// BaseProvider implements no-op ProviderCallbacks for embedding.
type BaseProvider struct{}

func (BaseProvider) OnConnect()                 {}
func (BaseProvider) OnDisconnect()              {}
func (BaseProvider) OnSubscribe(string, uint16) {}

const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID to the lookup form used by the libraries:
// lowercase, no dashes, braces or 0x prefix. Bluetooth SIG base UUIDs are
// reduced to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.Trim(u, "{}")
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}
