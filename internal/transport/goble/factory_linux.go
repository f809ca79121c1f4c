//go:build linux

package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"golang.org/x/sys/unix"
)

// DeviceFactory creates the platform BLE device (can be overridden in tests).
// The HCI socket needs CAP_NET_ADMIN, which in practice means root.
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		if unix.Geteuid() != 0 {
			return nil, fmt.Errorf("%w (HCI access usually requires root or CAP_NET_ADMIN)", err)
		}
		return nil, err
	}
	return dev, nil
}
