//go:build !darwin && !linux

package goble

import (
	"errors"

	"github.com/go-ble/ble"
)

// DeviceFactory reports that no BLE stack is available on this platform.
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return nil, errors.New("BLE peripheral mode is supported on linux and darwin only")
}
