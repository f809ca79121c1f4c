package server

import (
	"fmt"
	"sync"
)

// Battery service GATT layout (Bluetooth SIG).
const (
	BatteryServiceUUID = "0000180f-0000-1000-8000-00805f9b34fb"
	BatteryLevelUUID   = "00002a19-0000-1000-8000-00805f9b34fb"
)

// BatteryService exposes the battery level in percent.
type BatteryService struct {
	BaseProvider

	mu    sync.Mutex
	lib   ServiceLibrary
	level uint8
}

// NewBatteryService creates a battery service reporting 0%.
func NewBatteryService() *BatteryService {
	return &BatteryService{}
}

func (b *BatteryService) Begin(lib ServiceLibrary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := lib.CreateService(BatteryServiceUUID); err != nil {
		return fmt.Errorf("failed to create battery service: %w", err)
	}
	if err := lib.CreateCharacteristic(BatteryServiceUUID, BatteryLevelUUID, PermRead); err != nil {
		return err
	}
	if err := lib.SetValue(BatteryLevelUUID, []byte{b.level}); err != nil {
		return err
	}
	if err := lib.StartService(BatteryServiceUUID); err != nil {
		return fmt.Errorf("failed to start battery service: %w", err)
	}
	b.lib = lib
	return nil
}

// SetLevel updates the battery level, clamped to 100.
func (b *BatteryService) SetLevel(percent int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	b.level = uint8(percent)
	if b.lib == nil {
		return nil
	}
	return b.lib.SetValue(BatteryLevelUUID, []byte{b.level})
}

// Level returns the last reported level.
func (b *BatteryService) Level() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}
