package server

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Forced recalibration service GATT layout.
const (
	FRCServiceUUID = "00007000-b38d-4985-720e-0f993a68ee41"
	FRCRequestUUID = "00007004-b38d-4985-720e-0f993a68ee41"
)

// FRCService accepts forced recalibration requests for a CO2 sensor.
// The request value carries two ignored bytes followed by the reference
// CO2 level as u16 LE.
type FRCService struct {
	BaseProvider

	mu        sync.Mutex
	logger    *logrus.Logger
	callbacks []func(referencePPM uint16)
}

// NewFRCService creates a recalibration service.
func NewFRCService(logger *logrus.Logger) *FRCService {
	if logger == nil {
		logger = logrus.New()
	}
	return &FRCService{logger: logger}
}

func (f *FRCService) Begin(lib ServiceLibrary) error {
	if err := lib.CreateService(FRCServiceUUID); err != nil {
		return fmt.Errorf("failed to create recalibration service: %w", err)
	}
	if err := lib.CreateCharacteristic(FRCServiceUUID, FRCRequestUUID, PermWrite); err != nil {
		return err
	}
	if err := lib.SetValue(FRCRequestUUID, []byte{0, 0, 0, 0}); err != nil {
		return err
	}
	if err := lib.OnWrite(FRCRequestUUID, f.onRequest); err != nil {
		return err
	}
	if err := lib.StartService(FRCServiceUUID); err != nil {
		return fmt.Errorf("failed to start recalibration service: %w", err)
	}
	return nil
}

// OnRequest registers a callback receiving the reference CO2 level in ppm.
func (f *FRCService) OnRequest(cb func(referencePPM uint16)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, cb)
}

func (f *FRCService) onRequest(value []byte) {
	if len(value) < 4 {
		f.logger.WithField("size", len(value)).Warn("Ignoring short recalibration request")
		return
	}
	ppm := binary.LittleEndian.Uint16(value[2:4])

	f.mu.Lock()
	callbacks := append([]func(uint16){}, f.callbacks...)
	f.mu.Unlock()

	f.logger.WithField("reference_ppm", ppm).Info("Forced recalibration requested")
	for _, cb := range callbacks {
		cb(ppm)
	}
}
