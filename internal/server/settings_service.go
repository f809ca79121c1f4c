package server

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Settings service GATT layout.
const (
	SettingsServiceUUID = "00008100-b38d-4985-720e-0f993a68ee41"
	AltDeviceNameUUID   = "00008120-b38d-4985-720e-0f993a68ee41"
	WiFiSSIDUUID        = "00008171-b38d-4985-720e-0f993a68ee41"
	WiFiPasswordUUID    = "00008172-b38d-4985-720e-0f993a68ee41"
)

// SettingsOptions selects the optional settings characteristics.
type SettingsOptions struct {
	EnableWiFi          bool
	EnableAltDeviceName bool
}

// SettingsService exposes writable device settings: an alternative device
// name and Wi-Fi credentials.
type SettingsService struct {
	BaseProvider

	mu      sync.Mutex
	opts    SettingsOptions
	lib     ServiceLibrary
	logger  *logrus.Logger
	ssid    string
	altName string

	nameCallbacks []func(name string)
	wifiCallbacks []func(ssid, password string)
}

// NewSettingsService creates a settings service.
func NewSettingsService(opts SettingsOptions, logger *logrus.Logger) *SettingsService {
	if logger == nil {
		logger = logrus.New()
	}
	return &SettingsService{opts: opts, logger: logger}
}

func (s *SettingsService) Begin(lib ServiceLibrary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := lib.CreateService(SettingsServiceUUID); err != nil {
		return fmt.Errorf("failed to create settings service: %w", err)
	}

	if s.opts.EnableWiFi {
		if err := lib.CreateCharacteristic(SettingsServiceUUID, WiFiSSIDUUID, PermReadWrite); err != nil {
			return err
		}
		if err := lib.CreateCharacteristic(SettingsServiceUUID, WiFiPasswordUUID, PermWrite); err != nil {
			return err
		}
		if err := lib.SetValue(WiFiSSIDUUID, []byte("ssid")); err != nil {
			return err
		}
		if err := lib.OnWrite(WiFiSSIDUUID, s.onSSID); err != nil {
			return err
		}
		if err := lib.OnWrite(WiFiPasswordUUID, s.onPassword); err != nil {
			return err
		}
	}

	if s.opts.EnableAltDeviceName {
		if err := lib.CreateCharacteristic(SettingsServiceUUID, AltDeviceNameUUID, PermReadWrite); err != nil {
			return err
		}
		if err := lib.SetValue(AltDeviceNameUUID, []byte(s.altName)); err != nil {
			return err
		}
		if err := lib.OnWrite(AltDeviceNameUUID, s.onAltName); err != nil {
			return err
		}
	}

	if err := lib.StartService(SettingsServiceUUID); err != nil {
		return fmt.Errorf("failed to start settings service: %w", err)
	}
	s.lib = lib
	return nil
}

// AltDeviceName returns the alternative device name, empty when unset.
func (s *SettingsService) AltDeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.altName
}

// SetAltDeviceName updates the alternative device name characteristic.
func (s *SettingsService) SetAltDeviceName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.altName = name
	if s.lib == nil || !s.opts.EnableAltDeviceName {
		return nil
	}
	return s.lib.SetValue(AltDeviceNameUUID, []byte(name))
}

// WiFiSSID returns the last SSID written by a central.
func (s *SettingsService) WiFiSSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssid
}

// OnDeviceNameChange registers a callback for alternative name writes.
func (s *SettingsService) OnDeviceNameChange(cb func(name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nameCallbacks = append(s.nameCallbacks, cb)
}

// OnWiFiChange registers a callback invoked when a central writes the
// password; the SSID written before it is passed along.
func (s *SettingsService) OnWiFiChange(cb func(ssid, password string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wifiCallbacks = append(s.wifiCallbacks, cb)
}

func (s *SettingsService) onSSID(value []byte) {
	s.mu.Lock()
	s.ssid = string(value)
	s.mu.Unlock()
	s.logger.WithField("ssid", string(value)).Debug("Wi-Fi SSID written")
}

func (s *SettingsService) onPassword(value []byte) {
	s.mu.Lock()
	ssid := s.ssid
	callbacks := append([]func(string, string){}, s.wifiCallbacks...)
	s.mu.Unlock()

	s.logger.WithField("ssid", ssid).Info("Wi-Fi credentials changed")
	for _, cb := range callbacks {
		cb(ssid, string(value))
	}
}

func (s *SettingsService) onAltName(value []byte) {
	name := string(value)

	s.mu.Lock()
	s.altName = name
	callbacks := append([]func(string){}, s.nameCallbacks...)
	s.mu.Unlock()

	s.logger.WithField("name", name).Info("Alternative device name changed")
	for _, cb := range callbacks {
		cb(name)
	}
}
