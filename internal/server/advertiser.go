package server

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
)

// Advertiser broadcasts the latest reading in the manufacturer data.
type Advertiser struct {
	mu       sync.Mutex
	lib      AdvertisementLibrary
	config   sample.Config
	deviceID [2]byte
	logger   *logrus.Logger
}

// NewAdvertiser creates an advertiser for cfg.
func NewAdvertiser(lib AdvertisementLibrary, cfg sample.Config, logger *logrus.Logger) *Advertiser {
	if logger == nil {
		logger = logrus.New()
	}
	return &Advertiser{lib: lib, config: cfg, logger: logger}
}

// Begin derives the device id from the stack address and starts advertising
// an empty sample.
func (a *Advertiser) Begin() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	addr := a.lib.DeviceAddress()
	id, err := protocol.DeviceIDFromAddress(addr)
	if err != nil {
		a.logger.WithField("address", addr).Warn("Cannot derive device id from address, using 00:00")
	}
	a.deviceID = id

	if err := a.lib.SetAdvertisingData(a.payload(sample.New(a.config.SampleSizeBytes))); err != nil {
		return fmt.Errorf("failed to set advertising data: %w", err)
	}
	if err := a.lib.StartAdvertising(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}
	return nil
}

// SetSampleConfig changes the advertised sample type.
func (a *Advertiser) SetSampleConfig(cfg sample.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
}

// Commit restarts advertising with s as the live reading.
func (a *Advertiser) Commit(s sample.Sample) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.lib.StopAdvertising(); err != nil {
		return fmt.Errorf("failed to stop advertising: %w", err)
	}
	if err := a.lib.SetAdvertisingData(a.payload(s)); err != nil {
		return fmt.Errorf("failed to set advertising data: %w", err)
	}
	if err := a.lib.StartAdvertising(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}
	return nil
}

// DeviceID returns the id derived in Begin.
func (a *Advertiser) DeviceID() [2]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deviceID
}

func (a *Advertiser) payload(s sample.Sample) []byte {
	return protocol.EncodeAdvertisement(protocol.NewAdvertisement(a.config.SampleType, a.deviceID, s))
}
