package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/feeder"
	"github.com/srg/blehist/internal/metrics"
	"github.com/srg/blehist/internal/server"
	"github.com/srg/blehist/pkg/config"
)

// peripheral is a server with its optional providers.
type peripheral struct {
	server   *server.Server
	battery  *server.BatteryService
	settings *server.SettingsService
	frc      *server.FRCService
}

// newPeripheral assembles the server described by cfg on top of lib.
// Begin is left to the caller.
func newPeripheral(lib server.Library, cfg *config.Config, clock feeder.Clock, reg prometheus.Registerer, logger *logrus.Logger) (*peripheral, error) {
	p := &peripheral{}
	m := metrics.NewMetrics(reg, func() float64 {
		if p.server == nil {
			return 0
		}
		return float64(p.server.Download().History().Metrics().Overwritten)
	})

	srv, err := server.New(lib, &server.Options{
		DataType:     cfg.SampleDataType(),
		HistoryBytes: cfg.HistoryBytes,
		Interval:     cfg.HistoryInterval,
		Clock:        clock,
		Metrics:      m,
	}, logger)
	if err != nil {
		return nil, err
	}
	p.server = srv

	if cfg.Providers.Battery {
		p.battery = server.NewBatteryService()
		if err := srv.RegisterProvider(p.battery); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.WiFi || cfg.Providers.AltDeviceName {
		p.settings = server.NewSettingsService(server.SettingsOptions{
			EnableWiFi:          cfg.Providers.WiFi,
			EnableAltDeviceName: cfg.Providers.AltDeviceName,
		}, logger)
		p.settings.OnDeviceNameChange(func(name string) {
			logger.WithField("name", name).Info("Device name updated by central")
		})
		p.settings.OnWiFiChange(func(ssid, _ string) {
			logger.WithField("ssid", ssid).Info("Wi-Fi credentials received")
		})
		if err := srv.RegisterProvider(p.settings); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.FRC {
		p.frc = server.NewFRCService(logger)
		p.frc.OnRequest(func(ppm uint16) {
			logger.WithField("reference_ppm", ppm).Info("Recalibration requested; synthetic sensor ignores it")
		})
		if err := srv.RegisterProvider(p.frc); err != nil {
			return nil, err
		}
	}
	return p, nil
}
