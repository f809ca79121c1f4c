package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blehist/internal/groutine"
	"github.com/srg/blehist/internal/server"
	"github.com/srg/blehist/internal/transport/goble"
	"github.com/srg/blehist/pkg/config"
)

const metricsShutdownTimeout = 5 * time.Second

type serveOptions struct {
	dataType     string
	interval     time.Duration
	address      string
	metricsAddr  string
	batteryLevel int
	verbose      bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the BLE history peripheral",
		Long: `Run the peripheral on the local Bluetooth controller.

A synthetic sensor feeds readings on every commit tick. Readings are
advertised immediately and archived once per history interval. Centrals
download the history by subscribing to the download packet characteristic.

Prometheus metrics are exposed on --metrics-addr unless it is empty.`,
		Example: `  blehist serve --data-type T_RH_CO2 --interval 1m
  blehist serve --config blehist.yaml --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dataType, "data-type", "t", "", "Sample layout (see 'blehist configs')")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", 0, "History interval")
	cmd.Flags().StringVar(&opts.address, "address", "", "Override the controller address used for the device id")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address")
	cmd.Flags().IntVar(&opts.batteryLevel, "battery-level", 100, "Reported battery level in percent")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	return cmd
}

// applyServeFlags copies explicitly set flags over the configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, opts *serveOptions) {
	if cmd.Flags().Changed("data-type") {
		cfg.DataType = opts.dataType
	}
	if cmd.Flags().Changed("interval") {
		cfg.HistoryInterval = opts.interval
	}
	if cmd.Flags().Changed("address") {
		cfg.DeviceAddress = opts.address
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg, opts)

	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := goble.Open(cfg.DeviceAddress, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := lib.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release BLE device")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p, err := newPeripheral(lib, cfg, time.Now, reg, logger)
	if err != nil {
		return err
	}
	if p.battery != nil {
		if err := p.battery.SetLevel(opts.batteryLevel); err != nil {
			return err
		}
	}
	if err := p.server.Begin(); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	sensor := newSyntheticSensor(time.Now)
	err = p.server.Run(ctx, server.RunOptions{
		Measure:        sensor.Measure,
		CommitInterval: cfg.CommitInterval,
		DriveInterval:  cfg.DriveInterval,
	})
	logger.Info("Peripheral stopped")
	return err
}

// serveMetrics exposes reg over HTTP until the returned shutdown is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *logrus.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := groutine.Go(ctx, "metrics-http", func(context.Context) {
		logger.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	})

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown")
		}
		<-worker.Done()
	}
}
