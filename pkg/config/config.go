// Package config holds the blehist application configuration. Defaults come
// from struct tags; a YAML file may override any subset of keys.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/sample"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output formats understood by the CLI.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"`

	DataType        string        `yaml:"data_type" default:"T_RH_V3"`
	HistoryInterval time.Duration `yaml:"history_interval" default:"10m"`
	HistoryBytes    int           `yaml:"history_bytes" default:"30000"`

	CommitInterval time.Duration `yaml:"commit_interval" default:"1s"`
	DriveInterval  time.Duration `yaml:"drive_interval" default:"20ms"`

	// DeviceAddress overrides the controller address used for the device id.
	DeviceAddress string `yaml:"device_address" default:""`
	MetricsAddr   string `yaml:"metrics_addr" default:":9464"`

	Providers ProvidersConfig `yaml:"providers"`
}

// ProvidersConfig toggles the optional GATT services.
type ProvidersConfig struct {
	Battery       bool `yaml:"battery" default:"true"`
	WiFi          bool `yaml:"wifi" default:"false"`
	AltDeviceName bool `yaml:"alt_device_name" default:"true"`
	FRC           bool `yaml:"frc" default:"false"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file on top of the defaults. An empty path yields the
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	switch c.OutputFormat {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("%w: output_format %q (want %s or %s)", ErrInvalidConfig, c.OutputFormat, OutputTable, OutputJSON)
	}

	dt, err := sample.ParseDataType(c.DataType)
	if err != nil {
		return fmt.Errorf("%w: data_type: %w", ErrInvalidConfig, err)
	}
	size := sample.MustLookup(dt).SampleSizeBytes
	if c.HistoryBytes < 2*size {
		return fmt.Errorf("%w: history_bytes %d cannot hold a %s sample", ErrInvalidConfig, c.HistoryBytes, dt)
	}
	// one slot stays free; the rest must fit the 16-bit download sample count
	if c.HistoryBytes/size-1 > math.MaxUint16 {
		return fmt.Errorf("%w: history_bytes %d holds more than %d %s samples", ErrInvalidConfig, c.HistoryBytes, math.MaxUint16, dt)
	}
	if c.HistoryInterval < time.Millisecond {
		return fmt.Errorf("%w: history_interval %v", ErrInvalidConfig, c.HistoryInterval)
	}
	if c.HistoryInterval.Milliseconds() > int64(^uint32(0)) {
		return fmt.Errorf("%w: history_interval %v does not fit 32-bit milliseconds", ErrInvalidConfig, c.HistoryInterval)
	}
	if c.CommitInterval <= 0 || c.DriveInterval <= 0 {
		return fmt.Errorf("%w: loop intervals must be positive", ErrInvalidConfig)
	}
	return nil
}

// SampleDataType returns the validated data type.
func (c *Config) SampleDataType() sample.DataType {
	dt, err := sample.ParseDataType(c.DataType)
	if err != nil {
		return sample.DefaultDataType
	}
	return dt
}

// Level returns the parsed log level, info when unparseable.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
