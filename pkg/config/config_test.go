package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, OutputTable, cfg.OutputFormat)
	assert.Equal(t, "T_RH_V3", cfg.DataType)
	assert.Equal(t, 10*time.Minute, cfg.HistoryInterval)
	assert.Equal(t, 30000, cfg.HistoryBytes)
	assert.Equal(t, time.Second, cfg.CommitInterval)
	assert.Equal(t, 20*time.Millisecond, cfg.DriveInterval)
	assert.True(t, cfg.Providers.Battery)
	assert.True(t, cfg.Providers.AltDeviceName)
	assert.False(t, cfg.Providers.WiFi)
	assert.False(t, cfg.Providers.FRC)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: "debug", want: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: "info", want: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: "warn", want: logrus.WarnLevel},
		{name: "creates logger with error level", logLevel: "error", want: logrus.ErrorLevel},
		{name: "falls back to info", logLevel: "chatty", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		valid  bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}, valid: true},
		{name: "json output is valid", mutate: func(c *Config) { c.OutputFormat = OutputJSON }, valid: true},
		{name: "lowercase data type is accepted", mutate: func(c *Config) { c.DataType = "t-rh-co2" }, valid: true},
		{name: "csv output is rejected", mutate: func(c *Config) { c.OutputFormat = "csv" }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }},
		{name: "unknown data type", mutate: func(c *Config) { c.DataType = "T_RH_V9" }},
		{name: "history too small", mutate: func(c *Config) { c.HistoryBytes = 4 }},
		{name: "history at the 16-bit count limit", mutate: func(c *Config) { c.HistoryBytes = 4 * 65536 }, valid: true},
		{name: "history beyond the 16-bit count limit", mutate: func(c *Config) { c.HistoryBytes = 1000000 }},
		{name: "zero interval", mutate: func(c *Config) { c.HistoryInterval = 0 }},
		{name: "interval overflows u32 ms", mutate: func(c *Config) { c.HistoryInterval = 50 * 24 * time.Hour }},
		{name: "zero drive interval", mutate: func(c *Config) { c.DriveInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blehist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
data_type: T_RH_CO2
history_interval: 30s
providers:
  frc: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, sample.TRHCO2, cfg.SampleDataType())
	assert.Equal(t, 30*time.Second, cfg.HistoryInterval)
	assert.True(t, cfg.Providers.FRC)
	assert.True(t, cfg.Providers.Battery, "keys absent from the file MUST keep their defaults")
	assert.Equal(t, 30000, cfg.HistoryBytes)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("history_bytes: [1, 2"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("data_type: NOPE\n"), 0o600))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}
