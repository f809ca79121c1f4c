package main

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
	"github.com/srg/blehist/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown data type", fmt.Errorf("lookup: %w", sample.ErrUnknownDataType), "run 'blehist configs'"},
		{"short frame", &protocol.FrameError{Kind: protocol.FrameErrorShort, Msg: "header needs 20 bytes, got 2"}, "malformed frame"},
		{"invalid format", fmt.Errorf("%w: %q", ErrInvalidFormat, "xml"), "use table or json"},
		{"plain", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUserError(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}

	t.Run("defaults to configured level", func(t *testing.T) {
		logger, err := configureLogger(newCmd(), config.DefaultConfig(), "verbose")
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		logger, err := configureLogger(cmd, config.DefaultConfig(), "verbose")
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("log-level wins over verbose", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		require.NoError(t, cmd.Flags().Set("log-level", "error"))
		logger, err := configureLogger(cmd, config.DefaultConfig(), "verbose")
		require.NoError(t, err)
		assert.Equal(t, logrus.ErrorLevel, logger.GetLevel())
	})

	t.Run("invalid level", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("log-level", "loud"))
		_, err := configureLogger(cmd, config.DefaultConfig(), "verbose")
		assert.ErrorContains(t, err, "invalid log level")
	})
}

func TestSyntheticValue_StaysInEncodableRange(t *testing.T) {
	// GOAL: Verify synthetic readings never saturate their wire encoding
	//
	// TEST SCENARIO: sweep a full period for every signal → value round-trips within 1%

	for _, cfg := range sample.Configs() {
		for _, sig := range cfg.Signals() {
			for step := 0; step < 16; step++ {
				phase := 2 * math.Pi * float64(step) / 16
				want := syntheticValue(sig, phase)

				s := sample.New(cfg.SampleSizeBytes)
				raw, offset, ok := cfg.Encode(sig, want)
				require.True(t, ok)
				s.WriteValue(raw, offset)
				got, ok := cfg.Decode(sig, s)
				require.True(t, ok)

				assert.InDelta(t, want, got, math.Abs(float64(want))*0.01+0.1,
					"%s/%s MUST round-trip at phase %.2f", cfg.DataType, sig, phase)
			}
		}
	}
}

func TestReassemble(t *testing.T) {
	cfg := sample.MustLookup(sample.TRHV3)
	samples := make([]sample.Sample, 5)
	for i := range samples {
		samples[i] = sample.New(cfg.SampleSizeBytes)
		samples[i].WriteValue(uint16(i), 2)
	}
	header := protocol.EncodeHeader(protocol.Header{SampleType: cfg.DownloadType, IntervalMs: 1000, AgeLatestMs: 250, SampleCount: 5})
	first := protocol.EncodePacket(1, samples[:4], cfg.SampleSizeBytes)
	second := protocol.EncodePacket(2, samples[4:], cfg.SampleSizeBytes)

	t.Run("complete download", func(t *testing.T) {
		tr, err := reassemble([][]byte{header, first, second}, cfg)
		require.NoError(t, err)
		require.Len(t, tr.Samples, 5)
		assert.Equal(t, 2, tr.Packets)
		assert.Equal(t, uint64(4250), tr.Samples[0].AgeMs, "oldest sample MUST be (count-1) intervals older than the latest")
		assert.Equal(t, uint64(250), tr.Samples[4].AgeMs)
		assert.Contains(t, tr.summary(), "Downloaded 5 samples of T_RH_V3 in 2 packets")
	})

	t.Run("missing packet", func(t *testing.T) {
		_, err := reassemble([][]byte{header, first}, cfg)
		assert.ErrorIs(t, err, ErrDownloadIncomplete)
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := reassemble([][]byte{header, second, first}, cfg)
		assert.ErrorIs(t, err, ErrDownloadIncomplete)
	})

	t.Run("no header", func(t *testing.T) {
		_, err := reassemble(nil, cfg)
		assert.ErrorIs(t, err, ErrDownloadIncomplete)
	})

	t.Run("layout mismatch", func(t *testing.T) {
		_, err := reassemble([][]byte{header}, sample.MustLookup(sample.TRHCO2))
		assert.ErrorIs(t, err, protocol.ErrBadLayout)
	})
}
