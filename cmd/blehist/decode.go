package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
	"github.com/srg/blehist/pkg/config"
)

// Frame kinds accepted by decode.
const (
	kindHeader        = "header"
	kindPacket        = "packet"
	kindAdvertisement = "adv"
)

type decodeOptions struct {
	dataType string
	kind     string
	format   string
}

type decodedFrame struct {
	Kind       string           `json:"kind"`
	Header     *protocol.Header `json:"header,omitempty"`
	Sequence   *uint16          `json:"sequence,omitempty"`
	DeviceID   string           `json:"device_id,omitempty"`
	SampleType *uint8           `json:"sample_type,omitempty"`
	Samples    []decodedSample  `json:"samples,omitempty"`
}

func newDecodeCmd() *cobra.Command {
	opts := &decodeOptions{}
	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a captured download or advertisement frame",
		Long: `Decode one frame captured from the air. The frame is given as hex; spaces,
colons and dashes between bytes are ignored.

Kinds:
  header   20-byte download header (sequence 0)
  packet   download packet: sequence followed by samples
  adv      manufacturer data, company id first`,
		Example: `  blehist decode --kind header 000000000500c0270900dc050000070000000000
  blehist decode --kind packet 01:00:9a:6c:00:80 -t T_RH_V3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.dataType, "data-type", "t", string(sample.DefaultDataType), "Sample layout of packet and adv frames")
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", kindPacket, "Frame kind (header, packet, adv)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", config.OutputTable, "Output format (table, json)")
	return cmd
}

func parseHex(s string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "").Replace(strings.TrimSpace(s))
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return b, nil
}

func runDecode(cmd *cobra.Command, opts *decodeOptions, arg string) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	dt, err := sample.ParseDataType(opts.dataType)
	if err != nil {
		return err
	}
	cfg := sample.MustLookup(dt)
	frame, err := parseHex(arg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	out, err := decodeFrame(frame, opts.kind, cfg)
	if err != nil {
		return err
	}
	if opts.format == config.OutputJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return printFrame(cmd.OutOrStdout(), out)
}

func decodeFrame(frame []byte, kind string, cfg sample.Config) (*decodedFrame, error) {
	out := &decodedFrame{Kind: kind}
	switch kind {
	case kindHeader:
		h, err := protocol.DecodeHeader(frame)
		if err != nil {
			return nil, err
		}
		out.Header = &h

	case kindPacket:
		p, err := protocol.DecodePacket(frame, cfg.SampleSizeBytes)
		if err != nil {
			return nil, err
		}
		out.Sequence = &p.Sequence
		for i, s := range p.Samples {
			out.Samples = append(out.Samples, decodedSample{Index: i, Values: decodeSample(cfg, s)})
		}

	case kindAdvertisement:
		adv, err := protocol.DecodeAdvertisement(frame)
		if err != nil {
			return nil, err
		}
		out.DeviceID = protocol.DeviceIDString(adv.DeviceID)
		out.SampleType = &adv.SampleType
		if len(adv.Sample) > 0 {
			out.Samples = []decodedSample{{Values: decodeSample(cfg, adv.Sample)}}
		}

	default:
		return nil, fmt.Errorf("unknown frame kind %q (use %s, %s or %s)", kind, kindHeader, kindPacket, kindAdvertisement)
	}
	return out, nil
}

func printFrame(w io.Writer, f *decodedFrame) error {
	table := newTable(w)
	switch {
	case f.Header != nil:
		printHeading(w, "Download header")
		fmt.Fprintf(table, "Sample type:\t%d\n", f.Header.SampleType)
		fmt.Fprintf(table, "Interval:\t%d ms\n", f.Header.IntervalMs)
		fmt.Fprintf(table, "Latest sample age:\t%d ms\n", f.Header.AgeLatestMs)
		fmt.Fprintf(table, "Sample count:\t%d\n", f.Header.SampleCount)
	case f.Sequence != nil:
		printHeading(w, "Download packet %d", *f.Sequence)
	case f.SampleType != nil:
		printHeading(w, "Advertisement from %s", f.DeviceID)
		fmt.Fprintf(table, "Sample type:\t%d\n", *f.SampleType)
	}
	for _, s := range f.Samples {
		for pair := s.Values.Oldest(); pair != nil; pair = pair.Next() {
			fmt.Fprintf(table, "[%d] %s:\t%.2f\n", s.Index, pair.Key, pair.Value)
		}
	}
	return table.Flush()
}
