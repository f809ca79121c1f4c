package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/srg/blehist/internal/download"
	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/server"
	"github.com/srg/blehist/internal/transport/loopback"
	"github.com/srg/blehist/pkg/config"
)

// simulatedAddress gives the simulated peripheral the device id BE:EF.
const simulatedAddress = "C0:FF:EE:00:BE:EF"

var simulationEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type simulateOptions struct {
	dataType  string
	interval  time.Duration
	samples   int
	requested uint32
	format    string
	verbose   bool
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a complete download against an in-memory peripheral",
		Long: `Archive synthetic readings into an in-memory peripheral, then act as a
central: connect, request samples, subscribe to the download characteristic
and reassemble the notified frames. Time is simulated, so any number of
history intervals elapse instantly.`,
		Example: `  blehist simulate --samples 12 --data-type T_RH_CO2
  blehist simulate --samples 500 --requested 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dataType, "data-type", "t", "", "Sample layout (see 'blehist configs')")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", 0, "History interval")
	cmd.Flags().IntVarP(&opts.samples, "samples", "n", 10, "Number of samples to archive")
	cmd.Flags().Uint32VarP(&opts.requested, "requested", "r", 0, "Most recent samples to download (0 for all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", config.OutputTable, "Output format (table, json)")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	return cmd
}

// simClock is advanced explicitly by the simulation.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("data-type") {
		cfg.DataType = opts.dataType
	}
	if cmd.Flags().Changed("interval") {
		cfg.HistoryInterval = opts.interval
	}
	if cmd.Flags().Changed("format") {
		cfg.OutputFormat = opts.format
	}
	if err := validateFormat(cfg.OutputFormat); err != nil {
		return err
	}
	if opts.samples < 0 {
		return errors.New("--samples must not be negative")
	}

	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	clock := &simClock{now: simulationEpoch}
	dataCfg, err := sampleConfig(cfg)
	if err != nil {
		return err
	}
	queue := protocol.PacketsRequired(uint32(opts.samples), uint32(dataCfg.SampleCountPerPacket)) + 2
	lib := loopback.New(simulatedAddress, queue, logger)

	p, err := newPeripheral(lib, cfg, clock.Now, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}
	if err := p.server.Begin(); err != nil {
		return err
	}

	sensor := newSyntheticSensor(clock.Now)
	for i := 0; i < opts.samples; i++ {
		if i > 0 {
			clock.Advance(cfg.HistoryInterval)
		}
		sensor.Measure(p.server)
		if _, err := p.server.CommitSample(); err != nil {
			return err
		}
	}

	frames, err := centralDownload(lib, p.server, opts.requested)
	if err != nil {
		return err
	}
	t, err := reassemble(frames, dataCfg)
	if err != nil {
		return err
	}
	t.DeviceID = p.server.DeviceID()

	if cfg.OutputFormat == config.OutputJSON {
		return writeJSON(cmd.OutOrStdout(), t)
	}
	return printTranscript(cmd.OutOrStdout(), t)
}

// centralDownload plays the central side of one download session.
func centralDownload(lib *loopback.Library, srv *server.Server, requested uint32) ([][]byte, error) {
	lib.Connect()
	defer lib.Disconnect()

	value := make([]byte, 4)
	binary.LittleEndian.PutUint32(value, requested)
	if err := lib.Write(server.RequestedSamplesUUID, value); err != nil {
		return nil, err
	}
	if err := lib.Subscribe(server.DownloadPacketUUID); err != nil {
		return nil, err
	}

	for {
		status, err := srv.HandleDownload()
		if err != nil {
			return nil, err
		}
		if status == download.StatusIdle {
			break
		}
	}
	if dropped := lib.Dropped(); dropped > 0 {
		return nil, fmt.Errorf("%w: %d notifications dropped", ErrDownloadIncomplete, dropped)
	}

	notifications := lib.Drain()
	frames := make([][]byte, len(notifications))
	for i, n := range notifications {
		frames[i] = n.Value
	}
	return frames, nil
}

func printTranscript(w io.Writer, t *transcript) error {
	printHeading(w, "%s", t.summary())
	if t.DeviceID != "" {
		fmt.Fprintf(w, "Device ID: %s\n", t.DeviceID)
	}
	if len(t.Samples) == 0 {
		fmt.Fprintln(w, "No samples in history")
		return nil
	}
	fmt.Fprintln(w)

	table := newTable(w)
	columns := []string{"#", "AGE"}
	for pair := t.Samples[0].Values.Oldest(); pair != nil; pair = pair.Next() {
		columns = append(columns, strings.ToUpper(pair.Key))
	}
	fmt.Fprintln(table, strings.Join(columns, "\t"))

	for _, s := range t.Samples {
		row := []string{fmt.Sprint(s.Index), (time.Duration(s.AgeMs) * time.Millisecond).String()}
		for pair := s.Values.Oldest(); pair != nil; pair = pair.Next() {
			row = append(row, fmt.Sprintf("%.2f", pair.Value))
		}
		fmt.Fprintln(table, strings.Join(row, "\t"))
	}
	return table.Flush()
}
