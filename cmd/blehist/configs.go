package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/blehist/internal/sample"
	"github.com/srg/blehist/pkg/config"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type configInfo struct {
	SampleType       uint8    `json:"sample_type"`
	DownloadType     uint16   `json:"download_type"`
	SampleSize       int      `json:"sample_size"`
	SamplesPerPacket int      `json:"samples_per_packet"`
	Signals          []string `json:"signals"`
}

func newConfigsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List supported sample layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return printConfigs(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", config.OutputTable, "Output format (table, json)")
	return cmd
}

func sampleConfig(cfg *config.Config) (sample.Config, error) {
	dt, err := sample.ParseDataType(cfg.DataType)
	if err != nil {
		return sample.Config{}, err
	}
	return sample.Lookup(dt)
}

func printConfigs(w io.Writer, format string) error {
	infos := orderedmap.New[string, configInfo]()
	for _, c := range sample.Configs() {
		info := configInfo{
			SampleType:       c.SampleType,
			DownloadType:     c.DownloadType,
			SampleSize:       c.SampleSizeBytes,
			SamplesPerPacket: c.SampleCountPerPacket,
		}
		for _, sig := range c.Signals() {
			info.Signals = append(info.Signals, sig.String())
		}
		infos.Set(c.DataType.String(), info)
	}

	if format == config.OutputJSON {
		return writeJSON(w, infos)
	}

	table := newTable(w)
	fmt.Fprintln(table, "DATA TYPE\tADV TYPE\tDOWNLOAD TYPE\tSIZE\tPER PACKET\tSIGNALS")
	for pair := infos.Oldest(); pair != nil; pair = pair.Next() {
		info := pair.Value
		fmt.Fprintf(table, "%s\t%d\t%d\t%d\t%d\t%s\n", pair.Key, info.SampleType, info.DownloadType,
			info.SampleSize, info.SamplesPerPacket, strings.Join(info.Signals, ","))
	}
	return table.Flush()
}
