package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/blehist/pkg/config"
)

var headingColor = color.New(color.FgCyan, color.Bold)

func validateFormat(format string) error {
	switch format {
	case config.OutputTable, config.OutputJSON:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printHeading writes a colored line; color is dropped when w is not a terminal.
func printHeading(w io.Writer, format string, args ...interface{}) {
	headingColor.Fprintf(w, format+"\n", args...)
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
