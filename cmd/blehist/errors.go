package main

import (
	"errors"
	"fmt"

	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
	"github.com/srg/blehist/pkg/config"
)

// Command-level errors
var (
	// ErrInvalidFormat is returned for an unsupported --format value.
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrDownloadIncomplete indicates the simulated central did not receive
	// every frame announced by the header.
	ErrDownloadIncomplete = errors.New("download incomplete")
)

// FormatUserError turns an error chain into a message with a hint where
// one helps.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sample.ErrUnknownDataType):
		return fmt.Sprintf("%v (run 'blehist configs' to list data types)", err)
	case errors.Is(err, protocol.ErrShortFrame), errors.Is(err, protocol.ErrBadLayout):
		return fmt.Sprintf("malformed frame: %v", err)
	case errors.Is(err, config.ErrInvalidConfig):
		return err.Error()
	case errors.Is(err, ErrInvalidFormat):
		return fmt.Sprintf("%v (use table or json)", err)
	default:
		return err.Error()
	}
}
