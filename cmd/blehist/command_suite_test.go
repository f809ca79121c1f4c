package main

import (
	"bytes"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"
)

// CommandTestSuite runs commands built by newRootCmd, so every test gets
// fresh flag state.
type CommandTestSuite struct {
	suite.Suite
	noColor bool
}

// SetupSuite disables colors so output can be compared verbatim.
func (s *CommandTestSuite) SetupSuite() {
	s.noColor = color.NoColor
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	color.NoColor = s.noColor
}

// ExecuteCommand runs the root command with args, returns stdout and error.
// Logs written to stderr are kept out of the returned output.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	cmd := newRootCmd()
	return s.execute(cmd, args...)
}

func (s *CommandTestSuite) execute(cmd *cobra.Command, args ...string) (string, error) {
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
