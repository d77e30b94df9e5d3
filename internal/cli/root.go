// Package cli provides the command-line interface for AttendLog.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	return run(NewRootCommand())
}

func run(rootCmd *cobra.Command) int {
	commands.ExitCode = commands.ExitAllPresent

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "attendlog",
		Short: "Compute class attendance from meeting participation logs",
		Long: `AttendLog computes per-student attendance from a video-meeting participation
export and an optional class roster.

It resolves each display name to one student identity, merges overlapping
sessions, and decides Present / Absent / Needs Review against a configurable
threshold. It also flags:
  - Overlapping sessions (two devices)
  - Disconnect and reconnect events
  - Attendance under a name without a student ID (naming penalty)
  - Roster students missing from the log

Reports are written as xlsx, JSON or text. The same processor is available
over HTTP with 'attendlog serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewProcessCommand())
	rootCmd.AddCommand(commands.NewKeysCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
