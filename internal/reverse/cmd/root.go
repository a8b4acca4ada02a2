// Package cmd implements the reverse command-line wrapper: a thin,
// separately-testable consumer of the disassembly engine. It never gets
// imported back by the engine or its supporting packages.
package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"reverse/internal/logging"
)

var logger = logging.NewLogger()

var rootCmd = &cobra.Command{
	Use:   "reverse",
	Short: "A recursive-descent disassembler for ELF binaries",
	Long: `reverse loads an ELF image, recursively disassembles it from its
entry point and exported symbols, and prints the resulting listing.`,
	SilenceUsage: true,
}

// Execute runs the CLI, rendering --help through fang for a polished
// presentation, and exits 1 on any command error.
func Execute() {
	defer logger.Close()
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
