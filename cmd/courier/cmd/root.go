package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier WebSocket message relay",
	Long: `Courier relays JSON messages from authenticated publishers to
topic-filtered WebSocket subscribers.

Available commands:
  serve    Start the relay server

Use "courier [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
