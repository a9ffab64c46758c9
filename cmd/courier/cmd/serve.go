package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/courier/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Run: func(cmd *cobra.Command, args []string) {
		s := server.New()
		s.RegisterRoutes()
		s.Start(s.Cfg.Addr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
