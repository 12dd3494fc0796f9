package cmd

import (
	"genesis/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the genesis server",
	Long:  `Start the HTTP server that serves the player API, the websocket player channel and the web client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
