package cmd

import (
	"fmt"
	"os"

	"genesis/config"
	"genesis/logger"
	"genesis/server"

	"github.com/spf13/cobra"
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "genesis",
	Short: "genesis is a personal music player.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.DefaultConfig(cfg.LogLevel, cfg.LogPath))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
