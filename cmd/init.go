package cmd

import (
	"github.com/josephlewis42/rsh/core/config"
	"github.com/josephlewis42/rsh/core/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// initCmd intializes the server configuration
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Initialize the server configuration, defaults to the current directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		log := logger.New(cmd.ErrOrStderr(), zerolog.InfoLevel)
		_, err := config.Initialize(dir, log)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
