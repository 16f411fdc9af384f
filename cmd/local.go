package cmd

import (
	"os"

	"github.com/josephlewis42/rsh/core"
	"github.com/spf13/cobra"
)

// localCmd runs the shell without a server
var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run the shell locally on this terminal.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		lines, err := core.NewLineReader(os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr(), core.DefaultPrompt)
		if err != nil {
			return err
		}

		opts := []core.SessionOpt{
			core.WithLogger(log),
			core.WithMaxPipeline(configuration.MaxPipeline),
		}
		// Piped input is read ahead by the line reader, only a terminal can be
		// shared with commands between prompts.
		if core.IsTerminal(os.Stdin) {
			opts = append(opts, core.WithStdin(os.Stdin))
		}

		shell := core.NewLocalShell(lines, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts...)

		status, err := shell.Run()
		if err != nil {
			return err
		}
		if status != 0 {
			os.Exit(status & 0xff)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(localCmd)
}
