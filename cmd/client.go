package cmd

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/josephlewis42/rsh/core"
	"github.com/josephlewis42/rsh/core/wire"
	"github.com/spf13/cobra"
)

var clientAddress string

// clientCmd connects to a server
var clientCmd = &cobra.Command{
	Use:   "client [command...]",
	Short: "Connect to a shell server.",
	Long: `Connect to a shell server. With arguments, they're run as a single
command line and the client exits; without, command lines are read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		client, err := core.Dial(clientAddress)
		if err != nil {
			return err
		}
		defer client.Close()

		if len(args) > 0 {
			err := client.Exec(strings.Join(args, " "), cmd.OutOrStdout())
			if err == nil {
				// Let a single-threaded server move on to the next client.
				err = client.Exec("exit", io.Discard)
			}
			if errors.Is(err, wire.ErrConnectionClosed) {
				return nil
			}
			return err
		}

		lines, err := core.NewLineReader(os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr(), core.DefaultPrompt)
		if err != nil {
			return err
		}
		return client.Interact(lines, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)

	// Flags after the first argument belong to the remote command.
	clientCmd.Flags().SetInterspersed(false)
	clientCmd.Flags().StringVarP(&clientAddress, "connect", "c", "127.0.0.1:1234", "server address")
}
