package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josephlewis42/rsh/core"
	"github.com/spf13/cobra"
)

var (
	serveAddress  string
	servePort     int
	serveThreaded bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shell server on a local port.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("ip") {
			configuration.BindAddress = serveAddress
		}
		if cmd.Flags().Changed("port") {
			configuration.Port = servePort
		}
		if cmd.Flags().Changed("threaded") {
			configuration.Threaded = serveThreaded
		}

		server, err := core.NewServer(configuration, log)
		if err != nil {
			return err
		}
		server.CommandStderr = cmd.ErrOrStderr()

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.ListenAndServe()
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			log.Info().Stringer("signal", sig).Msg("terminating")
		case err := <-serveErr:
			if err != nil && !errors.Is(err, core.ErrServerClosed) {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("sessions still running at shutdown")
		}
		log.Info().Msg("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddress, "ip", "i", "0.0.0.0", "address to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 1234, "port to listen on")
	serveCmd.Flags().BoolVarP(&serveThreaded, "threaded", "x", false, "serve clients concurrently")
}
