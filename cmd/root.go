package cmd

import (
	"errors"
	"io/fs"

	"github.com/josephlewis42/rsh/core/config"
	"github.com/josephlewis42/rsh/core/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

// loadConfig loads the configuration from --config, falling back to the
// built-in defaults if init was never run.
func loadConfig(cmd *cobra.Command) (*config.Configuration, zerolog.Logger, error) {
	configuration, err := config.Load(cfgPath)
	missing := errors.Is(err, fs.ErrNotExist)
	switch {
	case missing:
		configuration = config.DefaultConfig()
	case err != nil:
		return nil, zerolog.Nop(), err
	}

	if cmd.Flags().Changed("log-level") {
		configuration.LogLevel = logLevel
	}

	level, err := logger.ParseLevel(configuration.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.ForFormat(cmd.ErrOrStderr(), configuration.LogFormat, level)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	if missing {
		log.Warn().Str("config", cfgPath).Msg("couldn't load config, using defaults: did you run init?")
	}

	return configuration, log, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rsh",
	Short: "Remote shell",
	Long:  `A tiny remote shell: clients send command lines over TCP and the server runs them.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, disabled)")
}
