package config

import (
	"errors"
	"io/fs"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Initialize writes a default configuration to path, existing files are
// left untouched.
func Initialize(path string, logger zerolog.Logger) (*Configuration, error) {
	return InitializeFs(afero.NewOsFs(), path, logger)
}

// InitializeFs writes a default configuration to a directory of fs.
func InitializeFs(base afero.Fs, path string, logger zerolog.Logger) (*Configuration, error) {
	if err := base.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	configFs := afero.NewBasePathFs(base, path)

	switch _, err := configFs.Stat(ConfigurationName); {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info().Str("file", ConfigurationName).Msg("writing default configuration")
		if err := afero.WriteFile(configFs, ConfigurationName, defaultConfigData, 0600); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		logger.Info().Str("file", ConfigurationName).Msg("configuration exists, skipping")
	}

	logger.Info().Str("dir", LogsDirName).Msg("creating session log directory")
	if err := configFs.MkdirAll(LogsDirName, 0700); err != nil {
		return nil, err
	}

	return LoadFs(base, path)
}
