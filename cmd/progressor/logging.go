package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/progressor/pkg/config"
)

// loadConfig reads --config when given, otherwise returns the defaults.
// fromFile reports whether a file was read.
func loadConfig(cmd *cobra.Command) (cfg *config.Config, fromFile bool, err error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), false, nil
	}
	cfg, err = config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose, which takes precedence over the
// config file. Without any of them the CLI stays silent.
func configureLogger(cmd *cobra.Command, cfg *config.Config, fromFile bool) (*logrus.Logger, error) {
	// Default to panic level (essentially silent for normal operations)
	logLevel := logrus.PanicLevel

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool("verbose")
	switch {
	case logLevelStr != "":
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	case verbose:
		logLevel = logrus.DebugLevel
	case fromFile:
		logLevel = cfg.Level()
	}

	logger := cfg.NewLogger()
	logger.SetLevel(logLevel)
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}

// setup loads configuration and the logger shared by every command
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, fromFile, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := configureLogger(cmd, cfg, fromFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
