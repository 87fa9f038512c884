package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/swarmhost/swarmhost/internal/logging"
	"github.com/swarmhost/swarmhost/internal/logging/writers"
	"github.com/swarmhost/swarmhost/internal/settings"
)

// setupLogger configures the default logger from settings, with the
// command line flags taking precedence.
func setupLogger(cmd *cli.Command, s settings.Settings) error {
	level := s.Log.Level
	if v := cmd.Root().String("log-level"); v != "" {
		level = v
	}
	format := s.Log.Format
	if v := cmd.Root().String("log-format"); v != "" {
		format = v
	}

	writer, err := writers.CreateWriter(cmd.Root().String("log-output"))
	if err != nil {
		return fmt.Errorf("log output: %w", err)
	}

	slog.SetDefault(slog.New(logging.SetupHandler(format, level, writer)))
	return nil
}

// loadSettings reads the settings file named by the root --settings
// flag, or the defaults when the flag is absent.
func loadSettings(cmd *cli.Command) (settings.Settings, error) {
	return settings.Load(cmd.Root().String("settings"))
}
