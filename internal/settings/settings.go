// Package settings loads the host process configuration from a TOML
// file. This is operator configuration for the host itself; bot
// behavior comes from deployed scripts, never from here.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults applied when the file is absent or a field is omitted.
const (
	DefaultDatabasePath      = "swarmhost.db"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultReconcileInterval = time.Second
	DefaultIdlePoll          = time.Minute
)

// Settings is the host process configuration.
type Settings struct {
	DatabasePath string `toml:"database_path"`
	Log          Log    `toml:"log"`
	Pool         Pool   `toml:"pool"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Pool configures the instance pool.
type Pool struct {
	ReconcileInterval Duration `toml:"reconcile_interval"`
	IdlePoll          Duration `toml:"idle_poll"`
}

// Duration is a time.Duration that reads TOML strings like "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		DatabasePath: DefaultDatabasePath,
		Log: Log{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Pool: Pool{
			ReconcileInterval: Duration(DefaultReconcileInterval),
			IdlePoll:          Duration(DefaultIdlePoll),
		},
	}
}

// Load reads settings from a TOML file, filling omitted fields with
// defaults. A missing file is not an error when path is empty.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, fmt.Errorf("settings file %q does not exist", path)
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", s.Log.Format)
	}
	if s.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	if s.Pool.ReconcileInterval <= 0 {
		return errors.New("pool.reconcile_interval must be positive")
	}
	if s.Pool.IdlePoll <= 0 {
		return errors.New("pool.idle_poll must be positive")
	}
	return nil
}
