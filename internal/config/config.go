// Package config resolves application settings from flags, environment,
// .env and the config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
const EnvPrefix = "BALANCE"

// EnvKeyReplacer maps nested keys such as matching.window_days to
// BALANCE_MATCHING_WINDOW_DAYS.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Config is the fully resolved application configuration.
type Config struct {
	DatabasePath    string
	LogLevel        string
	LogFormat       string
	ServerAddr      string
	NotesSeparator  string
	ShutdownTimeout time.Duration
	MatchWindowDays int
	MaxMatchResults int
}

// Defaults registers default values for every key on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/balance/balance.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("matching.window_days", 15)
	v.SetDefault("matching.max_results", 10)
	v.SetDefault("merge.notes_separator", "\n")
}

// LoadDotEnv loads variables from a .env file in the working directory.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads the resolved configuration out of v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath:    ExpandPath(v.GetString("database.path")),
		LogLevel:        v.GetString("logging.level"),
		LogFormat:       v.GetString("logging.format"),
		ServerAddr:      v.GetString("server.addr"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		MatchWindowDays: v.GetInt("matching.window_days"),
		MaxMatchResults: v.GetInt("matching.max_results"),
		NotesSeparator:  v.GetString("merge.notes_separator"),
	}

	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database.path cannot be empty")
	}
	if cfg.MatchWindowDays <= 0 {
		return nil, fmt.Errorf("matching.window_days must be positive, got %d", cfg.MatchWindowDays)
	}
	if cfg.MaxMatchResults <= 0 {
		return nil, fmt.Errorf("matching.max_results must be positive, got %d", cfg.MaxMatchResults)
	}
	return cfg, nil
}

// ExpandPath resolves a leading ~ to the home directory, then expands $VAR
// references. When the home directory is unknown the tilde is left alone.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
