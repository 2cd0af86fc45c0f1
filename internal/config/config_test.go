package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	Defaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local/share/balance/balance.db"), cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15, cfg.MatchWindowDays)
	assert.Equal(t, 10, cfg.MaxMatchResults)
	assert.Equal(t, "\n", cfg.NotesSeparator)
}

func TestLoad_FromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/books.db
matching:
  window_days: 7
`), 0o600))
	t.Setenv("BALANCE_MATCHING_MAX_RESULTS", "3")

	v := viper.New()
	Defaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/books.db", cfg.DatabasePath)
	assert.Equal(t, 7, cfg.MatchWindowDays)
	assert.Equal(t, 3, cfg.MaxMatchResults)
}

func TestLoad_Invalid(t *testing.T) {
	v := viper.New()
	Defaults(v)
	v.Set("matching.window_days", 0)

	_, err := Load(v)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BALANCE_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BALANCE_DOTENV_PROBE") })
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("BALANCE_DOTENV_PROBE"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("BOOKS_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "x.db"), ExpandPath("~/x.db"))
	assert.Equal(t, "/data/x.db", ExpandPath("$BOOKS_DIR/x.db"))
}
