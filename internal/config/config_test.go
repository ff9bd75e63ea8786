package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://clob.polymarket.com", cfg.Market.CLOBAPIURL)
	assert.Equal(t, 30*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Scanner.HeartbeatInterval)
	assert.Equal(t, 300*time.Second, cfg.Scanner.DedupeWindow)
	assert.Equal(t, 2*time.Second, cfg.Scanner.BackoffBase)
	assert.Equal(t, 300*time.Second, cfg.Scanner.BackoffCap)
	assert.Equal(t, 5, cfg.Scanner.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Recorder.SamplingInterval)
	assert.Equal(t, 1000, cfg.Recorder.QueueSize)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scanner:
  poll_interval: 10s
  heartbeat_interval: 30s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Scanner.HeartbeatInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Scanner.BackoffBase)
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanner: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestValidate_Rejections(t *testing.T) {
	cfg := validConfig(t)
	cfg.Scanner.PollInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Scanner.HeartbeatInterval = cfg.Scanner.PollInterval / 2
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Scanner.BackoffCap = cfg.Scanner.BackoffBase / 2
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Telegram.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Telegram.Enabled = true
	cfg.Telegram.BotToken = "token"
	cfg.Telegram.ChatID = "123"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}
