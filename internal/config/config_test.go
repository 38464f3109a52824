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

	assert.Equal(t, 10, cfg.Limits.RequestsPerMinute)
	assert.Equal(t, 100, cfg.Limits.RequestsPerHour)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 12*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 4096, cfg.Delivery.MaxResponseLength)
	assert.Equal(t, 4000, cfg.Delivery.ChunkSize)
	assert.Equal(t, "gemini-1.5-flash-8b", cfg.AI.Model)
	assert.Equal(t, 800, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 0.0001)
	assert.Equal(t, 3, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 30*time.Minute, cfg.Cleanup.Interval())
	assert.True(t, cfg.Delivery.Animated)
	assert.False(t, cfg.Delivery.SplitOnNewline)
	assert.Equal(t, ":memory:", cfg.Logging.ActivityDB)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
limits:
  requests_per_minute: 5
  requests_per_hour: 50
ai:
  model: file-model
delivery:
  animated: false
  split_on_newline: true
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	t.Setenv("MAX_REQUESTS_PER_HOUR", "70")
	t.Setenv("TEMPERATURE", "0.2")
	t.Setenv("CACHE_TTL", "1000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Limits.RequestsPerMinute)
	assert.Equal(t, 70, cfg.Limits.RequestsPerHour)
	assert.Equal(t, "file-model", cfg.AI.Model)
	assert.InDelta(t, 0.2, cfg.AI.Temperature, 0.0001)
	assert.Equal(t, time.Second, cfg.Cache.TTL())
	assert.False(t, cfg.Delivery.Animated)
	assert.True(t, cfg.Delivery.SplitOnNewline)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits: [oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("AI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BOT_TOKEN", "GEMINI_API_KEY"}, cfg.MissingCredentials())

	cfg.Telegram.BotToken = "123:abc"
	cfg.AI.APIKey = "key"
	assert.Empty(t, cfg.MissingCredentials())
}
