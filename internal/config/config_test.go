package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PROVIDER", "POLL_INTERVAL_MS", "MAX_POLL_ATTEMPTS", "SAVE_DEBOUNCE_MS", "RETRY_BASE_MS", "RETRY_ATTEMPTS", "RUN_MIGRATIONS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "http", cfg.Provider)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 60, cfg.MaxPollAttempts)
	assert.Equal(t, 2*time.Second, cfg.SaveDebounce)
	assert.Equal(t, time.Second, cfg.RetryBase)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER", "Gemini")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("MAX_POLL_ATTEMPTS", "not-a-number")
	t.Setenv("RUN_MIGRATIONS", "true")

	cfg := Load()

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 60, cfg.MaxPollAttempts)
	assert.True(t, cfg.RunMigrations)
}
