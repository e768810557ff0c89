package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_API_KEY", "")
	_, err := Load()
	assert.Error(t, err)

	require.NoError(t, os.Unsetenv("TELEGRAM_API_KEY"))
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_DefaultsAndDefaultedList(t *testing.T) {
	t.Setenv("TELEGRAM_API_KEY", "123:abc")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_PATH", "/tmp/x.db")
	t.Setenv("POLL_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Zero(t, cfg.AdminChatID)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 12*time.Hour, cfg.IdleThreshold)
	assert.NotContains(t, cfg.Defaulted, "DATABASE_DRIVER")
	assert.NotContains(t, cfg.Defaulted, "DATABASE_PATH")

	opts := cfg.StoreOptions()
	assert.Equal(t, "sqlite", opts.Driver)
	assert.Equal(t, "/tmp/x.db", opts.Path)
	assert.Equal(t, 5432, opts.Port)
}
