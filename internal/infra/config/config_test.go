package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/drip.db")
	t.Setenv("ADMIN_TELEGRAM_ID", "1001")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1001), cfg.AdminTelegramID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "Europe/Rome", cfg.TargetTimezone)
	assert.Equal(t, 8, cfg.TargetHour)
	assert.Equal(t, 0, cfg.TargetMinute)
	assert.Zero(t, cfg.TestInterval)
	assert.Equal(t, "organic", cfg.DefaultSource)
	assert.Equal(t, uint(1), cfg.SendMaxAttempts)
	assert.Equal(t, 25.0, cfg.SendRatePerSecond)
	assert.Equal(t, "0 20 * * *", cfg.CronSpecAdminDigest)
	assert.Equal(t, "Foglio1", cfg.GoogleSheetsWorksheet)
	assert.False(t, cfg.SheetsEnabled())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TARGET_TIMEZONE", "UTC")
	t.Setenv("TARGET_HOUR", "21")
	t.Setenv("TARGET_MINUTE", "30")
	t.Setenv("TEST_INTERVAL", "2m")
	t.Setenv("DEFAULT_SOURCE", "Instagram")
	t.Setenv("SEND_MAX_ATTEMPTS", "3")
	t.Setenv("GOOGLE_SHEETS_ID", "sheet")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "{}")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "UTC", cfg.TargetTimezone)
	assert.Equal(t, 21, cfg.TargetHour)
	assert.Equal(t, 30, cfg.TargetMinute)
	assert.Equal(t, 2*time.Minute, cfg.TestInterval)
	assert.Equal(t, "instagram", cfg.DefaultSource)
	assert.Equal(t, uint(3), cfg.SendMaxAttempts)
	assert.True(t, cfg.SheetsEnabled())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "missing token", key: "TELEGRAM_TOKEN", value: ""},
		{name: "missing database", key: "DATABASE_URL", value: ""},
		{name: "bad admin id", key: "ADMIN_TELEGRAM_ID", value: "admin"},
		{name: "bad timezone", key: "TARGET_TIMEZONE", value: "Mars/Olympus"},
		{name: "hour out of range", key: "TARGET_HOUR", value: "24"},
		{name: "bad minute", key: "TARGET_MINUTE", value: "half"},
		{name: "bad interval", key: "TEST_INTERVAL", value: "soon"},
		{name: "negative interval", key: "TEST_INTERVAL", value: "-1m"},
		{name: "zero attempts", key: "SEND_MAX_ATTEMPTS", value: "0"},
		{name: "bad rate", key: "SEND_RATE_PER_SECOND", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
