package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"TELEGRAM_TOKEN": " abc "}))
	require.NoError(t, err)

	assert.Equal(t, Config{
		TelegramToken:   "abc",
		DatabaseURL:     "studyspace.db",
		LogLevel:        "info",
		PurgeInterval:   24 * time.Hour,
		RetentionDays:   90,
		AgendaTime:      "08:00",
		DayReminderHour: 9,
		SendRatePerSec:  20,
	}, cfg)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"TELEGRAM_TOKEN":       "abc",
		"DATABASE_URL":         "data/study.db",
		"TIMEZONE":             "America/Santiago",
		"LOG_LEVEL":            "debug",
		"LOG_PRETTY":           "true",
		"PURGE_INTERVAL_HOURS": "6",
		"RETENTION_DAYS":       "30",
		"AGENDA_TIME":          "off",
		"DAY_REMINDER_HOUR":    "-1",
		"SEND_RATE_PER_SEC":    "2.5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "data/study.db", cfg.DatabaseURL)
	assert.Equal(t, "America/Santiago", cfg.Timezone)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 6*time.Hour, cfg.PurgeInterval)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Empty(t, cfg.AgendaTime)
	assert.Equal(t, -1, cfg.DayReminderHour)
	assert.Equal(t, 2.5, cfg.SendRatePerSec)
}

func TestFromEnvErrors(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{
		"LOG_PRETTY":        "maybe",
		"RETENTION_DAYS":    "0",
		"DAY_REMINDER_HOUR": "24",
		"SEND_RATE_PER_SEC": "-1",
	}))
	require.Error(t, err)
	for _, want := range []string{"TELEGRAM_TOKEN", "LOG_PRETTY", "RETENTION_DAYS", "DAY_REMINDER_HOUR", "SEND_RATE_PER_SEC"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 5*time.Hour, parseInterval("5"))
	assert.Equal(t, 90*time.Minute, parseInterval("1.5"))
	assert.Zero(t, parseInterval(""))
	assert.Zero(t, parseInterval("-2"))
	assert.Zero(t, parseInterval("x"))
}
