package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken   string
	DatabaseURL     string
	Timezone        string
	LogLevel        string
	LogPretty       bool
	PurgeInterval   time.Duration
	RetentionDays   int
	AgendaTime      string
	DayReminderHour int
	SendRatePerSec  float64
}

// Load reads configuration from environment variables with sane defaults. Variables
// from a .env file in the working directory are applied first without overriding the
// real environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		TelegramToken: get("TELEGRAM_TOKEN"),
		DatabaseURL:   get("DATABASE_URL"),
		Timezone:      get("TIMEZONE"),
		LogLevel:      get("LOG_LEVEL"),
		AgendaTime:    "08:00",
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "studyspace.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch raw := get("AGENDA_TIME"); {
	case strings.EqualFold(raw, "off"):
		cfg.AgendaTime = ""
	case raw != "":
		cfg.AgendaTime = raw
	}

	var errs []error
	var err error

	if cfg.LogPretty, err = parseBool(get("LOG_PRETTY")); err != nil {
		errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
	}

	cfg.PurgeInterval = parseInterval(get("PURGE_INTERVAL_HOURS"))
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = 24 * time.Hour
	}

	if cfg.RetentionDays, err = parseInt(get("RETENTION_DAYS"), 90); err != nil || cfg.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("RETENTION_DAYS must be a positive number of days"))
	}

	if cfg.DayReminderHour, err = parseInt(get("DAY_REMINDER_HOUR"), 9); err != nil ||
		cfg.DayReminderHour < -1 || cfg.DayReminderHour > 23 {
		errs = append(errs, fmt.Errorf("DAY_REMINDER_HOUR must be an hour between 0 and 23, or -1"))
	}

	cfg.SendRatePerSec = 20
	if raw := get("SEND_RATE_PER_SEC"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate <= 0 {
			errs = append(errs, fmt.Errorf("SEND_RATE_PER_SEC must be positive"))
		} else {
			cfg.SendRatePerSec = rate
		}
	}

	if cfg.TelegramToken == "" {
		errs = append(errs, fmt.Errorf("TELEGRAM_TOKEN is required"))
	}

	return cfg, errors.Join(errs...)
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
