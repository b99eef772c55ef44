package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	LogLevel        string
	Environment     string

	// Delivery cadence. TestInterval > 0 switches to the accelerated offset policy.
	TargetTimezone string
	TargetHour     int
	TargetMinute   int
	TestInterval   time.Duration

	ContentFile   string // Optional YAML file with step texts
	DefaultSource string // Acquisition source when /start has no payload

	SendMaxAttempts   uint
	SendRatePerSecond float64

	CronSpecAdminDigest string

	GoogleSheetsID           string
	GoogleSheetsWorksheet    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// SheetsEnabled reports whether the Google Sheets analytics sink is configured.
func (c *AppConfig) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && (c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "")
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.TargetTimezone = os.Getenv("TARGET_TIMEZONE")
	if cfg.TargetTimezone == "" {
		cfg.TargetTimezone = "Europe/Rome"
	}
	if _, err := time.LoadLocation(cfg.TargetTimezone); err != nil {
		return nil, fmt.Errorf("invalid TARGET_TIMEZONE: %w", err)
	}

	if cfg.TargetHour, err = intFromEnv("TARGET_HOUR", 8, 0, 23); err != nil {
		return nil, err
	}
	if cfg.TargetMinute, err = intFromEnv("TARGET_MINUTE", 0, 0, 59); err != nil {
		return nil, err
	}

	if v := os.Getenv("TEST_INTERVAL"); v != "" {
		cfg.TestInterval, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TEST_INTERVAL: %w", err)
		}
		if cfg.TestInterval <= 0 {
			return nil, fmt.Errorf("invalid TEST_INTERVAL: must be positive, got %s", cfg.TestInterval)
		}
	}

	cfg.ContentFile = os.Getenv("CONTENT_FILE")

	cfg.DefaultSource = strings.ToLower(os.Getenv("DEFAULT_SOURCE"))
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = "organic"
	}

	attempts, err := intFromEnv("SEND_MAX_ATTEMPTS", 1, 1, 20)
	if err != nil {
		return nil, err
	}
	cfg.SendMaxAttempts = uint(attempts)

	cfg.SendRatePerSecond = 25 // Stays under Telegram's ~30 msg/s bot limit
	if v := os.Getenv("SEND_RATE_PER_SECOND"); v != "" {
		cfg.SendRatePerSecond, err = strconv.ParseFloat(v, 64)
		if err != nil || cfg.SendRatePerSecond <= 0 {
			return nil, fmt.Errorf("invalid SEND_RATE_PER_SECOND: %q", v)
		}
	}

	cfg.CronSpecAdminDigest = os.Getenv("CRON_SPEC_ADMIN_DIGEST")
	if cfg.CronSpecAdminDigest == "" {
		cfg.CronSpecAdminDigest = "0 20 * * *" // Default: 8 PM daily
	}

	cfg.GoogleSheetsID = os.Getenv("GOOGLE_SHEETS_ID")
	cfg.GoogleSheetsWorksheet = os.Getenv("GOOGLE_SHEETS_WORKSHEET")
	if cfg.GoogleSheetsWorksheet == "" {
		cfg.GoogleSheetsWorksheet = "Foglio1"
	}
	cfg.GoogleServiceAccountJSON = os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")
	cfg.GoogleServiceAccountFile = os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")

	return cfg, nil
}

func intFromEnv(name string, def, minValue, maxValue int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < minValue || n > maxValue {
		return 0, fmt.Errorf("invalid %s: %d is outside [%d, %d]", name, n, minValue, maxValue)
	}
	return n, nil
}
