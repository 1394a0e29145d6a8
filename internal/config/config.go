// Package config reads the environment-provided settings. Scoring
// weights and thresholds are deliberately NOT here — they're compiled
// into internal/scoring and changing them means a new model version.
package config

import (
	"os"
	"strconv"
)

// Config holds every runtime setting the server accepts.
type Config struct {
	VendorAPIKey        string
	IngestWebhookSecret string
	CronSecret          string
	DatabaseURL         string
	LogLevel            string
	Port                int
}

// FromEnv reads the configuration from the process environment,
// applying defaults for local development.
func FromEnv() Config {
	cfg := Config{
		VendorAPIKey:        os.Getenv("VENDOR_API_KEY"),
		IngestWebhookSecret: os.Getenv("INGEST_WEBHOOK_SECRET"),
		CronSecret:          os.Getenv("CRON_SECRET"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		Port:                8080,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "file:heatline.db?_pragma=foreign_keys(1)"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			cfg.Port = v
		}
	}
	return cfg
}
