package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the service.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	JWTSecret       string
	TokenTTL        time.Duration
	TelegramToken   string
	DigestTime      string
	DigestInterval  time.Duration
	ProjectsPerPage int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:     env("DATABASE_URL"),
		HTTPAddr:        env("HTTP_ADDR"),
		JWTSecret:       env("JWT_SECRET"),
		TokenTTL:        parseHours(env("TOKEN_TTL_HOURS")),
		TelegramToken:   env("TELEGRAM_TOKEN"),
		DigestTime:      env("DIGEST_TIME"),
		DigestInterval:  parseHours(env("DIGEST_INTERVAL_HOURS")),
		ProjectsPerPage: parsePositive(env("PROJECTS_PER_PAGE")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "kanban.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.DigestTime == "" {
		cfg.DigestTime = "09:00"
	}
	if cfg.ProjectsPerPage == 0 {
		cfg.ProjectsPerPage = 15
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// NotifierEnabled reports whether a Telegram token was configured.
func (c Config) NotifierEnabled() bool { return c.TelegramToken != "" }

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseHours(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parsePositive(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
