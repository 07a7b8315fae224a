package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken        string        `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	DatabaseURL          string        `yaml:"database_url" env:"DATABASE_URL" env-default:"kanban_planner.db"`
	APIBaseURL           string        `yaml:"api_base_url" env:"API_BASE_URL" env-default:"http://localhost:8080/api"`
	APITimeout           time.Duration `yaml:"api_timeout" env:"API_TIMEOUT" env-default:"10s"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1h"`
}

// Load reads configuration from CONFIG_PATH (when set) and environment variables.
func Load() (Config, error) {
	return LoadFile(strings.TrimSpace(os.Getenv("CONFIG_PATH")))
}

// LoadFile reads an optional YAML file; environment variables override its values.
func LoadFile(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 10 * time.Second
	}
	if cfg.SessionSweepInterval < 0 {
		cfg.SessionSweepInterval = 0
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("API_BASE_URL is required")
	}

	return cfg, nil
}
