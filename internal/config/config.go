package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config keeps runtime settings for the planner batch.
type Config struct {
	DatabaseURL string `toml:"database_url"`

	// Host is the base URL interpolated into reminder links.
	Host string `toml:"host"`

	// HorizonDays is how far ahead the generator materializes instances.
	HorizonDays int `toml:"horizon_days"`

	// RunAt is the local HH:MM at which the daily batch runs.
	RunAt string `toml:"run_at"`

	// Notifier selects the delivery adapter: log, smtp or telegram.
	Notifier string `toml:"notifier"`

	FromAddress string `toml:"from_address"`
	BCCAddress  string `toml:"bcc_address"`
	SMTPAddr    string `toml:"smtp_addr"`

	TelegramToken string `toml:"telegram_token"`
}

// Load reads an optional TOML file (CONFIG_FILE, default
// volunteer-planner.toml if present) and then applies environment
// variables on top. Environment always wins.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: "volunteer_planner.db",
		Host:        "http://localhost:8000",
		HorizonDays: 28,
		RunAt:       "06:00",
		Notifier:    "log",
		FromAddress: "Volunteer Coordinator <volunteer@example.org>",
		SMTPAddr:    "localhost:25",
	}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		if _, err := os.Stat("volunteer-planner.toml"); err == nil {
			path = "volunteer-planner.toml"
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.HorizonDays <= 0 {
		return cfg, fmt.Errorf("horizon_days must be positive, got %d", cfg.HorizonDays)
	}
	switch cfg.Notifier {
	case "log", "smtp", "telegram":
	default:
		return cfg, fmt.Errorf("unknown notifier %q (want log, smtp or telegram)", cfg.Notifier)
	}
	if cfg.Notifier == "telegram" && cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required for the telegram notifier")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Host, "HOST")
	setString(&cfg.RunAt, "RUN_AT")
	setString(&cfg.Notifier, "NOTIFIER")
	setString(&cfg.FromAddress, "FROM_ADDRESS")
	setString(&cfg.BCCAddress, "BCC_ADDRESS")
	setString(&cfg.SMTPAddr, "SMTP_ADDR")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")

	if v := strings.TrimSpace(os.Getenv("HORIZON_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HorizonDays = n
		}
	}
}
