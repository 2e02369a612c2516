package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DevelopmentJWTSecret is used outside production when JWT_SECRET is unset.
const DevelopmentJWTSecret = "stamprally-development-secret"

// Config holds the application configuration.
type Config struct {
	ServerPort   int           `env:"PORT" envDefault:"3002"`
	Environment  string        `env:"APP_ENV" envDefault:"development"`
	DataDir      string        `env:"DATA_DIR" envDefault:"./data"`
	FrontendURLs []string      `env:"FRONTEND_URL" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:5174"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	LockTimeout  time.Duration `env:"LOCK_TIMEOUT" envDefault:"5s"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"10"`
	StampRangeKm float64       `env:"STAMP_RANGE_KM" envDefault:"0.1"`
	CatalogPath  string        `env:"STAMP_CATALOG"`
	BackupPath   string        `env:"BACKUP_PATH" envDefault:"./backups"`
	BackupCron   string        `env:"BACKUP_CRON" envDefault:"0 4 * * *"`
	BackupRetain int           `env:"BACKUP_RETAIN" envDefault:"7"`
	EventRetain  int           `env:"EVENT_RETAIN" envDefault:"500"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// BackupsEnabled reports whether scheduled backups are configured.
// BACKUP_CRON=off disables them.
func (c *Config) BackupsEnabled() bool {
	return c.BackupCron != "" && c.BackupCron != "off"
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid PORT %d", c.ServerPort)
	}
	if c.StampRangeKm <= 0 {
		return fmt.Errorf("STAMP_RANGE_KM must be positive, got %v", c.StampRangeKm)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = DevelopmentJWTSecret
	}
	return nil
}
