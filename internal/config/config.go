package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config defines the tracking service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"GSMTRACK_HTTP_PORT"`
	} `yaml:"http"`
	Serial struct {
		// Device is the modem's serial device, e.g. /dev/ttyUSB0. Empty runs
		// the service query-only, without a modem attached.
		Device       string        `yaml:"device" env:"GSMTRACK_SERIAL_DEVICE"`
		Baud         int           `yaml:"baud" env:"GSMTRACK_SERIAL_BAUD"`
		PollInterval time.Duration `yaml:"poll_interval" env:"GSMTRACK_SERIAL_POLL_INTERVAL"`
	} `yaml:"serial"`
	Database struct {
		DSN string `yaml:"dsn" env:"GSMTRACK_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		// Addr may be empty to run without the latest-position cache.
		Addr     string `yaml:"addr" env:"GSMTRACK_REDIS_ADDR"`
		Password string `yaml:"password" env:"GSMTRACK_REDIS_PASSWORD"`
	} `yaml:"redis"`
	Auth struct {
		// JWTSecret enables bearer auth on the API when non-empty.
		JWTSecret string `yaml:"jwt_secret" env:"GSMTRACK_JWT_SECRET"`
	} `yaml:"auth"`
}

// Load configuration from file/env.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8090"
	cfg.Serial.Baud = 115200
	cfg.Serial.PollInterval = 500 * time.Millisecond

	if err := load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if cfg.Serial.PollInterval <= 0 {
		return nil, errors.New("config: serial poll interval must be positive")
	}
	return cfg, nil
}

// HTTPAddress returns :port style string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
