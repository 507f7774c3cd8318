// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config holds the server settings.
type Config struct {
	Addr            string        `env:"CHAT_ADDR" envDefault:":3000"`
	TCPAddr         string        `env:"CHAT_TCP_ADDR"`
	BusCapacity     int           `env:"CHAT_BUS_CAPACITY" envDefault:"100"`
	TrustProxy      bool          `env:"CHAT_TRUST_PROXY" envDefault:"false"`
	MaxFrameSize    int           `env:"CHAT_MAX_FRAME_SIZE" envDefault:"65536"`
	ShutdownTimeout time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Metrics         bool          `env:"CHAT_METRICS" envDefault:"true"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads dotenvPath when it exists, then parses the environment.
// Variables already set in the environment win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("CHAT_ADDR must not be empty"))
	}
	if c.BusCapacity <= 0 {
		err = multierr.Append(err, fmt.Errorf("CHAT_BUS_CAPACITY must be positive, got %d", c.BusCapacity))
	}
	if c.MaxFrameSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("CHAT_MAX_FRAME_SIZE must be positive, got %d", c.MaxFrameSize))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return err
}
