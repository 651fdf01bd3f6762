// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// SMTP holds the outbound mail settings.
type SMTP struct {
	Host     string `env:"AUTHGATE_SMTP_HOST"`
	Port     int    `env:"AUTHGATE_SMTP_PORT" envDefault:"587"`
	Username string `env:"AUTHGATE_SMTP_USERNAME"`
	Password string `env:"AUTHGATE_SMTP_PASSWORD"`
	From     string `env:"AUTHGATE_SMTP_FROM"`
}

// Config is the full runtime configuration, populated from AUTHGATE_*
// environment variables at startup.
type Config struct {
	Addr        string `env:"AUTHGATE_ADDR" envDefault:":8080"`
	DatabaseDSN string `env:"AUTHGATE_PG_DSN"`

	TokenSecret string        `env:"AUTHGATE_TOKEN_SECRET"`
	SessionTTL  time.Duration `env:"AUTHGATE_SESSION_TTL" envDefault:"168h"`

	OTPLength int           `env:"AUTHGATE_OTP_LENGTH" envDefault:"6"`
	OTPTTL    time.Duration `env:"AUTHGATE_OTP_TTL" envDefault:"5m"`

	AllowedCallbackOrigins []string `env:"AUTHGATE_ALLOWED_CALLBACK_ORIGINS" envSeparator:","`

	RateBurst        int     `env:"AUTHGATE_RATE_BURST" envDefault:"20"`
	RatePerSecond    float64 `env:"AUTHGATE_RATE_PER_SECOND" envDefault:"10"`
	OTPRatePerMinute float64 `env:"AUTHGATE_OTP_RATE_PER_MINUTE" envDefault:"3"`

	SMTP SMTP
}

// Load parses the environment and validates the values the service cannot
// run without.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TokenSecret == "" {
		return errors.New("AUTHGATE_TOKEN_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("AUTHGATE_SESSION_TTL must be positive")
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		return fmt.Errorf("AUTHGATE_OTP_LENGTH out of range: %d", c.OTPLength)
	}
	if c.OTPTTL <= 0 {
		return errors.New("AUTHGATE_OTP_TTL must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSecond <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}
