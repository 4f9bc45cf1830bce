package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the environment-driven configuration for fleetgov-api.
type Config struct {
	Addr     string `env:"FLEETGOV_ADDR, default=:8080"`
	Env      string `env:"FLEETGOV_ENV, default=prod"`
	LogLevel string `env:"FLEETGOV_LOG_LEVEL, default=info"`

	// Postgres DSN. Empty selects the in-memory store (dev only).
	PostgresDSN string `env:"FLEETGOV_PG_DSN"`

	// Redis address for volatile auth state (challenges, sessions).
	// Empty keeps that state in the primary store.
	RedisAddr string `env:"FLEETGOV_REDIS_ADDR"`
	RedisDB   int    `env:"FLEETGOV_REDIS_DB, default=0"`

	Auth AuthConfig
	SMTP SMTPConfig
	SMS  SMSConfig
}

// AuthConfig carries the lockout, OTP and session tunables. The defaults are
// the documented baseline, not hard requirements.
type AuthConfig struct {
	SigningSecret    string        `env:"FLEETGOV_AUTH_SECRET"`
	TokenIssuer      string        `env:"FLEETGOV_AUTH_ISSUER, default=fleetgov"`
	LockoutThreshold int           `env:"FLEETGOV_LOCKOUT_THRESHOLD, default=5"`
	LockoutDuration  time.Duration `env:"FLEETGOV_LOCKOUT_DURATION, default=15m"`
	OTPTTL           time.Duration `env:"FLEETGOV_OTP_TTL, default=5m"`
	SessionTTL       time.Duration `env:"FLEETGOV_SESSION_TTL, default=12h"`
}

// SMTPConfig configures the email delivery channel for one-time codes.
type SMTPConfig struct {
	Host     string `env:"FLEETGOV_SMTP_HOST"`
	Port     int    `env:"FLEETGOV_SMTP_PORT, default=587"`
	Username string `env:"FLEETGOV_SMTP_USER"`
	Password string `env:"FLEETGOV_SMTP_PASS"`
	From     string `env:"FLEETGOV_SMTP_FROM"`
}

// SMSConfig configures the SMS gateway channel for one-time codes.
type SMSConfig struct {
	GatewayURL string `env:"FLEETGOV_SMS_GATEWAY_URL"`
	APIKey     string `env:"FLEETGOV_SMS_API_KEY"`
	SenderID   string `env:"FLEETGOV_SMS_SENDER_ID, default=FLEETGOV"`
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
