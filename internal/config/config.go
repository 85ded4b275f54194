package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "jwt-secret", "password",
}

type Config struct {
	Port                     int      `env:"PORT" envDefault:"8080"`
	AppEnv                   string   `env:"APP_ENV" envDefault:"development"`
	DatabaseURL              string   `env:"DATABASE_URL,required"`
	RedisURL                 string   `env:"REDIS_URL,required"`
	JWTSecret                string   `env:"JWT_SECRET,required"`
	JWTTTLHours              int      `env:"JWT_TTL_HOURS" envDefault:"168"`
	RoomTTLHours             int      `env:"ROOM_TTL_HOURS" envDefault:"24"`
	EnforceStatusTransitions bool     `env:"ENFORCE_STATUS_TRANSITIONS" envDefault:"false"`
	CORSAllowedOrigins       []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	StaticDir                string   `env:"STATIC_DIR" envDefault:""`
	RoomRateLimitPerMin      int      `env:"ROOM_RATE_LIMIT_PER_MIN" envDefault:"120"`
	AuthRateLimitPerMin      int      `env:"AUTH_RATE_LIMIT_PER_MIN" envDefault:"10"`
	LogLevel                 string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat                string   `env:"LOG_FORMAT" envDefault:"console"`
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) Validate() error {
	if c.RoomTTLHours <= 0 {
		return fmt.Errorf("ROOM_TTL_HOURS must be positive")
	}
	if c.JWTTTLHours <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}

	if c.IsProduction() {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		for _, origin := range c.CORSAllowedOrigins {
			if origin == "*" {
				log.Warn().Msg("CORS_ALLOWED_ORIGINS contains * in production")
			}
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
