package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("RoomTTL converts hours to duration", func(t *testing.T) {
		cfg := &Config{RoomTTLHours: 24}
		assert.Equal(t, 24*time.Hour, cfg.RoomTTL())
	})

	t.Run("JWTTTL converts hours to duration", func(t *testing.T) {
		cfg := &Config{JWTTTLHours: 2}
		assert.Equal(t, 2*time.Hour, cfg.JWTTTL())
	})

	t.Run("IsProduction reads APP_ENV", func(t *testing.T) {
		assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
		assert.False(t, (&Config{AppEnv: "development"}).IsProduction())
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			AppEnv:       "development",
			RedisURL:     "redis://localhost:6379",
			JWTSecret:    "short",
			JWTTTLHours:  168,
			RoomTTLHours: 24,
		}
	}

	t.Run("accepts short secret outside production", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("rejects short secret in production", func(t *testing.T) {
		cfg := base()
		cfg.AppEnv = "production"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("accepts strong secret in production", func(t *testing.T) {
		cfg := base()
		cfg.AppEnv = "production"
		cfg.JWTSecret = strings.Repeat("k", 40)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects non-positive room ttl", func(t *testing.T) {
		cfg := base()
		cfg.RoomTTLHours = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "JWT_SECRET", "ROOM_TTL_HOURS",
		"ENFORCE_STATUS_TRANSITIONS", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("JWT_SECRET", "test-secret")
		os.Unsetenv("PORT")
		os.Unsetenv("ROOM_TTL_HOURS")
		os.Unsetenv("ENFORCE_STATUS_TRANSITIONS")
		os.Unsetenv("CORS_ALLOWED_ORIGINS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 24, cfg.RoomTTLHours)
		assert.False(t, cfg.EnforceStatusTransitions)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("JWT_SECRET", "test-secret")
		os.Setenv("PORT", "3000")
		os.Setenv("ROOM_TTL_HOURS", "12")
		os.Setenv("ENFORCE_STATUS_TRANSITIONS", "true")
		os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 12, cfg.RoomTTLHours)
		assert.True(t, cfg.EnforceStatusTransitions)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("JWT_SECRET", "test-secret")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required JWT_SECRET", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("JWT_SECRET")

		_, err := Load()
		assert.Error(t, err)
	})
}
