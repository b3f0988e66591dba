package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.AdminOnly)
	assert.Equal(t, "", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("AUTH_ADMIN_ONLY", "true")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("LOGIN_RATE_LIMIT", "0.5")
	t.Setenv("DB_USE_SSL", "yes-please")

	cfg := LoadConfig()

	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.AdminOnly)
	assert.Equal(t, StorageBackendMinio, cfg.Storage.Backend)
	assert.InDelta(t, 0.5, cfg.RateLimit.LoginRate, 0.0001)
	assert.False(t, cfg.Database.UseSSL, "unparseable bools fall back to the default")
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	base := LoadConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 1 }},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "s3" }},
		{"unknown mq", func(c *Config) { c.MQ.Backend = "kafka" }},
		{"zero burst", func(c *Config) { c.RateLimit.LoginBurst = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
