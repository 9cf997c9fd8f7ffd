package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := FromViper(newViper())

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 10, cfg.AsynqConcurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ASYNQ_CONCURRENCY", "4")
	t.Setenv("SCHEDULER_INTERVAL", "15s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.gpus.com.br, https://admin.gpus.com.br")
	t.Setenv("JWT_PUBLIC_KEY", `-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)
	t.Setenv("ENVIRONMENT", "production")

	cfg := FromViper(newViper())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.AsynqConcurrency)
	assert.Equal(t, 15*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, []string{"https://app.gpus.com.br", "https://admin.gpus.com.br"}, cfg.CORSAllowedOrigins)
	assert.Contains(t, cfg.JWTPublicKey, "\nabc\n")
	assert.True(t, cfg.IsProduction())
}
