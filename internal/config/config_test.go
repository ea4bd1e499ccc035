package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RECURRING_CRON", "")
	t.Setenv("IDEMPOTENCY_TTL", "")
	t.Setenv("LEASE_EXPIRY_DAYS", "")

	cfg := Load()

	assert.Equal(t, defaultDSN, cfg.DatabaseDSN)
	assert.Equal(t, "0 6 1 * *", cfg.RecurringCron)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 30, cfg.LeaseExpiryDays)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("LEASE_EXPIRY_DAYS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 30, cfg.LeaseExpiryDays, "geçersiz sayı varsayılana düşmeli")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing secret", Config{DatabaseDSN: "x"}, ErrMissingJWTSecret},
		{"short secret", Config{DatabaseDSN: "x", JWTSecret: "short"}, ErrShortJWTSecret},
		{"missing dsn", Config{JWTSecret: strings.Repeat("a", 32)}, ErrMissingDSN},
		{"ok", Config{DatabaseDSN: "x", JWTSecret: strings.Repeat("a", 32)}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.cfg.Validate(), tc.want)
		})
	}
}
