package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(lookup(nil))
	require.NoError(t, err)

	assert.False(t, cfg.Production)
	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, 10, cfg.BackupRetention)
	assert.Equal(t, 6*time.Hour, cfg.BackupInterval)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, DevSigningKey, cfg.SigningKey())
	assert.Equal(t, DevAdminPassword, cfg.AdminSecret())
	assert.True(t, cfg.RateLimitEnabled)
	assert.False(t, cfg.HTTPSRedirect)
}

func TestProductionValues(t *testing.T) {
	cfg, err := FromLookup(lookup(map[string]string{
		"NODE_ENV":         "production",
		"PORT":             "8443",
		"ALLOWED_ORIGINS":  "https://a.example, https://b.example,,",
		"BACKUP_RETENTION": "4",
		"BACKUP_INTERVAL":  "30m",
		"JWT_SECRET":       " s3cret ",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Production)
	assert.Equal(t, ":8443", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 4, cfg.BackupRetention)
	assert.Equal(t, 30*time.Minute, cfg.BackupInterval)
	assert.Equal(t, "s3cret", cfg.SigningKey())
	assert.True(t, cfg.HTTPSRedirect)
}

func TestAppEnvWins(t *testing.T) {
	cfg, err := FromLookup(lookup(map[string]string{"APP_ENV": "staging", "NODE_ENV": "production"}))
	require.NoError(t, err)
	assert.False(t, cfg.Production)
}

func TestInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"BACKUP_RETENTION":   "ten",
		"BACKUP_INTERVAL":    "often",
		"RATE_LIMIT_ENABLED": "maybe",
	} {
		_, err := FromLookup(lookup(map[string]string{key: value}))
		assert.ErrorContains(t, err, key)
	}
	_, err := FromLookup(lookup(map[string]string{"BACKUP_RETENTION": "0"}))
	assert.Error(t, err)
}

func TestCORSOrigins(t *testing.T) {
	assert.Contains(t, Server{}.CORSOrigins(), "http://localhost:3000")
	assert.Equal(t, []string{"https://leandroabranti.github.io"}, Server{Production: true}.CORSOrigins())
	assert.Equal(t, []string{"https://x.example"}, Server{AllowedOrigins: []string{"https://x.example"}}.CORSOrigins())
}
