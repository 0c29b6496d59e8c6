package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("RESET_GATE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mangle.local", cfg.Users.DefaultDomain)
	assert.Equal(t, "admin", cfg.Users.AdminName)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, GateBackendMemory, cfg.GateBackend())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("USERS_DEFAULT_DOMAIN", "corp.example")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/users")
	t.Setenv("RESET_GATE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "corp.example", cfg.Users.DefaultDomain)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, GateBackendPostgres, cfg.GateBackend())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownGateBackend(t *testing.T) {
	t.Setenv("REDIS_DB", "0")
	t.Setenv("RESET_GATE_BACKEND", "etcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestGateBackend_Explicit(t *testing.T) {
	cfg := &Config{ResetGate: ResetGateConfig{Backend: GateBackendRedis}}
	assert.Equal(t, GateBackendRedis, cfg.GateBackend())
}

func TestValidate_BcryptCostRange(t *testing.T) {
	t.Setenv("AUTH_BCRYPT_COST", "2")
	t.Setenv("RESET_GATE_BACKEND", "")

	_, err := Load()
	assert.Error(t, err)
}
