package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "24h", cfg.JWT.Expiry)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, BackendMemory, cfg.Registry.Backend)
	assert.True(t, cfg.Registry.Seed)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)

	assert.Equal(t, "", cfg.Redis.Addr)
	assert.Equal(t, "cctv:events", cfg.Redis.Stream)

	assert.Equal(t, 5*time.Second, cfg.Dispatcher.Interval)
	assert.Equal(t, 0.3, cfg.Dispatcher.Probability)

	assert.False(t, cfg.MediaMTX.Enabled)
	assert.Equal(t, "9997", cfg.MediaMTX.APIPort)
	assert.Equal(t, "./snapshots", cfg.Snapshot.OutputPath)
	assert.Equal(t, "/snapshots", cfg.Snapshot.PublicPath)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REGISTRY_BACKEND", "remote")
	t.Setenv("REGISTRY_SEED", "false")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DISPATCH_INTERVAL", "250ms")
	t.Setenv("DISPATCH_PROBABILITY", "1")
	t.Setenv("MEDIAMTX_ENABLED", "true")
	t.Setenv("LOG_FORMAT", "console")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, BackendRemote, cfg.Registry.Backend)
	assert.False(t, cfg.Registry.Seed)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatcher.Interval)
	assert.Equal(t, 1.0, cfg.Dispatcher.Probability)
	assert.True(t, cfg.MediaMTX.Enabled)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestGetEnv_Malformed(t *testing.T) {
	os.Clearenv()
	t.Setenv("BAD_INT", "x")
	t.Setenv("BAD_DURATION", "soon")
	t.Setenv("BAD_BOOL", "maybe")

	assert.Equal(t, 7, getEnvInt("BAD_INT", 7))
	assert.Equal(t, time.Minute, getEnvDuration("BAD_DURATION", time.Minute))
	assert.True(t, getEnvBool("BAD_BOOL", true))
	assert.Equal(t, "fallback", getEnv("MISSING", "fallback"))
}
