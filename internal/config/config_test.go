package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURLAndWorkerSecret(t *testing.T) {
	for _, key := range []string{"BUILDIT_DATABASE_URL", "BUILDIT_WORKER_SECRET"} {
		os.Unsetenv(key)
	}
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("BUILDIT_DATABASE_URL", "postgres://localhost/buildit")
	t.Setenv("BUILDIT_WORKER_SECRET", "s3cr3t")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.LivenessTick)
	assert.Equal(t, 120*time.Second, cfg.LivenessTimeout)
	assert.Equal(t, 5000, cfg.RelayBuffer)
	assert.Equal(t, 30*time.Second, cfg.HandlerTimeout)
	assert.Nil(t, cfg.CORSOrigins)
}

func TestLoad_ParsesDurationAndCORSEnv(t *testing.T) {
	t.Setenv("BUILDIT_DATABASE_URL", "postgres://localhost/buildit")
	t.Setenv("BUILDIT_WORKER_SECRET", "s3cr3t")
	t.Setenv("BUILDIT_LIVENESS_TICK", "45s")
	t.Setenv("BUILDIT_LIVENESS_TIMEOUT", "3m")
	t.Setenv("BUILDIT_HANDLER_TIMEOUT", "10s")
	t.Setenv("BUILDIT_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.LivenessTick)
	assert.Equal(t, 3*time.Minute, cfg.LivenessTimeout)
	assert.Equal(t, 10*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b"))
	assert.Nil(t, splitCSV(""))
	assert.Nil(t, splitCSV("   "))
}
