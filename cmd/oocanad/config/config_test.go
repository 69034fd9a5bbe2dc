package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			k, orig := k, orig
			t.Cleanup(func() { os.Setenv(k, orig) })
		}
	}
}

func TestLoad_DefaultsWhenEnvironmentEmpty(t *testing.T) {
	clearEnv(t, "PORT", "HOST", "OOMOL_TOKEN", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE", "OOCANA_GC_SCHEDULE", "OOCANA_WORKER_STALE_SECONDS")

	cfg := Load()

	assert.Equal(t, 8087, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "", cfg.Server.OOMOLToken)
	assert.False(t, cfg.Database.Enabled, "DB_HOST unset means the session store is disabled")
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.True(t, cfg.Tracing.Insecure)
	assert.Equal(t, "@every 5m", cfg.GC.Schedule)
	assert.Equal(t, 90, cfg.GC.WorkerStaleFor)
}

func TestLoad_ReadsOverridesFromEnvironment(t *testing.T) {
	clearEnv(t, "PORT", "DB_HOST", "DB_PORT", "OOCANA_WORKER_STALE_SECONDS", "OTEL_EXPORTER_OTLP_INSECURE")

	os.Setenv("PORT", "9001")
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_PORT", "6543")
	os.Setenv("OOCANA_WORKER_STALE_SECONDS", "30")
	os.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_PORT")
		os.Unsetenv("OOCANA_WORKER_STALE_SECONDS")
		os.Unsetenv("OTEL_EXPORTER_OTLP_INSECURE")
	})

	cfg := Load()

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 30, cfg.GC.WorkerStaleFor)
	assert.False(t, cfg.Tracing.Insecure)
}

func TestLoad_NonIntegerPortFallsBackToDefault(t *testing.T) {
	clearEnv(t, "PORT")
	os.Setenv("PORT", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg := Load()
	assert.Equal(t, 8087, cfg.Server.Port)
}
