package config

import (
	"os"
	"strconv"
)

// Config holds oocanad's runtime configuration, loaded entirely from
// environment variables, grouped into per-concern sub-structs.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Tracing  TracingConfig
	GC       GCConfig
}

// ServerConfig holds the remote task API's listen configuration.
type ServerConfig struct {
	Port       int
	Host       string
	OOMOLToken string
}

// DatabaseConfig holds the optional Postgres session-store connection.
// Enabled only when DB_HOST is set; oocanad runs fine without it.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// TracingConfig controls the OTLP exporter oocanad's tracer provider
// sends spans to.
type TracingConfig struct {
	Endpoint string
	Insecure bool
}

// GCConfig controls the cron.v3-driven periodic cleanup of stale
// service workers from the registry.
type GCConfig struct {
	Schedule       string
	WorkerStaleFor int // seconds
}

// Load reads Config from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       getEnvInt("PORT", 8087),
			Host:       getEnv("HOST", "0.0.0.0"),
			OOMOLToken: getEnv("OOMOL_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Enabled:  os.Getenv("DB_HOST") != "",
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "oocana"),
			Password: getEnv("DB_PASSWORD", "oocana"),
			Database: getEnv("DB_NAME", "oocana"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure: getEnv("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
		},
		GC: GCConfig{
			Schedule:       getEnv("OOCANA_GC_SCHEDULE", "@every 5m"),
			WorkerStaleFor: getEnvInt("OOCANA_WORKER_STALE_SECONDS", 90),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
