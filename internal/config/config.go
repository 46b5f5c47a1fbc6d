// Package config loads the coordinator's environment-variable driven
// settings. These values are fixed for a process lifetime: a
// coordinator restart is the reload mechanism, there is no hot-reload
// path.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every BUILDIT_* environment variable the coordinator reads.
type Config struct {
	ListenAddr      string
	DatabaseURL     string
	WorkerSecret    string
	LivenessTick    time.Duration
	LivenessTimeout time.Duration
	RelayBuffer     int
	CORSOrigins     []string
	HandlerTimeout  time.Duration
}

// Load reads configuration from the environment (prefix BUILDIT_),
// applying sensible defaults for everything but the database URL and
// the worker secret, which every deployment must set explicitly.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("buildit")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("liveness_tick", "30s")
	v.SetDefault("liveness_timeout", "120s")
	v.SetDefault("relay_buffer", 5000)
	v.SetDefault("cors_origins", "")
	v.SetDefault("handler_timeout", "30s")

	cfg := Config{
		ListenAddr:      v.GetString("listen_addr"),
		DatabaseURL:     v.GetString("database_url"),
		WorkerSecret:    v.GetString("worker_secret"),
		LivenessTick:    v.GetDuration("liveness_tick"),
		LivenessTimeout: v.GetDuration("liveness_timeout"),
		RelayBuffer:     v.GetInt("relay_buffer"),
		CORSOrigins:     splitCSV(v.GetString("cors_origins")),
		HandlerTimeout:  v.GetDuration("handler_timeout"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("BUILDIT_DATABASE_URL is required")
	}
	if cfg.WorkerSecret == "" {
		return Config{}, fmt.Errorf("BUILDIT_WORKER_SECRET is required")
	}
	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
