package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "STORE_DRIVER", "SCHEDULER_INTERVAL", "SCHEDULER_CONCURRENCY", "TRANSITION_TIMEOUT", "NOTIFY_BUFFER", "LOG_LEVEL", "SCHEDULER_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreDriver != "postgres" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SchedulerInterval != time.Minute || cfg.SchedulerConcurrency != 8 || cfg.TransitionTimeout != 10*time.Second {
		t.Fatalf("unexpected scheduler defaults %+v", cfg)
	}
	if cfg.NotifyBuffer != 64 || !cfg.SchedulerEnabled || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SCHEDULER_INTERVAL", "15s")
	t.Setenv("SCHEDULER_CONCURRENCY", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "sqlite" || cfg.SchedulerInterval != 15*time.Second || cfg.SchedulerConcurrency != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.SchedulerEnabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"SCHEDULER_INTERVAL":    "soon",
		"SCHEDULER_CONCURRENCY": "-1",
		"STORE_DRIVER":          "redis",
		"LOG_LEVEL":             "loud",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
