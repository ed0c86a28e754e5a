package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.TurnTimeout != 10*time.Second {
		t.Fatalf("TurnTimeout = %v, want 10s", cfg.TurnTimeout)
	}
	if cfg.DraftTimeout != 60*time.Second {
		t.Fatalf("DraftTimeout = %v, want 60s", cfg.DraftTimeout)
	}
	if !cfg.TimersEnabled {
		t.Fatal("TimersEnabled should default to true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		t.Fatal("expected default CORS origins")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("TURN_TIMEOUT", "3s")
	t.Setenv("TIMERS_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.TurnTimeout != 3*time.Second {
		t.Fatalf("TurnTimeout = %v, want 3s", cfg.TurnTimeout)
	}
	if cfg.TimersEnabled {
		t.Fatal("TimersEnabled should be false")
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("origins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("origins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}

func TestGetDurationBadValue(t *testing.T) {
	t.Setenv("TURN_TIMEOUT", "not-a-duration")
	if got := getDuration("TURN_TIMEOUT", 7*time.Second); got != 7*time.Second {
		t.Fatalf("getDuration = %v, want fallback 7s", got)
	}
}
