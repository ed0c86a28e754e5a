package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Addr     string
	Env      string
	LogLevel string

	// Match clocks
	TurnTimeout      time.Duration
	DraftTimeout     time.Duration
	TimerGrace       time.Duration
	MatchIdleTimeout time.Duration
	SweepInterval    time.Duration
	TimersEnabled    bool

	// CORS
	CORSAllowedOrigins []string

	// Result archive; empty disables it
	DatabaseURL string

	// Event bus; empty disables it
	NATSURL string
}

func Load() (*Config, error) {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg := &Config{
		Addr:               getEnv("ADDR", ":8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		TurnTimeout:        getDuration("TURN_TIMEOUT", 10*time.Second),
		DraftTimeout:       getDuration("DRAFT_TIMEOUT", 60*time.Second),
		TimerGrace:         getDuration("TIMER_GRACE", 500*time.Millisecond),
		MatchIdleTimeout:   getDuration("MATCH_IDLE_TIMEOUT", 5*time.Minute),
		SweepInterval:      getDuration("SWEEP_INTERVAL", 30*time.Second),
		TimersEnabled:      getBool("TIMERS_ENABLED", true),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		NATSURL:            getEnv("NATS_URL", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
