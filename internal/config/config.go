package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	NatsURL             string
	NatsToken           string
	DatabaseURL         string
	RedisURL            string
	StoreBackend        string
	StateDir            string
	LogLevel            string
	APIToken            string
	DecayOnSessionStart bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	databaseURL := envStr("DATABASE_URL", "")
	defaultBackend := "memory"
	if databaseURL != "" {
		defaultBackend = "postgres"
	}

	return Config{
		Port:                envInt("CREDENCE_PORT", 8760),
		NatsURL:             envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:           envStr("NATS_TOKEN", ""),
		DatabaseURL:         databaseURL,
		RedisURL:            envStr("REDIS_URL", "redis://localhost:6379/0"),
		StoreBackend:        strings.ToLower(envStr("STORE_BACKEND", defaultBackend)),
		StateDir:            envStr("STATE_DIR", "./state"),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		APIToken:            envStr("CREDENCE_API_TOKEN", ""),
		DecayOnSessionStart: envBool("DECAY_ON_SESSION_START", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
