// Package config loads the connection hub's process configuration from
// environment variables, autoloading a local .env file the way the
// teacher's entrypoint does.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds every environment-sourced setting the hub's processes
// need: KV/lock backend, durable bus backend, realtime fan-out service,
// Postgres audit sink, and the fixed TTL/window constants from §6.5.
type Config struct {
	RedisAddr string
	RedisDB   int

	PostgresURL string

	RealtimeURL    string
	RealtimeAPIKey string

	LockTTL             time.Duration
	PresenceGraceWindow time.Duration
	ReconnectBudget     time.Duration
	LobbyTTL            time.Duration
	GameTTL             time.Duration
}

// Load reads Config from the environment, applying the spec's defaults
// where a variable is unset.
func Load() (*Config, error) {
	lockTTL, err := getEnvDuration("LOCK_EXPIRES_IN", 5*time.Second)
	if err != nil {
		return nil, err
	}
	grace, err := getEnvDuration("PRESENCE_GRACE_WINDOW", 15*time.Second)
	if err != nil {
		return nil, err
	}
	reconnect, err := getEnvDuration("RECONNECT_BUDGET", 40*time.Second)
	if err != nil {
		return nil, err
	}
	lobbyTTL, err := getEnvDuration("LOBBY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	gameTTL, err := getEnvDuration("GAME_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		PostgresURL:         getEnv("POSTGRES_URL", ""),
		RealtimeURL:         getEnv("REALTIME_URL", "http://localhost:8000"),
		RealtimeAPIKey:      getEnv("REALTIME_API_KEY", ""),
		LockTTL:             lockTTL,
		PresenceGraceWindow: grace,
		ReconnectBudget:     reconnect,
		LobbyTTL:            lobbyTTL,
		GameTTL:             gameTTL,
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return d, nil
}
