package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL string
	Port        int
}

const (
	defaultDatabaseURL = "host=localhost port=5432 user=postgres password=postgres dbname=rachaconta sslmode=disable"
	defaultPort        = 5000
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: valueOrDefault("DATABASE_URL", defaultDatabaseURL),
		Port:        defaultPort,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
		if port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("port %d is out of range", port)
		}
		cfg.Port = port
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
