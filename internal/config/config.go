package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	TimeZone string
	LogLevel string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TimeZone: getEnv("RESP_TIME_ZONE", "UTC"),
		LogLevel: getEnv("RESP_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
