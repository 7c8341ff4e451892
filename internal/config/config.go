package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the catalog backend.
type Config struct {
	HTTPAddr     string
	DatabasePath string
	MediaRoot    string
	SeedPath     string
	LogPath      string

	// External metadata enrichment source. Enrichment is skipped entirely
	// when the API key is empty.
	MetadataBaseURL string
	MetadataAPIKey  string

	// Per-IP rate limit applied to mutating endpoints, requests per minute.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads configuration from environment variables, with a .env file as
// an optional source.
func Load() Config {
	// Ignore error: a missing .env file just means env vars only.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "data/catalog.db"),
		MediaRoot:          getEnv("MEDIA_ROOT", "media"),
		SeedPath:           getEnv("SEED_PATH", "data/catalog.json"),
		LogPath:            getEnv("LOG_PATH", ""),
		MetadataBaseURL:    getEnv("METADATA_BASE_URL", "https://www.omdbapi.com"),
		MetadataAPIKey:     getEnv("METADATA_API_KEY", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
