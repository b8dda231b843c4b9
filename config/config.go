package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Identity
	Broker string // active broker identifier stamped on each snapshot

	// Record store backend: "sqlite" (default) or "redis"
	StoreBackend  string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	MetricsAddr string
	LogLevel    string

	// Cache validity window
	ResetTime string // daily reset wall-clock time, "HH:MM"
	Timezone  string // IANA zone name

	// Derivatives exchanges (comma-separated, e.g. "NFO,BFO,MCX,CDS")
	FNOExchanges string

	// Search limits and memory estimation
	SearchLimit    int
	MaxSearchLimit int
	FNOSearchLimit int
	BytesPerRecord int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Broker: getEnv("BROKER", "default"),

		StoreBackend:  getEnv("STORE_BACKEND", "sqlite"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/symbols.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		ResetTime: getEnv("CACHE_RESET_TIME", "03:00"),
		Timezone:  getEnv("CACHE_TIMEZONE", "Asia/Kolkata"),

		FNOExchanges: getEnv("FNO_EXCHANGES", "NFO,BFO,MCX,CDS"),

		SearchLimit:    getEnvInt("SEARCH_LIMIT", 50),
		MaxSearchLimit: getEnvInt("MAX_SEARCH_LIMIT", 500),
		FNOSearchLimit: getEnvInt("FNO_SEARCH_LIMIT", 500),
		BytesPerRecord: getEnvInt("BYTES_PER_RECORD", 1024),
	}
}

// ParseFNOExchanges splits the FNOExchanges list into exchange codes.
func (c *Config) ParseFNOExchanges() []string {
	parts := strings.Split(c.FNOExchanges, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
