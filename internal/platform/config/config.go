package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Port                 string
	LogLevel             string
	LogFormat            string
	Version              string
	UpstreamTimeout      time.Duration
	UpstreamMaxBodyBytes int64
	CacheMaxBytes        int64
	CacheTTL             time.Duration
	PrefetchWorkers      int
	SessionTimeout       time.Duration
	SessionSweepInterval time.Duration
	ProxyToken           string
}

// Load reads the .env file from the current working directory and sets
// environment variables. A missing .env is reported but callers usually ignore
// it and fall back to the process environment. With no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset or malformed.
func FromEnv() Config {
	return Config{
		Port:                 GetEnv("PORT", "8080"),
		LogLevel:             GetEnv("LOG_LEVEL", "info"),
		LogFormat:            GetEnv("LOG_FORMAT", "json"),
		Version:              GetEnv("APP_VERSION", "1.0.0"),
		UpstreamTimeout:      GetEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamMaxBodyBytes: GetEnvInt64("UPSTREAM_MAX_BODY_BYTES", 64<<20),
		CacheMaxBytes:        GetEnvInt64("CACHE_MAX_BYTES", 256<<20),
		CacheTTL:             GetEnvDuration("CACHE_TTL", 10*time.Minute),
		PrefetchWorkers:      GetEnvInt("PREFETCH_WORKERS", 8),
		SessionTimeout:       GetEnvDuration("SESSION_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: GetEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		ProxyToken:           GetEnv("PROXY_TOKEN", ""),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvInt64 is GetEnvInt for byte counts and other 64-bit values.
func GetEnvInt64(key string, fallback int64) int64 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values such as "30s" or "5m". Non-positive or
// unparsable values yield fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
