package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Enrichment backends.
const (
	BackendWorker = "worker"
	BackendGemini = "gemini"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// EnrichConfig selects and tunes the remote enrichment endpoint.
type EnrichConfig struct {
	Backend       string
	WorkerURL     string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	BatchSize     int
	BatchTimeout  time.Duration
	MaxRetries    int
	RateLimitRPS  float64
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL   string
	DBMaxConns    int32
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	Port          string
	Enrich        EnrichConfig
	RateLimitRuns RateLimitConfig
	PhoneRegion   string
	MXCheck       bool
	LogLevel      string
	LogFormat     string
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),
		Port:        getEnv("PORT", "8080"),
		PhoneRegion: getEnv("IMPORT_PHONE_REGION", "US"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}

	enrich, err := loadEnrich()
	if err != nil {
		return nil, err
	}
	cfg.Enrich = enrich

	maxConns, err := parseNonNegativeInt(getEnv("DB_MAX_CONNS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS value: %w", err)
	}
	cfg.DBMaxConns = int32(maxConns)

	if cfg.TokenTTL, err = time.ParseDuration(getEnv("JWT_TTL", "24h")); err != nil || cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL value: %q", os.Getenv("JWT_TTL"))
	}
	if cfg.MXCheck, err = parseBool(getEnv("IMPORT_MX_CHECK", "false")); err != nil {
		return nil, fmt.Errorf("invalid IMPORT_MX_CHECK value: %w", err)
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_RUNS", "5/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RUNS value: %w", err)
	}
	cfg.RateLimitRuns = rl

	return cfg, nil
}

// LoadEnrich reads only the enrichment settings. The CLI uses it without a database.
func LoadEnrich() (EnrichConfig, error) {
	return loadEnrich()
}

func loadEnrich() (EnrichConfig, error) {
	cfg := EnrichConfig{
		Backend:       strings.ToLower(getEnv("ENRICH_BACKEND", BackendWorker)),
		WorkerURL:     getEnv("ENRICH_WORKER_URL", "http://worker:9000"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: os.Getenv("GEMINI_BASE_URL"),
	}

	switch cfg.Backend {
	case BackendWorker, BackendGemini:
	default:
		return EnrichConfig{}, fmt.Errorf("invalid ENRICH_BACKEND value: %q", cfg.Backend)
	}

	var err error
	if cfg.BatchSize, err = parseNonNegativeInt(getEnv("ENRICH_BATCH_SIZE", "5")); err != nil {
		return EnrichConfig{}, fmt.Errorf("invalid ENRICH_BATCH_SIZE value: %w", err)
	}
	if cfg.BatchTimeout, err = parseOptionalDuration(getEnv("ENRICH_BATCH_TIMEOUT", "0")); err != nil {
		return EnrichConfig{}, fmt.Errorf("invalid ENRICH_BATCH_TIMEOUT value: %w", err)
	}
	if cfg.MaxRetries, err = parseNonNegativeInt(getEnv("ENRICH_MAX_RETRIES", "0")); err != nil {
		return EnrichConfig{}, fmt.Errorf("invalid ENRICH_MAX_RETRIES value: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("ENRICH_RATE_LIMIT_RPS", "0"), 64); err != nil || cfg.RateLimitRPS < 0 {
		return EnrichConfig{}, fmt.Errorf("invalid ENRICH_RATE_LIMIT_RPS value: %q", os.Getenv("ENRICH_RATE_LIMIT_RPS"))
	}
	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// parseOptionalDuration accepts "0" or a Go duration string.
func parseOptionalDuration(input string) (time.Duration, error) {
	if strings.TrimSpace(input) == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", input)
	}
	return d, nil
}

func parseNonNegativeInt(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative: %d", n)
	}
	return n, nil
}

func parseBool(input string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(input))
}
