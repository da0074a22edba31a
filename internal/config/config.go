// Package config loads the service configuration from the environment and
// the market seed file.
//
// Environment variables may be provided through a .env file in the working
// directory; variables already set in the process environment win.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the service configuration.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	// MarketsFile is an optional YAML file of markets created at startup.
	MarketsFile string

	// Exposure limits in USD; zero disables a limit.
	MaxExposurePerMarket  decimal.Decimal
	MaxCorrelatedExposure decimal.Decimal

	Debug bool
}

// Load reads .env (if present) and the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() Config {
	return Config{
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		CacheTTL:              getEnvAsDuration("CACHE_TTL", 30*time.Second),
		KafkaBrokers:          getEnvAsSlice("KAFKA_BROKERS", nil, ","),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "market-actions"),
		MarketsFile:           getEnv("MARKETS_FILE", ""),
		MaxExposurePerMarket:  getEnvAsDecimal("MAX_EXPOSURE_PER_MARKET_USD", decimal.NewFromInt(1_000_000)),
		MaxCorrelatedExposure: getEnvAsDecimal("MAX_CORRELATED_EXPOSURE_USD", decimal.NewFromInt(5_000_000)),
		Debug:                 getEnvAsBool("DEBUG", false),
	}
}

func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if v, err := decimal.NewFromString(getEnv(key, "")); err == nil {
		return v
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(raw, sep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
