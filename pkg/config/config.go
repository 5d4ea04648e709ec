package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the options core.
type Config struct {
	Port string

	// Brokerage connection
	BrokerMode    string // "sim" (default) or "iqws"
	BrokerURL     string
	BrokerEmail   string
	BrokerPass    string
	AccountType   string // "PRACTICE" or "REAL"
	APITimeoutSec int

	// Strategy
	ProfileMode          string   // CONSERVATIVE | BALANCED | AGGRESSIVE
	CatalogFile          string   // optional YAML override of the instrument catalog
	Instruments          []string // empty = full catalog
	PositionPercent      float64  // caller override as a percent (0 = per-group defaults)
	MinPositionSize      float64
	MaxSimultaneousTrades int
	MaxDailyConsecutive  int
	MinSignalGapMinutes  int

	// Risk
	AbsoluteStopPercent float64
	MonthlyStopPercent  float64

	// Persistence
	DataDir       string
	SnapshotEvery int // cycles between periodic snapshots
	ListingsEvery int // cycles between availability refreshes

	// Dashboard status store
	RedisURL string

	// Auth
	JWTSecret string

	// Standalone mode: start one bot at boot without the API
	AutoStart   bool
	AutoStartID string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		BrokerMode:            strings.ToLower(getEnv("BROKER_MODE", "sim")),
		BrokerURL:             getEnv("BROKER_URL", "wss://ws.trade.example.com/echo/websocket"),
		BrokerEmail:           os.Getenv("BROKER_EMAIL"),
		BrokerPass:            os.Getenv("BROKER_PASSWORD"),
		AccountType:           strings.ToUpper(getEnv("ACCOUNT_TYPE", "PRACTICE")),
		APITimeoutSec:         getEnvInt("API_TIMEOUT_SEC", 15),
		ProfileMode:           strings.ToUpper(getEnv("PROFILE_MODE", "BALANCED")),
		CatalogFile:           getEnv("CATALOG_FILE", ""),
		Instruments:           splitAndTrim(getEnv("INSTRUMENTS", "")),
		PositionPercent:       getEnvFloat("POSITION_PERCENT", 0),
		MinPositionSize:       getEnvFloat("MIN_POSITION_SIZE", 1),
		MaxSimultaneousTrades: getEnvInt("MAX_SIMULTANEOUS_TRADES", 1),
		MaxDailyConsecutive:   getEnvInt("MAX_DAILY_CONSECUTIVE", 2),
		MinSignalGapMinutes:   getEnvInt("MIN_SIGNAL_GAP_MINUTES", 60),
		AbsoluteStopPercent:   getEnvFloat("ABSOLUTE_STOP_PERCENT", 0.75),
		MonthlyStopPercent:    getEnvFloat("MONTHLY_STOP_PERCENT", 0.40),
		DataDir:               getEnv("DATA_DIR", "./data"),
		SnapshotEvery:         getEnvInt("SNAPSHOT_EVERY_CYCLES", 30),
		ListingsEvery:         getEnvInt("LISTINGS_EVERY_CYCLES", 100),
		RedisURL:              getEnv("REDIS_URL", ""),
		JWTSecret:             getEnv("JWT_SECRET", "dev-secret"),
		AutoStart:             getEnv("AUTO_START", "false") == "true",
		AutoStartID:           getEnv("AUTO_START_ID", "local"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
