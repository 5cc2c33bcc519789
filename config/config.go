package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"tradeTracker/internal/adapters/logger"
)

// Store drivers.
const (
	StoreSQLite     = "sqlite"
	StorePostgres   = "postgres"
	StoreGormSQLite = "gorm-sqlite"
)

// Price sources.
const (
	PriceSourceCoinGecko = "coingecko"
	PriceSourceBinance   = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel  logrus.Level
	LogFormat string // "text" or "json"

	// Trade store
	StoreDriver string // sqlite, postgres or gorm-sqlite
	DBPath      string // File used by the sqlite and gorm-sqlite drivers
	DatabaseURL string // Postgres DSN

	// Price feed
	PriceSource      string
	PollInterval     time.Duration // Between 30s and 60s
	CoinGeckoBaseURL string
	BinanceSymbol    string
	IsTestnet        bool
	RefreshPerMinute int // Manual refreshes allowed per minute

	// Write refreshed unrealized PnL back to the store on every tick
	PersistUnrealized bool

	// Dashboard password; the bcrypt hash wins when both are set
	SitePassword     string
	SitePasswordHash string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be 'text' or 'json'")
	}

	// Trade store
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite))
	cfg.DBPath = getEnv("DB_PATH", "./data/trades.db")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	switch cfg.StoreDriver {
	case StoreSQLite, StoreGormSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, "DB_PATH must be set")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported STORE_DRIVER '%s'", cfg.StoreDriver))
	}

	// Price feed
	cfg.PriceSource = strings.ToLower(getEnv("PRICE_SOURCE", PriceSourceCoinGecko))
	if cfg.PriceSource != PriceSourceCoinGecko && cfg.PriceSource != PriceSourceBinance {
		errs = append(errs, fmt.Sprintf("unsupported PRICE_SOURCE '%s'", cfg.PriceSource))
	}

	pollSeconds, err := getEnvAsIntRequired("PRICE_POLL_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_POLL_INTERVAL_SECONDS: %v", err))
	} else if pollSeconds < 30 || pollSeconds > 60 {
		errs = append(errs, "PRICE_POLL_INTERVAL_SECONDS must be between 30 and 60")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	cfg.CoinGeckoBaseURL = getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com")
	cfg.BinanceSymbol = strings.ToUpper(getEnv("BINANCE_SYMBOL", "BTCUSDT"))
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	cfg.RefreshPerMinute, err = getEnvAsIntRequired("PRICE_REFRESH_PER_MINUTE", 6)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_REFRESH_PER_MINUTE: %v", err))
	} else if cfg.RefreshPerMinute <= 0 {
		errs = append(errs, "PRICE_REFRESH_PER_MINUTE must be positive")
	}

	cfg.PersistUnrealized = getEnvAsBool("PERSIST_UNREALIZED", false)

	// Password gate
	cfg.SitePassword = getEnv("SITE_PASSWORD", "")
	cfg.SitePasswordHash = getEnv("SITE_PASSWORD_HASH", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
