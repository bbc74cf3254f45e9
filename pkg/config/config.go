// Package config loads bot configuration from the environment and builds
// the process logger.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Polymarket authentication
	PrivateKey    string // PK
	WalletAddress string // BROWSER_ADDRESS (proxy / funder wallet)
	APIKey        string
	APISecret     string
	APIPassphrase string
	ChainID       int64

	// Google Sheets
	SpreadsheetURL  string
	CredentialsFile string

	// Network
	APIBaseURL string
	DataAPIURL string
	WSBaseURL  string
	RPCURL     string // Polygon RPC; empty disables on-chain merges

	// Bot settings
	Environment string
	LogLevel    string
	LogDir      string
	HTTPPort    string

	// Risk caps
	MaxTotalExposure float64
	MinMergeSize     float64

	// Persistence
	PositionsDir string

	// Cadences
	UpdateInterval     time.Duration
	MarketRefreshEvery int // updater ticks between market-catalog refreshes

	// Stream reconnect schedule
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
}

// LoadFromEnv loads configuration from the environment, reading an optional
// .env file first. All validation failures are aggregated into one error so
// a misconfigured deployment reports everything at once.
func LoadFromEnv() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		PrivateKey:    os.Getenv("PK"),
		WalletAddress: os.Getenv("BROWSER_ADDRESS"),
		APIKey:        os.Getenv("POLYMARKET_API_KEY"),
		APISecret:     os.Getenv("POLYMARKET_SECRET"),
		APIPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		ChainID:       int64(getIntOrDefault("CHAIN_ID", 137)),

		SpreadsheetURL:  os.Getenv("SPREADSHEET_URL"),
		CredentialsFile: getEnvOrDefault("GOOGLE_CREDENTIALS_FILE", "service-account.json"),

		APIBaseURL: getEnvOrDefault("POLYMARKET_API_URL", "https://clob.polymarket.com"),
		DataAPIURL: getEnvOrDefault("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
		WSBaseURL:  getEnvOrDefault("WEBSOCKET_URL", "wss://ws-subscriptions-clob.polymarket.com/ws"),
		RPCURL:     getEnvOrDefault("POLYGON_RPC_URL", ""),

		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir:      getEnvOrDefault("LOG_DIR", "logs"),
		HTTPPort:    getEnvOrDefault("HTTP_PORT", "8080"),

		MaxTotalExposure: getFloat64OrDefault("MAX_TOTAL_EXPOSURE", 5000),
		MinMergeSize:     getFloat64OrDefault("MIN_MERGE_SIZE", 1.0),

		PositionsDir: getEnvOrDefault("POSITIONS_DIR", "positions"),

		UpdateInterval:     getDurationOrDefault("UPDATE_INTERVAL", 5*time.Second),
		MarketRefreshEvery: getIntOrDefault("MARKET_REFRESH_EVERY", 6),

		ReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		ReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 60*time.Second),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required settings, reporting every problem in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.PrivateKey == "" {
		errs = append(errs, "PK (private key) is required")
	}

	if c.WalletAddress == "" {
		errs = append(errs, "BROWSER_ADDRESS (wallet address) is required")
	}

	if c.SpreadsheetURL == "" {
		errs = append(errs, "SPREADSHEET_URL is required")
	}

	if _, err := os.Stat(c.CredentialsFile); err != nil {
		errs = append(errs, fmt.Sprintf("Google credentials file not found: %s", c.CredentialsFile))
	}

	if c.MinMergeSize <= 0 {
		errs = append(errs, fmt.Sprintf("MIN_MERGE_SIZE must be positive, got %v", c.MinMergeSize))
	}

	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Sprintf("UPDATE_INTERVAL must be positive, got %v", c.UpdateInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
