package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Base chain / Synthetix
	BaseRPCURL       string
	WalletAddress    string
	PrivateKey       string
	PerpsMarketProxy string
	SpotMarketProxy  string

	// Binance
	BinanceBaseURL   string
	BinanceWSURL     string
	BinanceAPIKey    string
	BinanceAPISecret string

	// Price oracle
	PythHermesURL string
	PriceCacheTTL time.Duration

	// Trading
	Symbols          []string
	TradeNotionalUSD float64
	TradeLeverage    float64
	HorizonHours     int
	SynthetixFee     float64
	BinanceFee       float64

	// Scanner
	ScanInterval time.Duration

	// Execution
	ExecutionMode          string // "paper" or "live"
	AdapterTimeout         time.Duration
	SettlementPollInterval time.Duration
	SettlementTimeout      time.Duration
	CloseMaxAttempts       int
	CloseRetryDelay        time.Duration
	CollateralStepDelay    time.Duration
	CloseAllWorkers        int

	// Circuit breaker
	BreakerCheckInterval   time.Duration
	BreakerMinCollateral   float64
	BreakerTradeMultiplier float64
	BreakerHysteresisRatio float64

	// Notifications
	NotifyWebhookURL string

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Base chain defaults
		BaseRPCURL:       getEnvOrDefault("BASE_PROVIDER_RPC", "https://mainnet.base.org"),
		WalletAddress:    os.Getenv("WALLET_ADDRESS"),
		PrivateKey:       os.Getenv("WALLET_PRIVATE_KEY"),
		PerpsMarketProxy: getEnvOrDefault("SNX_PERPS_MARKET_PROXY", "0x0A2AF931eFFd34b81ebcc57E3d3c9B1E1dE1C9Ce"),
		SpotMarketProxy:  getEnvOrDefault("SNX_SPOT_MARKET_PROXY", "0x18141523403e2595D31b22604AcB8Fc06a4CaA61"),

		// Binance defaults
		BinanceBaseURL:   getEnvOrDefault("BINANCE_BASE_URL", "https://testnet.binancefuture.com"),
		BinanceWSURL:     getEnvOrDefault("BINANCE_WS_URL", "wss://fstream.binance.com/ws"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),

		// Oracle defaults
		PythHermesURL: getEnvOrDefault("PYTH_HERMES_URL", "https://hermes.pyth.network"),
		PriceCacheTTL: getDurationOrDefault("PRICE_CACHE_TTL", 5*time.Second),

		// Trading defaults
		Symbols:          getStringSliceOrDefault("TRADE_SYMBOLS", []string{"ETH", "BTC"}),
		TradeNotionalUSD: getFloat64OrDefault("TRADE_NOTIONAL_USD", 10000.0),
		TradeLeverage:    getFloat64OrDefault("TRADE_LEVERAGE", 5.0),
		HorizonHours:     getIntOrDefault("PROFIT_HORIZON_HOURS", 8),
		SynthetixFee:     getFloat64OrDefault("SYNTHETIX_FEE", 0.0003),
		BinanceFee:       getFloat64OrDefault("BINANCE_FEE", 0.0005),

		// Scanner defaults
		ScanInterval: getDurationOrDefault("SCAN_INTERVAL", 60*time.Second),

		// Execution defaults
		ExecutionMode:          getEnvOrDefault("EXECUTION_MODE", "paper"),
		AdapterTimeout:         getDurationOrDefault("ADAPTER_TIMEOUT", 30*time.Second),
		SettlementPollInterval: getDurationOrDefault("SETTLEMENT_POLL_INTERVAL", 2*time.Second),
		SettlementTimeout:      getDurationOrDefault("SETTLEMENT_TIMEOUT", 60*time.Second),
		CloseMaxAttempts:       getIntOrDefault("CLOSE_MAX_ATTEMPTS", 2),
		CloseRetryDelay:        getDurationOrDefault("CLOSE_RETRY_DELAY", 3*time.Second),
		CollateralStepDelay:    getDurationOrDefault("COLLATERAL_STEP_DELAY", 1*time.Second),
		CloseAllWorkers:        getIntOrDefault("CLOSE_ALL_WORKERS", 4),

		// Circuit breaker defaults
		BreakerCheckInterval:   getDurationOrDefault("BREAKER_CHECK_INTERVAL", 60*time.Second),
		BreakerMinCollateral:   getFloat64OrDefault("BREAKER_MIN_COLLATERAL_USD", 100.0),
		BreakerTradeMultiplier: getFloat64OrDefault("BREAKER_TRADE_MULTIPLIER", 1.5),
		BreakerHysteresisRatio: getFloat64OrDefault("BREAKER_HYSTERESIS_RATIO", 1.2),

		// Notification defaults
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "funding_arb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "funding_arb"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "funding_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.BaseRPCURL == "" {
		return fmt.Errorf("BASE_PROVIDER_RPC cannot be empty")
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("TRADE_SYMBOLS cannot be empty")
	}

	if c.TradeNotionalUSD <= 0 {
		return fmt.Errorf("TRADE_NOTIONAL_USD must be positive, got %f", c.TradeNotionalUSD)
	}

	if c.TradeLeverage < 1.0 {
		return fmt.Errorf("TRADE_LEVERAGE must be >= 1.0, got %f", c.TradeLeverage)
	}

	if c.HorizonHours <= 0 {
		return fmt.Errorf("PROFIT_HORIZON_HOURS must be positive, got %d", c.HorizonHours)
	}

	if c.CloseMaxAttempts < 1 {
		return fmt.Errorf("CLOSE_MAX_ATTEMPTS must be >= 1, got %d", c.CloseMaxAttempts)
	}

	if c.CloseAllWorkers < 1 {
		return fmt.Errorf("CLOSE_ALL_WORKERS must be >= 1, got %d", c.CloseAllWorkers)
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper' or 'live', got %q", c.ExecutionMode)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
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

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
