package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// placeholderAPIKey is the value shipped in the sample .env file.
const placeholderAPIKey = "your_actual_eodhd_key_here_replace_me"

// Supported data providers
const (
	ProviderEODHD             = "eodhd"
	ProviderEODHDFundamentals = "eodhd-fundamentals"
	ProviderYahoo             = "yahoo"
)

// Supported universe sources
const (
	UniverseStatic = "static"
	UniverseFile   = "file"
	UniverseSP500  = "sp500"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, enables run history)
	Database DatabaseConfig

	// Redis (optional, mirrors the result set and shares rate limits)
	Redis RedisConfig

	// Upstream data
	Provider ProviderConfig
	EODHD    EODHDConfig
	Fetch    FetchConfig

	// Screening
	Thresholds Thresholds
	Cache      CacheConfig
	Universe   UniverseConfig
	Schedule   ScheduleConfig

	// StrategyFile is an optional YAML file overriding Thresholds
	StrategyFile string

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ProviderConfig selects the upstream data source
type ProviderConfig struct {
	Name string // eodhd, eodhd-fundamentals, yahoo
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	APIKey     string
	BaseURL    string
	Exchanges  []string
	YieldUnit  string // percent or decimal
	PayoutUnit string // percent or decimal
	ScanLimit  int
}

// FetchConfig is the retry and pacing policy applied to every upstream call
type FetchConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Jitter       float64
	RequestDelay time.Duration
	Timeout      time.Duration
}

// Thresholds are the eligibility filter bounds.
// Yield and payout are percentages (4.5 means 4.5%).
type Thresholds struct {
	MinMarketCap  float64 `yaml:"min_market_cap" json:"min_market_cap"`
	MinYieldPct   float64 `yaml:"min_yield_pct" json:"min_yield_pct"`
	MaxPE         float64 `yaml:"max_pe" json:"max_pe"`
	MaxPayoutPct  float64 `yaml:"max_payout_pct" json:"max_payout_pct"`
	MinVolume     float64 `yaml:"min_volume" json:"min_volume"`
	MaxBeta       float64 `yaml:"max_beta" json:"max_beta"`
	MinDays       int     `yaml:"min_days" json:"min_days"`
	MaxDays       int     `yaml:"max_days" json:"max_days"`
	MinPctFromLow float64 `yaml:"min_pct_from_low" json:"min_pct_from_low"`
	MaxResults    int     `yaml:"max_results" json:"max_results"`
}

// CacheConfig holds the on-disk snapshot settings
type CacheConfig struct {
	DataDir         string
	ExportDir       string
	TTL             time.Duration
	UniverseTTL     time.Duration
	ExportRetention time.Duration
}

// UniverseConfig selects where tickers come from
type UniverseConfig struct {
	Source  string // static, file, sp500
	Tickers []string
	File    string
	URL     string
}

// ScheduleConfig holds cron expressions (with seconds)
type ScheduleConfig struct {
	RefreshCron  string
	UniverseCron string
}

// DefaultThresholds returns the stock eligibility bounds
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMarketCap:  1_000_000_000,
		MinYieldPct:   3.0,
		MaxPE:         25,
		MaxPayoutPct:  70,
		MinVolume:     300_000,
		MaxBeta:       1.5,
		MinDays:       0,
		MaxDays:       35,
		MinPctFromLow: 15,
		MaxResults:    100,
	}
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	def := DefaultThresholds()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Provider: ProviderConfig{
			Name: strings.ToLower(getEnv("HARVEST_PROVIDER", ProviderEODHD)),
		},

		EODHD: EODHDConfig{
			// API_KEY is the legacy variable name
			APIKey:     getEnv("EODHD_API_KEY", getEnv("API_KEY", "")),
			BaseURL:    getEnv("EODHD_BASE_URL", "https://eodhd.com/api"),
			Exchanges:  getEnvAsList("EODHD_EXCHANGES", []string{"US", "TO"}),
			YieldUnit:  strings.ToLower(getEnv("EODHD_YIELD_UNIT", "percent")),
			PayoutUnit: strings.ToLower(getEnv("EODHD_PAYOUT_UNIT", "percent")),
			ScanLimit:  getEnvAsInt("EODHD_SCAN_LIMIT", 500),
		},

		Fetch: FetchConfig{
			MaxAttempts:  getEnvAsInt("FETCH_MAX_ATTEMPTS", 3),
			BaseDelay:    getEnvAsDuration("FETCH_BASE_DELAY", "1s"),
			MaxDelay:     getEnvAsDuration("FETCH_MAX_DELAY", "30s"),
			Jitter:       getEnvAsFloat("FETCH_JITTER", 0.2),
			RequestDelay: getEnvAsDuration("FETCH_REQUEST_DELAY", "250ms"),
			Timeout:      getEnvAsDuration("FETCH_TIMEOUT", "30s"),
		},

		Thresholds: Thresholds{
			MinMarketCap:  getEnvAsFloat("HARVEST_MIN_MARKET_CAP", def.MinMarketCap),
			MinYieldPct:   getEnvAsFloat("HARVEST_MIN_YIELD_PCT", def.MinYieldPct),
			MaxPE:         getEnvAsFloat("HARVEST_MAX_PE", def.MaxPE),
			MaxPayoutPct:  getEnvAsFloat("HARVEST_MAX_PAYOUT_PCT", def.MaxPayoutPct),
			MinVolume:     getEnvAsFloat("HARVEST_MIN_VOLUME", def.MinVolume),
			MaxBeta:       getEnvAsFloat("HARVEST_MAX_BETA", def.MaxBeta),
			MinDays:       getEnvAsInt("HARVEST_MIN_DAYS", def.MinDays),
			MaxDays:       getEnvAsInt("HARVEST_MAX_DAYS", def.MaxDays),
			MinPctFromLow: getEnvAsFloat("HARVEST_MIN_PCT_FROM_LOW", def.MinPctFromLow),
			MaxResults:    getEnvAsInt("HARVEST_MAX_RESULTS", def.MaxResults),
		},

		Cache: CacheConfig{
			DataDir:         getEnv("HARVEST_DATA_DIR", "data"),
			ExportDir:       getEnv("HARVEST_EXPORT_DIR", "exports"),
			TTL:             getEnvAsDuration("HARVEST_CACHE_TTL", "23h"),
			UniverseTTL:     getEnvAsDuration("HARVEST_UNIVERSE_TTL", "168h"),
			ExportRetention: getEnvAsDuration("HARVEST_EXPORT_RETENTION", "720h"),
		},

		Universe: UniverseConfig{
			Source:  strings.ToLower(getEnv("HARVEST_UNIVERSE", UniverseStatic)),
			Tickers: getEnvAsList("HARVEST_TICKERS", nil),
			File:    getEnv("HARVEST_TICKERS_FILE", ""),
			URL:     getEnv("HARVEST_UNIVERSE_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
		},

		Schedule: ScheduleConfig{
			RefreshCron:  getEnv("HARVEST_REFRESH_CRON", "0 30 6 * * 1-5"),
			UniverseCron: getEnv("HARVEST_UNIVERSE_CRON", "0 0 5 * * 1"),
		},

		StrategyFile: getEnv("HARVEST_STRATEGY_FILE", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set.
// Missing upstream credentials fail here, before any fetch is attempted.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	switch c.Provider.Name {
	case ProviderEODHD, ProviderEODHDFundamentals:
		if c.EODHD.APIKey == "" || c.EODHD.APIKey == placeholderAPIKey {
			return fmt.Errorf("EODHD_API_KEY is required for provider %q", c.Provider.Name)
		}
		if !validUnit(c.EODHD.YieldUnit) || !validUnit(c.EODHD.PayoutUnit) {
			return fmt.Errorf("EODHD_YIELD_UNIT and EODHD_PAYOUT_UNIT must be percent or decimal")
		}
	case ProviderYahoo:
	default:
		return fmt.Errorf("unknown HARVEST_PROVIDER %q (valid: eodhd, eodhd-fundamentals, yahoo)", c.Provider.Name)
	}

	switch c.Universe.Source {
	case UniverseStatic, UniverseSP500:
	case UniverseFile:
		if c.Universe.File == "" {
			return fmt.Errorf("HARVEST_TICKERS_FILE is required when HARVEST_UNIVERSE=file")
		}
	default:
		return fmt.Errorf("unknown HARVEST_UNIVERSE %q (valid: static, file, sp500)", c.Universe.Source)
	}

	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	if c.Cache.TTL <= 0 || c.Cache.UniverseTTL <= 0 {
		return fmt.Errorf("HARVEST_CACHE_TTL and HARVEST_UNIVERSE_TTL must be positive")
	}

	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// Validate checks threshold ranges
func (t Thresholds) Validate() error {
	if t.MinDays > t.MaxDays {
		return fmt.Errorf("min days (%d) must not exceed max days (%d)", t.MinDays, t.MaxDays)
	}
	if t.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", t.MaxResults)
	}
	return nil
}

// NeedsTickers reports whether the provider queries symbol by symbol
func (c *Config) NeedsTickers() bool {
	return c.Provider.Name != ProviderEODHD
}

func validUnit(u string) bool {
	return u == "percent" || u == "decimal"
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(valueStr, "_", ""), 64)
	if err != nil {
		return defaultValue
	}

	return value
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
