package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected Port to be 8080, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Provider.Name != ProviderEODHD {
		t.Errorf("Expected provider eodhd, got %s", cfg.Provider.Name)
	}

	if cfg.Thresholds != DefaultThresholds() {
		t.Errorf("Expected default thresholds, got %+v", cfg.Thresholds)
	}

	if cfg.Cache.TTL != 23*time.Hour {
		t.Errorf("Expected cache TTL 23h, got %v", cfg.Cache.TTL)
	}

	if cfg.Cache.UniverseTTL != 7*24*time.Hour {
		t.Errorf("Expected universe TTL 168h, got %v", cfg.Cache.UniverseTTL)
	}

	if len(cfg.EODHD.Exchanges) != 2 || cfg.EODHD.Exchanges[0] != "US" || cfg.EODHD.Exchanges[1] != "TO" {
		t.Errorf("Expected exchanges [US TO], got %v", cfg.EODHD.Exchanges)
	}

	if cfg.Database.Enabled() {
		t.Error("Expected database to be disabled without DATABASE_URL")
	}
}

func TestLoadWithCustomThresholds(t *testing.T) {
	t.Setenv("HARVEST_PROVIDER", "yahoo")
	t.Setenv("HARVEST_MIN_YIELD_PCT", "4.5")
	t.Setenv("HARVEST_MIN_MARKET_CAP", "5_000_000_000")
	t.Setenv("HARVEST_MIN_DAYS", "1")
	t.Setenv("HARVEST_MAX_DAYS", "60")
	t.Setenv("HARVEST_TICKERS", "KO, PEP,,T ")
	t.Setenv("HARVEST_CACHE_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Thresholds.MinYieldPct != 4.5 {
		t.Errorf("Expected MinYieldPct 4.5, got %v", cfg.Thresholds.MinYieldPct)
	}
	if cfg.Thresholds.MinMarketCap != 5e9 {
		t.Errorf("Expected MinMarketCap 5e9, got %v", cfg.Thresholds.MinMarketCap)
	}
	if cfg.Thresholds.MinDays != 1 || cfg.Thresholds.MaxDays != 60 {
		t.Errorf("Expected day window [1, 60], got [%d, %d]", cfg.Thresholds.MinDays, cfg.Thresholds.MaxDays)
	}
	if got := cfg.Universe.Tickers; len(got) != 3 || got[0] != "KO" || got[2] != "T" {
		t.Errorf("Expected tickers [KO PEP T], got %v", got)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Expected cache TTL 1h, got %v", cfg.Cache.TTL)
	}
	if !cfg.NeedsTickers() {
		t.Error("Expected yahoo provider to need tickers")
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "")
	t.Setenv("API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error when EODHD_API_KEY is missing, got nil")
	}
}

func TestValidatePlaceholderAPIKey(t *testing.T) {
	t.Setenv("EODHD_API_KEY", placeholderAPIKey)

	if _, err := Load(); err == nil {
		t.Error("Expected error when EODHD_API_KEY is the placeholder, got nil")
	}
}

func TestLegacyAPIKeyName(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "")
	t.Setenv("API_KEY", "legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.EODHD.APIKey != "legacy" {
		t.Errorf("Expected API key from API_KEY, got %q", cfg.EODHD.APIKey)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "test-key")
	t.Setenv("ENV", "invalid")

	if _, err := Load(); err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateInvertedDayWindow(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "test-key")
	t.Setenv("HARVEST_MIN_DAYS", "40")
	t.Setenv("HARVEST_MAX_DAYS", "35")

	if _, err := Load(); err == nil {
		t.Error("Expected error when min days exceeds max days, got nil")
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	t.Setenv("HARVEST_PROVIDER", "bloomberg")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown provider, got nil")
	}
}

func TestValidateFileUniverseNeedsPath(t *testing.T) {
	t.Setenv("HARVEST_PROVIDER", "yahoo")
	t.Setenv("HARVEST_UNIVERSE", "file")

	if _, err := Load(); err == nil {
		t.Error("Expected error when HARVEST_TICKERS_FILE is missing, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2h")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	if duration != 2*time.Hour {
		t.Errorf("Expected duration to be 2h, got %v", duration)
	}

	t.Setenv("TEST_DURATION", "garbage")
	if got := getEnvAsDuration("TEST_DURATION", "1h"); got != time.Hour {
		t.Errorf("Expected fallback 1h, got %v", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "100")

	value := getEnvAsInt("TEST_INT", 50)
	if value != 100 {
		t.Errorf("Expected value to be 100, got %d", value)
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "1.25")

	if got := getEnvAsFloat("TEST_FLOAT", 0); got != 1.25 {
		t.Errorf("Expected 1.25, got %v", got)
	}

	t.Setenv("TEST_FLOAT", "nope")
	if got := getEnvAsFloat("TEST_FLOAT", 7); got != 7 {
		t.Errorf("Expected fallback 7, got %v", got)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")

	value := getEnvAsBool("TEST_BOOL", false)
	if value != true {
		t.Errorf("Expected value to be true, got %v", value)
	}
}
