package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/castleryder/dividend-harvest/pkg/config"
)

// Load reads the YAML file and returns Config with raw bytes.
// KnownFields(true) makes a misspelled key fail instead of being ignored.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates strategy YAML
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash returns the SHA-256 of the thresholds as canonical JSON.
// Structs marshal in field order, so equal thresholds hash equally.
func Hash(t config.Thresholds) (string, error) {
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Resolve applies the strategy file, if any, to the environment thresholds
// and returns the effective thresholds with their hash.
// ⭐ SSOT: effective screening thresholds are decided here
func Resolve(cfg *config.Config) (config.Thresholds, string, error) {
	thresholds := cfg.Thresholds

	if cfg.StrategyFile != "" {
		strategy, _, err := Load(cfg.StrategyFile)
		if err != nil {
			return config.Thresholds{}, "", fmt.Errorf("load strategy %s: %w", cfg.StrategyFile, err)
		}
		thresholds = strategy.Apply(thresholds)
	}

	if err := thresholds.Validate(); err != nil {
		return config.Thresholds{}, "", err
	}

	hash, err := Hash(thresholds)
	if err != nil {
		return config.Thresholds{}, "", err
	}
	return thresholds, hash, nil
}
