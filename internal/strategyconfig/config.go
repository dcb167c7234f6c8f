// Package strategyconfig loads the optional YAML strategy file that
// overrides the screening thresholds.
package strategyconfig

import (
	"github.com/castleryder/dividend-harvest/pkg/config"
)

// Config is the strategy file
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Screening Screening `yaml:"screening" json:"screening"`
}

// Meta identifies the strategy
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Screening overrides. A nil field keeps the environment value.
// Yield and payout are percentages.
type Screening struct {
	MinMarketCap  *float64 `yaml:"min_market_cap" json:"min_market_cap,omitempty"`
	MinYieldPct   *float64 `yaml:"min_yield_pct" json:"min_yield_pct,omitempty"`
	MaxPE         *float64 `yaml:"max_pe" json:"max_pe,omitempty"`
	MaxPayoutPct  *float64 `yaml:"max_payout_pct" json:"max_payout_pct,omitempty"`
	MinVolume     *float64 `yaml:"min_volume" json:"min_volume,omitempty"`
	MaxBeta       *float64 `yaml:"max_beta" json:"max_beta,omitempty"`
	ExDivWindow   *Window  `yaml:"ex_div_window" json:"ex_div_window,omitempty"`
	MinPctFromLow *float64 `yaml:"min_pct_from_low" json:"min_pct_from_low,omitempty"`
	MaxResults    *int     `yaml:"max_results" json:"max_results,omitempty"`
}

// Window is the inclusive ex-dividend day range
type Window struct {
	MinDays int `yaml:"min_days" json:"min_days"`
	MaxDays int `yaml:"max_days" json:"max_days"`
}

// Apply returns base with every set override applied
func (c *Config) Apply(base config.Thresholds) config.Thresholds {
	s := c.Screening
	out := base

	setFloat(&out.MinMarketCap, s.MinMarketCap)
	setFloat(&out.MinYieldPct, s.MinYieldPct)
	setFloat(&out.MaxPE, s.MaxPE)
	setFloat(&out.MaxPayoutPct, s.MaxPayoutPct)
	setFloat(&out.MinVolume, s.MinVolume)
	setFloat(&out.MaxBeta, s.MaxBeta)
	setFloat(&out.MinPctFromLow, s.MinPctFromLow)

	if s.ExDivWindow != nil {
		out.MinDays = s.ExDivWindow.MinDays
		out.MaxDays = s.ExDivWindow.MaxDays
	}
	if s.MaxResults != nil {
		out.MaxResults = *s.MaxResults
	}
	return out
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
