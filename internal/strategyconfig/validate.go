package strategyconfig

import (
	"fmt"
	"math"
)

// ValidationError is a fatal strategy file problem
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a recommendation violation (logged only)
type Warning struct {
	Code    string
	Message string
}

// Validate checks required constraints
func Validate(cfg *Config) error {
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	s := cfg.Screening
	if err := nonNegative(s.MinMarketCap, "screening.min_market_cap"); err != nil {
		return err
	}
	if err := nonNegative(s.MinYieldPct, "screening.min_yield_pct"); err != nil {
		return err
	}
	if err := positive(s.MaxPE, "screening.max_pe"); err != nil {
		return err
	}
	if s.MaxPayoutPct != nil && (*s.MaxPayoutPct <= 0 || *s.MaxPayoutPct > 1000) {
		return ValidationError{"screening.max_payout_pct", "must be in (0, 1000]"}
	}
	if err := nonNegative(s.MinVolume, "screening.min_volume"); err != nil {
		return err
	}
	if err := positive(s.MaxBeta, "screening.max_beta"); err != nil {
		return err
	}
	if s.MinPctFromLow != nil && (math.IsNaN(*s.MinPctFromLow) || *s.MinPctFromLow < -100) {
		return ValidationError{"screening.min_pct_from_low", "must be >= -100"}
	}

	if w := s.ExDivWindow; w != nil {
		if w.MinDays < 0 {
			return ValidationError{"screening.ex_div_window.min_days", "must be >= 0"}
		}
		if w.MinDays > w.MaxDays {
			return ValidationError{"screening.ex_div_window", "min_days must not exceed max_days"}
		}
	}

	if s.MaxResults != nil && *s.MaxResults <= 0 {
		return ValidationError{"screening.max_results", "must be > 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning
	s := cfg.Screening

	if s.MinYieldPct != nil && *s.MinYieldPct > 12 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_YIELD_FLOOR",
			Message: "min yield above 12%: results will be dominated by yield traps",
		})
	}

	if s.MaxPayoutPct != nil && *s.MaxPayoutPct > 100 {
		warnings = append(warnings, Warning{
			Code:    "UNCOVERED_PAYOUT",
			Message: "max payout above 100%: dividends not covered by earnings pass",
		})
	}

	if s.ExDivWindow != nil && s.ExDivWindow.MaxDays > 90 {
		warnings = append(warnings, Warning{
			Code:    "WIDE_WINDOW",
			Message: "ex-dividend window longer than a quarter",
		})
	}

	return warnings
}

func nonNegative(v *float64, field string) error {
	if v != nil && (math.IsNaN(*v) || *v < 0) {
		return ValidationError{field, "must be >= 0"}
	}
	return nil
}

func positive(v *float64, field string) error {
	if v != nil && (math.IsNaN(*v) || *v <= 0) {
		return ValidationError{field, "must be > 0"}
	}
	return nil
}
