package selection

import (
	"context"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// Filter names reported in exclusion tallies, in evaluation order
const (
	FilterMarketCap   = "market_cap"
	FilterYield       = "dividend_yield"
	FilterEPS         = "eps"
	FilterPE          = "pe_ratio"
	FilterPayout      = "payout_ratio"
	FilterVolume      = "volume"
	FilterBeta        = "beta"
	FilterExDivWindow = "ex_div_window"
	FilterPctFromLow  = "pct_from_low"
)

// FilterNames lists every predicate in evaluation order
var FilterNames = []string{
	FilterMarketCap, FilterYield, FilterEPS, FilterPE, FilterPayout,
	FilterVolume, FilterBeta, FilterExDivWindow, FilterPctFromLow,
}

// Screener applies the eligibility predicates
// ⭐ SSOT: eligibility logic lives here only
type Screener struct {
	config config.Thresholds
	logger *logger.Logger
}

// NewScreener creates a new screener
func NewScreener(thresholds config.Thresholds, logger *logger.Logger) *Screener {
	return &Screener{
		config: thresholds,
		logger: logger,
	}
}

// Thresholds returns the active bounds
func (s *Screener) Thresholds() config.Thresholds {
	return s.config
}

// Screen returns the records that pass every predicate, in input order,
// and a count of exclusions per failing filter.
func (s *Screener) Screen(ctx context.Context, records []contracts.CanonicalRecord) ([]contracts.CanonicalRecord, map[string]int) {
	return s.screen(records, true, "Screening completed")
}

// ScreenUniverse is Screen without the ex-dividend window: the records that
// stay candidates regardless of when their next dividend falls.
func (s *Screener) ScreenUniverse(ctx context.Context, records []contracts.CanonicalRecord) ([]contracts.CanonicalRecord, map[string]int) {
	return s.screen(records, false, "Universe screening completed")
}

func (s *Screener) screen(records []contracts.CanonicalRecord, withWindow bool, msg string) ([]contracts.CanonicalRecord, map[string]int) {
	passed := make([]contracts.CanonicalRecord, 0)
	filtered := make(map[string]int) // filter name -> count

	for i := range records {
		reason := s.checkConditions(&records[i], withWindow)
		if reason == "" {
			passed = append(passed, records[i])
		} else {
			filtered[reason]++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(records),
		"passed":       len(passed),
		"filtered_out": len(records) - len(passed),
		"filters":      filtered,
	}).Info(msg)

	return passed, filtered
}

// CheckConditions returns "" when rec qualifies, otherwise the name of the
// first failing filter.
func (s *Screener) CheckConditions(rec *contracts.CanonicalRecord) string {
	return s.checkConditions(rec, true)
}

// Predicates are written as !(x passes) so a NaN never slips through.
func (s *Screener) checkConditions(rec *contracts.CanonicalRecord, withWindow bool) string {
	t := s.config

	if !(rec.MarketCap >= t.MinMarketCap) {
		return FilterMarketCap
	}

	if !(rec.DividendYield >= t.MinYieldPct) {
		return FilterYield
	}

	// Loss-making companies cannot fund the dividend from earnings
	if !(rec.EarningsPerShare > 0) {
		return FilterEPS
	}

	if !(rec.PERatio < t.MaxPE) {
		return FilterPE
	}

	if !(rec.PayoutRatio < t.MaxPayoutPct) {
		return FilterPayout
	}

	if !(rec.VolumeAvg30d > t.MinVolume) {
		return FilterVolume
	}

	if !(rec.Beta < t.MaxBeta) {
		return FilterBeta
	}

	if withWindow {
		if rec.DaysUntilExDiv == nil {
			return FilterExDivWindow
		}
		days := *rec.DaysUntilExDiv
		if days < t.MinDays || days > t.MaxDays {
			return FilterExDivWindow
		}
	}

	if !(rec.PctFrom52wLow > t.MinPctFromLow) {
		return FilterPctFromLow
	}

	return ""
}
