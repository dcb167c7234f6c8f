package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/castleryder/dividend-harvest/internal/contracts"
)

// Sentinels for absent fields. Each one fails the matching
// "less-than" predicate so a missing value is never a wildcard pass.
const (
	SentinelPE     = 999.0
	SentinelBeta   = 2.0
	SentinelPayout = 100.0 // percent
)

// tolerated ex-dividend date layouts, tried in order
var dateLayouts = []string{
	contracts.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"20060102",
}

// minEpochDigits keeps compact YYYYMMDD dates out of the epoch fallback
const minEpochDigits = 9

// Normalize converts a provider record into the canonical shape.
// Ratios are converted to percent here and nowhere else. Never fails:
// a malformed field becomes its sentinel and the filter drops the record.
// ⭐ SSOT: the only place provider units are interpreted
func Normalize(raw contracts.RawSecurityRecord, prov contracts.Provenance) contracts.CanonicalRecord {
	rec := contracts.CanonicalRecord{
		Code:     strings.ToUpper(strings.TrimSpace(raw.Symbol)),
		Name:     strings.TrimSpace(raw.Name),
		Exchange: strings.TrimSpace(raw.Exchange),
		Sector:   strings.TrimSpace(raw.Sector),

		Close:            valueOr(raw.Close, 0),
		MarketCap:        valueOr(raw.MarketCap, 0),
		VolumeAvg30d:     valueOr(raw.VolumeAvg30d, 0),
		EarningsPerShare: valueOr(raw.EPS, 0),
		Week52High:       valueOr(raw.Week52High, 0),
		Week52Low:        valueOr(raw.Week52Low, 0),

		PERatio: valueOr(raw.PERatio, SentinelPE),
		Beta:    valueOr(raw.Beta, SentinelBeta),
	}

	rec.DividendYield = 0
	if v, ok := finite(raw.DividendYield); ok {
		rec.DividendYield = toPercent(v, prov.YieldUnit)
	}

	rec.PayoutRatio = SentinelPayout
	if v, ok := finite(raw.PayoutRatio); ok {
		rec.PayoutRatio = toPercent(v, prov.PayoutUnit)
	}

	rec.NextExDivDate = parseExDivDate(raw.ExDividendDate, raw.ExDividendEpoch)
	return rec
}

// NormalizeAll normalizes a batch, dropping records without a symbol
// and keeping the first record seen for each code.
func NormalizeAll(raws []contracts.RawSecurityRecord, prov contracts.Provenance) []contracts.CanonicalRecord {
	out := make([]contracts.CanonicalRecord, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		rec := Normalize(raw, prov)
		if rec.Code == "" || seen[rec.Code] {
			continue
		}
		seen[rec.Code] = true
		out = append(out, rec)
	}
	return out
}

func toPercent(v float64, unit contracts.Unit) float64 {
	if unit == contracts.UnitDecimal {
		return v * 100
	}
	return v
}

func finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

func valueOr(p *float64, fallback float64) float64 {
	if v, ok := finite(p); ok {
		return v
	}
	return fallback
}

// parseExDivDate prefers the string form, falling back to epoch seconds
func parseExDivDate(s string, epoch int64) *contracts.Date {
	if d, ok := ParseDateTolerant(s); ok {
		return &d
	}
	if epoch > 0 {
		d := contracts.NewDate(time.Unix(epoch, 0))
		return &d
	}
	return nil
}

// ParseDateTolerant parses the date layouts providers are known to send.
// Timestamps keep the calendar day of their own offset. A numeric string
// of at least nine digits is read as Unix seconds. Unknown input yields false.
func ParseDateTolerant(s string) (contracts.Date, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "0", "none", "null", "n/a", "nan", "0000-00-00":
		return contracts.Date{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.NewDate(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)), true
		}
	}

	if len(s) < minEpochDigits || !isDigits(s) {
		return contracts.Date{}, false
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return contracts.NewDate(time.Unix(secs, 0)), true
	}
	return contracts.Date{}, false
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
