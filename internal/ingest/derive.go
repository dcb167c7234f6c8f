package ingest

import (
	"math"

	"github.com/castleryder/dividend-harvest/internal/contracts"
)

// Derive fills the computed fields of rec relative to evalDate.
// Pure: the same record and date always give the same result.
func Derive(rec contracts.CanonicalRecord, evalDate contracts.Date) contracts.CanonicalRecord {
	rec.DaysUntilExDiv = nil
	if rec.NextExDivDate != nil {
		days := rec.NextExDivDate.DaysSince(evalDate)
		rec.DaysUntilExDiv = &days
	}

	rec.PctFrom52wLow = PctFromLow(rec.Close, rec.Week52Low)
	rec.PctFrom52wMid = PctFromMid(rec.Close, rec.Week52High, rec.Week52Low)
	return rec
}

// DeriveAll applies Derive to every record
func DeriveAll(recs []contracts.CanonicalRecord, evalDate contracts.Date) []contracts.CanonicalRecord {
	out := make([]contracts.CanonicalRecord, len(recs))
	for i, r := range recs {
		out[i] = Derive(r, evalDate)
	}
	return out
}

// PctFromLow is the distance of close above the 52-week low, in percent.
// 0 when the low is not positive.
func PctFromLow(close, low float64) float64 {
	if low <= 0 {
		return 0
	}
	return guard((close - low) / low * 100)
}

// PctFromMid is the distance of close from the 52-week midpoint, in percent.
// 0 when the midpoint is zero.
func PctFromMid(close, high, low float64) float64 {
	mid := (high + low) / 2
	if mid == 0 {
		return 0
	}
	return guard((close - mid) / mid * 100)
}

func guard(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
