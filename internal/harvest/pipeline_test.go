package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

var (
	testToday = contracts.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	testProv  = contracts.Provenance{Source: "fake", YieldUnit: contracts.UnitPercent, PayoutUnit: contracts.UnitPercent}
)

// qualifyingRaw is a raw record that passes every filter
func qualifyingRaw(symbol string) contracts.RawSecurityRecord {
	return qualifyingRawAt(symbol, testToday)
}

func qualifyingRawAt(symbol string, today contracts.Date) contracts.RawSecurityRecord {
	return contracts.RawSecurityRecord{
		Symbol:         symbol,
		Name:           symbol + " Corp",
		MarketCap:      contracts.Float(2e9),
		DividendYield:  contracts.Float(4.0),
		EPS:            contracts.Float(1.2),
		PERatio:        contracts.Float(18),
		PayoutRatio:    contracts.Float(40),
		VolumeAvg30d:   contracts.Float(500000),
		Beta:           contracts.Float(0.9),
		ExDividendDate: today.AddDays(10).String(),
		Close:          contracts.Float(50),
		Week52Low:      contracts.Float(40),
		Week52High:     contracts.Float(60),
	}
}

func newTestPipeline() *Pipeline {
	return NewPipeline(config.DefaultThresholds(), logger.NewNop())
}

func TestPipeline_QualifyingRecordIncluded(t *testing.T) {
	out := newTestPipeline().Run(context.Background(), []contracts.RawSecurityRecord{qualifyingRaw("AAA")}, testProv, testToday)

	require.Len(t, out.Records, 1)
	rec := out.Records[0]
	assert.Equal(t, "AAA", rec.Code)
	assert.InDelta(t, 25.0, rec.PctFrom52wLow, 1e-9)
	require.NotNil(t, rec.DaysUntilExDiv)
	assert.Equal(t, 10, *rec.DaysUntilExDiv)
	assert.Equal(t, 1, rec.Rank)
}

func TestPipeline_HighBetaExcluded(t *testing.T) {
	raw := qualifyingRaw("BBB")
	raw.Beta = contracts.Float(1.8)

	out := newTestPipeline().Run(context.Background(), []contracts.RawSecurityRecord{raw}, testProv, testToday)
	assert.Empty(t, out.Records)
	assert.Equal(t, 1, out.Excluded["beta"])
}

func TestPipeline_OutsideWindowExcluded(t *testing.T) {
	raw := qualifyingRaw("CCC")
	raw.ExDividendDate = testToday.AddDays(40).String()

	out := newTestPipeline().Run(context.Background(), []contracts.RawSecurityRecord{raw}, testProv, testToday)
	assert.Empty(t, out.Records)
	assert.Equal(t, 1, out.Excluded["ex_div_window"])
	// still part of the qualified universe
	assert.Equal(t, []string{"CCC"}, out.Qualified)
}

func TestPipeline_SameDayHigherYieldFirst(t *testing.T) {
	low := qualifyingRaw("LOW")
	low.DividendYield = contracts.Float(3.5)
	low.ExDividendDate = testToday.AddDays(5).String()
	high := qualifyingRaw("HIGH")
	high.DividendYield = contracts.Float(6.0)
	high.ExDividendDate = testToday.AddDays(5).String()

	out := newTestPipeline().Run(context.Background(), []contracts.RawSecurityRecord{low, high}, testProv, testToday)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "HIGH", out.Records[0].Code)
	assert.Equal(t, "LOW", out.Records[1].Code)
}

func TestPipeline_EmptyInput(t *testing.T) {
	out := newTestPipeline().Run(context.Background(), nil, testProv, testToday)
	require.NotNil(t, out)
	assert.Empty(t, out.Records)
	assert.NotNil(t, out.Records)
	assert.Equal(t, 0, out.Scanned)
}

func TestPipeline_MissingFieldsNeverQualify(t *testing.T) {
	tests := []struct {
		name  string
		strip func(r *contracts.RawSecurityRecord)
	}{
		{"no pe", func(r *contracts.RawSecurityRecord) { r.PERatio = nil }},
		{"no beta", func(r *contracts.RawSecurityRecord) { r.Beta = nil }},
		{"no payout", func(r *contracts.RawSecurityRecord) { r.PayoutRatio = nil }},
		{"no date", func(r *contracts.RawSecurityRecord) { r.ExDividendDate = "" }},
		{"garbage date", func(r *contracts.RawSecurityRecord) { r.ExDividendDate = "soon" }},
		{"no low", func(r *contracts.RawSecurityRecord) { r.Week52Low = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := qualifyingRaw("MISS")
			tt.strip(&raw)
			out := newTestPipeline().Run(context.Background(), []contracts.RawSecurityRecord{raw}, testProv, testToday)
			assert.Empty(t, out.Records)
		})
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	raws := []contracts.RawSecurityRecord{qualifyingRaw("A"), qualifyingRaw("B"), qualifyingRaw("C")}
	raws[1].DividendYield = contracts.Float(5)

	p := newTestPipeline()
	first := p.Run(context.Background(), raws, testProv, testToday)
	second := p.Run(context.Background(), raws, testProv, testToday)
	assert.Equal(t, first, second)
}
