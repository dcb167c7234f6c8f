package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
)

var evalDate = contracts.NewDate(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))

func datePtr(d contracts.Date) *contracts.Date { return &d }

func TestDerive_QualifyingRecord(t *testing.T) {
	rec := contracts.CanonicalRecord{
		Code:          "AAA",
		Close:         50,
		Week52Low:     40,
		Week52High:    60,
		NextExDivDate: datePtr(evalDate.AddDays(10)),
	}

	got := Derive(rec, evalDate)

	require.NotNil(t, got.DaysUntilExDiv)
	assert.Equal(t, 10, *got.DaysUntilExDiv)
	assert.InDelta(t, 25.0, got.PctFrom52wLow, 1e-9)
	assert.InDelta(t, 0.0, got.PctFrom52wMid, 1e-9)
}

func TestDerive_PastDateIsNegative(t *testing.T) {
	got := Derive(contracts.CanonicalRecord{NextExDivDate: datePtr(evalDate.AddDays(-3))}, evalDate)
	require.NotNil(t, got.DaysUntilExDiv)
	assert.Equal(t, -3, *got.DaysUntilExDiv)
}

func TestDerive_DaysNilIffDateNil(t *testing.T) {
	withDate := Derive(contracts.CanonicalRecord{NextExDivDate: datePtr(evalDate)}, evalDate)
	require.NotNil(t, withDate.DaysUntilExDiv)
	assert.Equal(t, 0, *withDate.DaysUntilExDiv)

	stale := 7
	noDate := Derive(contracts.CanonicalRecord{DaysUntilExDiv: &stale}, evalDate)
	assert.Nil(t, noDate.NextExDivDate)
	assert.Nil(t, noDate.DaysUntilExDiv)
}

func TestDerive_ZeroDivisorsGiveZero(t *testing.T) {
	cases := []contracts.CanonicalRecord{
		{Close: 10, Week52Low: 0, Week52High: 0},
		{Close: 10, Week52Low: -5, Week52High: 5},
		{Close: 0, Week52Low: 0, Week52High: 0},
	}

	for _, rec := range cases {
		got := Derive(rec, evalDate)
		assert.False(t, math.IsNaN(got.PctFrom52wLow) || math.IsInf(got.PctFrom52wLow, 0))
		assert.False(t, math.IsNaN(got.PctFrom52wMid) || math.IsInf(got.PctFrom52wMid, 0))
		assert.Equal(t, 0.0, got.PctFrom52wLow)
	}
}

func TestDerive_IsPure(t *testing.T) {
	rec := contracts.CanonicalRecord{Close: 30, Week52Low: 20, Week52High: 40, NextExDivDate: datePtr(evalDate.AddDays(5))}
	a := Derive(rec, evalDate)
	b := Derive(rec, evalDate)
	assert.Equal(t, a, b)
	assert.Nil(t, rec.DaysUntilExDiv, "input must not be mutated")
}

func TestPctFromMid(t *testing.T) {
	assert.InDelta(t, 10.0, PctFromMid(55, 60, 40), 1e-9)
	assert.InDelta(t, -20.0, PctFromMid(40, 60, 40), 1e-9)
	assert.Equal(t, 0.0, PctFromMid(10, 5, -5))
}

func TestDeriveAll(t *testing.T) {
	out := DeriveAll([]contracts.CanonicalRecord{
		{Code: "A", NextExDivDate: datePtr(evalDate.AddDays(1))},
		{Code: "B"},
	}, evalDate)

	require.Len(t, out, 2)
	assert.Equal(t, 1, *out[0].DaysUntilExDiv)
	assert.Nil(t, out[1].DaysUntilExDiv)
}
