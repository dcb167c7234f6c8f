package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/snapshot"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

func sampleRecord() contracts.CanonicalRecord {
	date, _ := contracts.ParseDate("2024-03-14")
	days := 13
	return contracts.CanonicalRecord{
		Code:           "KO",
		Name:           "Coca-Cola, The",
		Exchange:       "US",
		Sector:         "Consumer Defensive",
		Close:          60.456,
		MarketCap:      260_500_000_000,
		VolumeAvg30d:   12_345_678,
		DividendYield:  3.1,
		PayoutRatio:    68,
		NextExDivDate:  &date,
		DaysUntilExDiv: &days,
		PERatio:        24.1,
		PctFrom52wLow:  17.28,
		PctFrom52wMid:  1.5,
		Rank:           1,
	}
}

func TestWriteCSV(t *testing.T) {
	rec := sampleRecord()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []contracts.CanonicalRecord{rec}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{
		"KO", "Coca-Cola, The", "US", "60.46", "3.10", "13", "2024-03-14",
		"68.00", "24.10", "17.28", "1.50", "Consumer Defensive", "12345.7", "260.50",
	}, rows[1])

	// scaling never touches the record
	assert.Equal(t, 260_500_000_000.0, rec.MarketCap)
}

func TestRow_MissingDate(t *testing.T) {
	rec := sampleRecord()
	rec.NextExDivDate = nil
	rec.DaysUntilExDiv = nil

	row := Row(&rec)
	assert.Equal(t, "", row[5])
	assert.Equal(t, "", row[6])
}

func TestEncode_Empty(t *testing.T) {
	data, err := Encode(&contracts.ResultSet{})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	store, err := snapshot.NewStore(dir, logger.NewNop())
	require.NoError(t, err)

	date, _ := contracts.ParseDate("2024-03-01")
	rs := &contracts.ResultSet{EvaluationDate: date, Records: []contracts.CanonicalRecord{sampleRecord()}}

	path, err := NewExporter(store).Export(rs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "DIVIDEND_HARVEST_2024-03-01.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "KO,")
}
