// Package export renders result sets as CSV reports
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/snapshot"
)

// FilePrefix is the export file name prefix
const FilePrefix = "DIVIDEND_HARVEST_"

// Columns is the CSV header, in report order
var Columns = []string{
	"code",
	"name",
	"exchange",
	"close",
	"dividend_yield",
	"days_until_exdiv",
	"next_div_date",
	"payout_ratio",
	"pe_ratio",
	"pct_from_52w_low",
	"pct_from_52w_mid",
	"sector",
	"volume_avg_30d",
	"market_capitalization",
}

var (
	thousand = decimal.NewFromInt(1_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// FileName returns the export file name for an evaluation date
func FileName(date contracts.Date) string {
	return FilePrefix + date.String() + ".csv"
}

// WriteCSV writes the records in rank order. Volume is in thousands and
// market cap in billions; the records themselves are not modified.
func WriteCSV(w io.Writer, records []contracts.CanonicalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range records {
		if err := cw.Write(Row(&records[i])); err != nil {
			return fmt.Errorf("write row %s: %w", records[i].Code, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Row formats one record in Columns order
func Row(r *contracts.CanonicalRecord) []string {
	days := ""
	if r.DaysUntilExDiv != nil {
		days = strconv.Itoa(*r.DaysUntilExDiv)
	}
	date := ""
	if r.NextExDivDate != nil {
		date = r.NextExDivDate.String()
	}

	return []string{
		r.Code,
		r.Name,
		r.Exchange,
		fixed(decimal.NewFromFloat(r.Close), 2),
		fixed(decimal.NewFromFloat(r.DividendYield), 2),
		days,
		date,
		fixed(decimal.NewFromFloat(r.PayoutRatio), 2),
		fixed(decimal.NewFromFloat(r.PERatio), 2),
		fixed(decimal.NewFromFloat(r.PctFrom52wLow), 2),
		fixed(decimal.NewFromFloat(r.PctFrom52wMid), 2),
		r.Sector,
		fixed(decimal.NewFromFloat(r.VolumeAvg30d).Div(thousand), 1),
		fixed(decimal.NewFromFloat(r.MarketCap).Div(billion), 2),
	}
}

func fixed(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

// Encode renders a result set as CSV bytes
func Encode(rs *contracts.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rs.Records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Exporter writes dated CSV reports into a directory
type Exporter struct {
	store *snapshot.Store
}

// NewExporter creates an exporter over an export directory store
func NewExporter(store *snapshot.Store) *Exporter {
	return &Exporter{store: store}
}

// Export writes the result set and returns the file path
func (e *Exporter) Export(rs *contracts.ResultSet) (string, error) {
	data, err := Encode(rs)
	if err != nil {
		return "", err
	}

	name := FileName(rs.EvaluationDate)
	if err := e.store.WriteAtomic(name, data); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return e.store.Path(name), nil
}
