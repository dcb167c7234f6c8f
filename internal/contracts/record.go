package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the serialized form of every calendar date (ISO-8601)
const DateLayout = "2006-01-02"

// Unit tags how a provider expresses a ratio field
type Unit string

const (
	UnitPercent Unit = "percent" // 4.5 means 4.5%
	UnitDecimal Unit = "decimal" // 0.045 means 4.5%
)

// Provenance identifies a source and its field-unit conventions.
// Ratios are converted to percent once, at ingestion, using these tags.
type Provenance struct {
	Source     string `json:"source"`
	YieldUnit  Unit   `json:"yield_unit"`
	PayoutUnit Unit   `json:"payout_unit"`
}

// RawSecurityRecord is a provider-shaped record.
// Numeric fields are pointers so an absent value is distinguishable from zero.
type RawSecurityRecord struct {
	Symbol   string
	Name     string
	Exchange string
	Sector   string

	Close         *float64
	MarketCap     *float64
	DividendYield *float64
	PayoutRatio   *float64
	PERatio       *float64
	EPS           *float64
	Beta          *float64
	VolumeAvg30d  *float64
	Week52High    *float64
	Week52Low     *float64

	// ExDividendDate is an ISO-ish date string; ExDividendEpoch is Unix seconds.
	// Either may be empty/zero.
	ExDividendDate  string
	ExDividendEpoch int64
}

// Float returns a pointer to v, for building raw records
func Float(v float64) *float64 {
	return &v
}

// Date is a calendar day in UTC
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day
func NewDate(t time.Time) Date {
	u := t.UTC()
	return Date{Time: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// AddDays returns the date n days later
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysSince returns whole calendar days from other to d
func (d Date) DaysSince(other Date) int {
	return int((d.Unix() - other.Unix()) / 86400)
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CanonicalRecord is the normalized record used by the filter and ranker.
// DividendYield and PayoutRatio are percentages.
type CanonicalRecord struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Sector   string `json:"sector"`

	Close        float64 `json:"close"`
	MarketCap    float64 `json:"market_cap"`
	VolumeAvg30d float64 `json:"volume_avg_30d"`

	DividendYield  float64 `json:"dividend_yield"`
	PayoutRatio    float64 `json:"payout_ratio"`
	NextExDivDate  *Date   `json:"next_ex_div_date"`
	DaysUntilExDiv *int    `json:"days_until_ex_div"`

	PERatio          float64 `json:"pe_ratio"`
	EarningsPerShare float64 `json:"earnings_per_share"`
	Beta             float64 `json:"beta"`

	Week52High    float64 `json:"week52_high"`
	Week52Low     float64 `json:"week52_low"`
	PctFrom52wLow float64 `json:"pct_from_52w_low"`
	PctFrom52wMid float64 `json:"pct_from_52w_mid"`

	Rank int `json:"rank,omitempty"`
}

// HasExDivDate reports whether an ex-dividend date is known
func (r *CanonicalRecord) HasExDivDate() bool {
	return r.NextExDivDate != nil
}
