package contracts

import "time"

// ResultSet is the ranked, filtered output of one pipeline run
// ⭐ SSOT: pipeline → cache/export hand-off
type ResultSet struct {
	RunID          string            `json:"run_id"`
	Provider       string            `json:"provider"`
	EvaluationDate Date              `json:"evaluation_date"`
	WrittenAt      time.Time         `json:"written_at"`
	Scanned        int               `json:"scanned"`    // raw records received
	Excluded       map[string]int    `json:"excluded"`   // filter name -> count
	Records        []CanonicalRecord `json:"records"`
}

// Len returns the number of qualifying records
func (rs *ResultSet) Len() int {
	return len(rs.Records)
}

// IsEmpty reports whether nothing qualified. Not an error.
func (rs *ResultSet) IsEmpty() bool {
	return len(rs.Records) == 0
}

// Top returns at most n leading records
func (rs *ResultSet) Top(n int) []CanonicalRecord {
	if n < 0 || n > len(rs.Records) {
		n = len(rs.Records)
	}
	return rs.Records[:n]
}

// Find returns the record with the given code
func (rs *ResultSet) Find(code string) (*CanonicalRecord, bool) {
	for i := range rs.Records {
		if rs.Records[i].Code == code {
			return &rs.Records[i], true
		}
	}
	return nil, false
}

// Summary holds the headline dashboard metrics of a result set
type Summary struct {
	Count        int     `json:"count"`
	AvgYield     float64 `json:"avg_dividend_yield"`
	AvgPrice     float64 `json:"avg_close"`
	AvgDaysToDiv float64 `json:"avg_days_until_ex_div"`
}

// Summarize computes the averages shown on the dashboard
func (rs *ResultSet) Summarize() Summary {
	s := Summary{Count: len(rs.Records)}
	if s.Count == 0 {
		return s
	}

	var yield, price, days float64
	withDays := 0
	for _, r := range rs.Records {
		yield += r.DividendYield
		price += r.Close
		if r.DaysUntilExDiv != nil {
			days += float64(*r.DaysUntilExDiv)
			withDays++
		}
	}

	n := float64(s.Count)
	s.AvgYield = yield / n
	s.AvgPrice = price / n
	if withDays > 0 {
		s.AvgDaysToDiv = days / float64(withDays)
	}
	return s
}
