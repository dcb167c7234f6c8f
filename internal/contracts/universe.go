package contracts

import "time"

// Universe is the set of tickers a run scans
// ⭐ SSOT: universe source → fetcher hand-off
type Universe struct {
	Source    string            `json:"source"`
	Tickers   []string          `json:"tickers"`
	Excluded  map[string]string `json:"excluded,omitempty"` // ticker -> filter name
	WrittenAt time.Time         `json:"written_at"`
}

// Contains checks if a ticker is in the universe
func (u *Universe) Contains(ticker string) bool {
	for _, t := range u.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// IsExcluded checks if a ticker was excluded, with the reason
func (u *Universe) IsExcluded(ticker string) (bool, string) {
	reason, exists := u.Excluded[ticker]
	return exists, reason
}

// Count returns the number of tickers
func (u *Universe) Count() int {
	return len(u.Tickers)
}
