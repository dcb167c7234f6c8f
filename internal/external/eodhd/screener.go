package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
)

// Filter is one server-side screener condition, sent as [field, op, value]
type Filter struct {
	Field    string
	Operator string
	Value    interface{}
}

// MarshalJSON encodes the filter in the array form the screener expects
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{f.Field, f.Operator, f.Value})
}

// BuildFilters translates thresholds into screener pre-filters for one exchange.
// The yield bound is expressed in the unit the screener reports.
// Fields the screener cannot filter on are left to local screening.
func BuildFilters(t config.Thresholds, yieldUnit contracts.Unit, exchange string) []Filter {
	minYield := t.MinYieldPct
	if yieldUnit == contracts.UnitDecimal {
		minYield = t.MinYieldPct / 100
	}

	filters := []Filter{
		{Field: "market_capitalization", Operator: ">=", Value: t.MinMarketCap},
		{Field: "dividend_yield", Operator: ">=", Value: minYield},
		{Field: "earnings_share", Operator: ">", Value: 0},
	}
	if exchange != "" {
		filters = append(filters, Filter{Field: "exchange", Operator: "=", Value: exchange})
	}
	return filters
}

// screenerRow is one screener result. Every numeric may be missing or a string.
type screenerRow struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Exchange         string   `json:"exchange"`
	Sector           string   `json:"sector"`
	Close            optFloat `json:"close"`
	AdjustedClose    optFloat `json:"adjusted_close"`
	MarketCap        optFloat `json:"market_capitalization"`
	DividendYield    optFloat `json:"dividend_yield"`
	PayoutRatio      optFloat `json:"payout_ratio"`
	PERatio          optFloat `json:"pe_ratio"`
	EarningsShare    optFloat `json:"earnings_share"`
	Beta             optFloat `json:"beta"`
	VolumeAvg30d     optFloat `json:"volume_avg_30d"`
	AvgVol200d       optFloat `json:"avgvol_200d"`
	Week52High       optFloat `json:"52_week_high"`
	Week52Low        optFloat `json:"52_week_low"`
	NextDividendDate *string  `json:"next_dividend_date"`
}

// screenerPage accepts both {"data":[...]} and a bare array
type screenerPage struct {
	Rows []screenerRow
}

func (p *screenerPage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		p.Rows = nil
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &p.Rows)
	}
	var wrapped struct {
		Data []screenerRow `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	p.Rows = wrapped.Data
	return nil
}

func (r screenerRow) toRaw() contracts.RawSecurityRecord {
	closePrice := r.Close
	if !closePrice.Valid {
		closePrice = r.AdjustedClose
	}
	volume := r.VolumeAvg30d
	if !volume.Valid {
		volume = r.AvgVol200d
	}

	raw := contracts.RawSecurityRecord{
		Symbol:        r.Code,
		Name:          r.Name,
		Exchange:      r.Exchange,
		Sector:        r.Sector,
		Close:         closePrice.Ptr(),
		MarketCap:     r.MarketCap.Ptr(),
		DividendYield: r.DividendYield.Ptr(),
		PayoutRatio:   r.PayoutRatio.Ptr(),
		PERatio:       r.PERatio.Ptr(),
		EPS:           r.EarningsShare.Ptr(),
		Beta:          r.Beta.Ptr(),
		VolumeAvg30d:  volume.Ptr(),
		Week52High:    r.Week52High.Ptr(),
		Week52Low:     r.Week52Low.Ptr(),
	}
	if r.NextDividendDate != nil {
		raw.ExDividendDate = *r.NextDividendDate
	}
	return raw
}

// ScreenPage fetches one page of screener results
func (c *Client) ScreenPage(ctx context.Context, filters []Filter, offset, limit int) ([]contracts.RawSecurityRecord, error) {
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filters: %w", err)
	}

	params := url.Values{}
	params.Set("filters", string(filtersJSON))
	params.Set("sort", "dividend_yield.desc")
	params.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	var page screenerPage
	if err := c.get(ctx, "/screener", params, &page); err != nil {
		return nil, fmt.Errorf("screener request failed: %w", err)
	}

	out := make([]contracts.RawSecurityRecord, 0, len(page.Rows))
	for _, row := range page.Rows {
		out = append(out, row.toRaw())
	}
	return out, nil
}

// Screen pages through the screener for every configured exchange, up to
// the scan limit per exchange. A failed page ends that exchange's scan;
// rows gathered so far are returned together with the joined errors.
func (c *Client) Screen(ctx context.Context) ([]contracts.RawSecurityRecord, error) {
	var (
		all  []contracts.RawSecurityRecord
		errs []error
	)

	for _, exchange := range c.exchanges {
		filters := BuildFilters(c.thresholds, c.yieldUnit, exchange)
		fetched := 0

		for fetched < c.scanLimit {
			if err := ctx.Err(); err != nil {
				return all, err
			}

			limit := c.scanLimit - fetched
			if limit > PageSize {
				limit = PageSize
			}

			rows, err := c.ScreenPage(ctx, filters, fetched, limit)
			if err != nil {
				c.logger.WithFields(map[string]interface{}{
					"exchange": exchange,
					"offset":   fetched,
				}).WithError(err).Warn("Screener page failed")
				errs = append(errs, fmt.Errorf("exchange %s offset %d: %w", exchange, fetched, err))
				break
			}

			for i := range rows {
				if rows[i].Exchange == "" {
					rows[i].Exchange = exchange
				}
			}
			all = append(all, rows...)
			fetched += len(rows)

			if len(rows) < limit {
				break
			}
		}

		c.logger.WithFields(map[string]interface{}{
			"exchange": exchange,
			"rows":     fetched,
		}).Debug("Screener exchange scanned")
	}

	c.logger.WithFields(map[string]interface{}{
		"exchanges": len(c.exchanges),
		"rows":      len(all),
		"failures":  len(errs),
	}).Info("EODHD screener completed")

	return all, errors.Join(errs...)
}

// ScreenerProvider exposes the screener as a bulk source
type ScreenerProvider struct {
	client *Client
}

// NewScreenerProvider creates the screener-backed provider
func NewScreenerProvider(client *Client) *ScreenerProvider {
	return &ScreenerProvider{client: client}
}

// Name returns the provider name
func (p *ScreenerProvider) Name() string { return config.ProviderEODHD }

// Provenance reports the configured screener units
func (p *ScreenerProvider) Provenance() contracts.Provenance {
	return contracts.Provenance{
		Source:     config.ProviderEODHD,
		YieldUnit:  p.client.yieldUnit,
		PayoutUnit: p.client.payoutUnit,
	}
}

// FetchBulk runs the screener. Ticker restriction is applied by the caller.
func (p *ScreenerProvider) FetchBulk(ctx context.Context, _ []string) ([]contracts.RawSecurityRecord, error) {
	return p.client.Screen(ctx)
}
