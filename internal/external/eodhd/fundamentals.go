package eodhd

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
)

// volumeWindow is the number of daily bars averaged for volume
const volumeWindow = 30

// fundamentalsResponse is the subset of /fundamentals used for screening
type fundamentalsResponse struct {
	General struct {
		Code         string `json:"Code"`
		Name         string `json:"Name"`
		Type         string `json:"Type"`
		Exchange     string `json:"Exchange"`
		Sector       string `json:"Sector"`
		CurrencyCode string `json:"CurrencyCode"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization optFloat `json:"MarketCapitalization"`
		PERatio              optFloat `json:"PERatio"`
		EarningsShare        optFloat `json:"EarningsShare"`
		DividendYield        optFloat `json:"DividendYield"`
	} `json:"Highlights"`
	Technicals struct {
		Beta       optFloat `json:"Beta"`
		Week52High optFloat `json:"52WeekHigh"`
		Week52Low  optFloat `json:"52WeekLow"`
	} `json:"Technicals"`
	SplitsDividends struct {
		PayoutRatio    optFloat `json:"PayoutRatio"`
		ExDividendDate string   `json:"ExDividendDate"`
		DividendDate   string   `json:"DividendDate"`
	} `json:"SplitsDividends"`
}

type eodBar struct {
	Date          string   `json:"date"`
	Close         optFloat `json:"close"`
	AdjustedClose optFloat `json:"adjusted_close"`
	Volume        optFloat `json:"volume"`
}

// Fundamentals fetches the fundamentals document for one ticker
func (c *Client) Fundamentals(ctx context.Context, ticker string) (*contracts.RawSecurityRecord, error) {
	symbol := c.symbol(ticker)
	path := fmt.Sprintf("/fundamentals/%s", url.PathEscape(symbol))

	var resp fundamentalsResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.General.Code == "" && resp.General.Name == "" {
		return nil, fmt.Errorf("fundamentals for %s: %w", symbol, contracts.ErrNoData)
	}

	code := resp.General.Code
	if code == "" {
		code = baseTicker(ticker)
	}

	return &contracts.RawSecurityRecord{
		Symbol:         code,
		Name:           resp.General.Name,
		Exchange:       resp.General.Exchange,
		Sector:         resp.General.Sector,
		MarketCap:      resp.Highlights.MarketCapitalization.Ptr(),
		DividendYield:  resp.Highlights.DividendYield.Ptr(),
		PERatio:        resp.Highlights.PERatio.Ptr(),
		EPS:            resp.Highlights.EarningsShare.Ptr(),
		Beta:           resp.Technicals.Beta.Ptr(),
		Week52High:     resp.Technicals.Week52High.Ptr(),
		Week52Low:      resp.Technicals.Week52Low.Ptr(),
		PayoutRatio:    resp.SplitsDividends.PayoutRatio.Ptr(),
		ExDividendDate: resp.SplitsDividends.ExDividendDate,
	}, nil
}

// PriceStats returns the latest close and the average volume of the last
// volumeWindow daily bars. Either may be nil when no bars carry it.
func (c *Client) PriceStats(ctx context.Context, ticker string) (closePrice, avgVolume *float64, err error) {
	symbol := c.symbol(ticker)
	path := fmt.Sprintf("/eod/%s", url.PathEscape(symbol))

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "d")
	params.Set("from", c.now().AddDate(0, 0, -2*volumeWindow).Format(contracts.DateLayout))

	var bars []eodBar
	if err := c.get(ctx, path, params, &bars); err != nil {
		return nil, nil, err
	}

	for _, bar := range bars {
		if bar.Close.Valid {
			closePrice = bar.Close.Ptr()
			break
		}
		if bar.AdjustedClose.Valid {
			closePrice = bar.AdjustedClose.Ptr()
			break
		}
	}

	var sum float64
	n := 0
	for _, bar := range bars {
		if n == volumeWindow {
			break
		}
		if bar.Volume.Valid {
			sum += bar.Volume.Value
			n++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		avgVolume = &avg
	}

	return closePrice, avgVolume, nil
}

// FundamentalsProvider is the per-ticker EODHD source: one fundamentals
// request plus one price history request per symbol.
type FundamentalsProvider struct {
	client *Client
}

// NewFundamentalsProvider creates the fundamentals-backed provider
func NewFundamentalsProvider(client *Client) *FundamentalsProvider {
	return &FundamentalsProvider{client: client}
}

// Name returns the provider name
func (p *FundamentalsProvider) Name() string { return config.ProviderEODHDFundamentals }

// Provenance reports decimal ratios, as the fundamentals endpoint returns them
func (p *FundamentalsProvider) Provenance() contracts.Provenance {
	return contracts.Provenance{
		Source:     config.ProviderEODHDFundamentals,
		YieldUnit:  contracts.UnitDecimal,
		PayoutUnit: contracts.UnitDecimal,
	}
}

// FetchTicker combines fundamentals with recent prices. A failed price
// request leaves close and volume absent instead of failing the ticker.
func (p *FundamentalsProvider) FetchTicker(ctx context.Context, ticker string) (*contracts.RawSecurityRecord, error) {
	rec, err := p.client.Fundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}

	closePrice, volume, err := p.client.PriceStats(ctx, ticker)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.client.logger.WithField("ticker", ticker).WithError(err).Warn("Price history unavailable")
	}
	rec.Close = closePrice
	rec.VolumeAvg30d = volume
	return rec, nil
}

func baseTicker(ticker string) string {
	if i := strings.IndexByte(ticker, '.'); i > 0 {
		return ticker[:i]
	}
	return ticker
}
