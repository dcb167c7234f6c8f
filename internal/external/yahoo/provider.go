// Package yahoo provides a per-ticker source backed by Yahoo Finance quotes
package yahoo

import (
	"context"
	"fmt"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// EquityGetter fetches one equity quote
type EquityGetter func(symbol string) (*finance.Equity, error)

// Provider maps Yahoo equity quotes to raw records.
// Yahoo has no beta or payout ratio on the quote endpoint; those fields are
// left absent and take their sentinel values during normalization.
type Provider struct {
	get    EquityGetter
	logger *logger.Logger
}

// Option configures the provider
type Option func(*Provider)

// WithGetter replaces the upstream call
func WithGetter(get EquityGetter) Option {
	return func(p *Provider) {
		p.get = get
	}
}

// NewProvider creates a Yahoo provider
func NewProvider(log *logger.Logger, opts ...Option) *Provider {
	p := &Provider{
		get:    equity.Get,
		logger: log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *Provider) Name() string { return config.ProviderYahoo }

// Provenance reports decimal yields, the Yahoo convention
func (p *Provider) Provenance() contracts.Provenance {
	return contracts.Provenance{
		Source:     config.ProviderYahoo,
		YieldUnit:  contracts.UnitDecimal,
		PayoutUnit: contracts.UnitPercent,
	}
}

// upstreamError marks library failures as retryable: the library does not
// expose status codes, and its failures are dominated by network errors.
type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string   { return e.err.Error() }
func (e *upstreamError) Unwrap() error   { return e.err }
func (e *upstreamError) Retryable() bool { return true }

// FetchTicker fetches and maps one symbol
func (p *Provider) FetchTicker(ctx context.Context, ticker string) (*contracts.RawSecurityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	eq, err := p.get(symbol)
	if err != nil {
		return nil, &upstreamError{err: fmt.Errorf("yahoo quote %s: %w", symbol, err)}
	}
	if eq == nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, contracts.ErrNoData)
	}

	rec := MapEquity(eq)
	if rec.Symbol == "" {
		rec.Symbol = symbol
	}

	p.logger.WithFields(map[string]interface{}{
		"ticker":   symbol,
		"exchange": rec.Exchange,
	}).Debug("Yahoo quote mapped")

	return rec, nil
}

// MapEquity converts a quote to a raw record. Yahoo reports absent values
// as zero, so zeros are treated as missing.
func MapEquity(eq *finance.Equity) *contracts.RawSecurityRecord {
	name := eq.LongName
	if name == "" {
		name = eq.ShortName
	}

	volume := float64(eq.AverageDailyVolume3Month)
	if volume == 0 {
		volume = float64(eq.AverageDailyVolume10Day)
	}

	return &contracts.RawSecurityRecord{
		Symbol:          eq.Symbol,
		Name:            name,
		Exchange:        eq.FullExchangeName,
		Close:           nonZero(eq.RegularMarketPrice),
		MarketCap:       nonZero(float64(eq.MarketCap)),
		DividendYield:   nonZero(eq.TrailingAnnualDividendYield),
		PERatio:         nonZero(eq.TrailingPE),
		EPS:             nonZero(eq.EpsTrailingTwelveMonths),
		VolumeAvg30d:    nonZero(volume),
		Week52High:      nonZero(eq.FiftyTwoWeekHigh),
		Week52Low:       nonZero(eq.FiftyTwoWeekLow),
		ExDividendEpoch: int64(eq.DividendDate),
	}
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
