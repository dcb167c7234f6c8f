package ingest

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/httputil"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// Source supplies raw records for a set of tickers.
// A nil error with per-ticker errors in the map is a partial success.
type Source interface {
	Name() string
	Provenance() contracts.Provenance
	// NeedsTickers is false for screeners that discover securities themselves
	NeedsTickers() bool
	FetchRaw(ctx context.Context, tickers []string) (map[string]contracts.FetchResult, error)
}

// TickerProvider answers one request per symbol
type TickerProvider interface {
	Name() string
	Provenance() contracts.Provenance
	FetchTicker(ctx context.Context, ticker string) (*contracts.RawSecurityRecord, error)
}

// BulkProvider answers one query for many securities
type BulkProvider interface {
	Name() string
	Provenance() contracts.Provenance
	FetchBulk(ctx context.Context, tickers []string) ([]contracts.RawSecurityRecord, error)
}

// Fetcher drives a TickerProvider sequentially: paced, retried per ticker,
// failures recorded per ticker without stopping the scan.
type Fetcher struct {
	provider TickerProvider
	policy   httputil.RetryPolicy
	limiter  *rate.Limiter
	logger   *logger.Logger
}

// NewFetcher creates a per-ticker fetcher. requestDelay is the fixed gap
// between upstream requests (0 disables pacing).
func NewFetcher(provider TickerProvider, policy httputil.RetryPolicy, requestDelay time.Duration, log *logger.Logger) *Fetcher {
	f := &Fetcher{
		provider: provider,
		policy:   policy,
		logger:   log,
	}
	if requestDelay > 0 {
		f.limiter = rate.NewLimiter(rate.Every(requestDelay), 1)
	}
	return f
}

// Name returns the provider name
func (f *Fetcher) Name() string { return f.provider.Name() }

// Provenance returns the provider unit conventions
func (f *Fetcher) Provenance() contracts.Provenance { return f.provider.Provenance() }

// NeedsTickers is always true for per-ticker providers
func (f *Fetcher) NeedsTickers() bool { return true }

// FetchRaw fetches every ticker in order. It only returns an error when
// the context ends; the map then holds whatever was fetched so far.
func (f *Fetcher) FetchRaw(ctx context.Context, tickers []string) (map[string]contracts.FetchResult, error) {
	results := make(map[string]contracts.FetchResult, len(tickers))
	failed := 0

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var rec *contracts.RawSecurityRecord
		attempts, err := f.policy.Do(ctx, f.logger, map[string]interface{}{
			"provider": f.provider.Name(),
			"ticker":   ticker,
		}, func(ctx context.Context) error {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			r, err := f.provider.FetchTicker(ctx, ticker)
			if err != nil {
				return err
			}
			rec = r
			return nil
		})

		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			failed++
			fetchErr := &contracts.FetchError{
				Kind:     contracts.KindOf(err),
				Ticker:   ticker,
				Attempts: attempts,
				Err:      err,
			}
			results[ticker] = contracts.FetchResult{Err: fetchErr}
			f.logger.WithFields(map[string]interface{}{
				"ticker":   ticker,
				"kind":     fetchErr.Kind,
				"attempts": attempts,
			}).WithError(err).Warn("Ticker dropped from run")
			continue
		}

		results[ticker] = contracts.FetchResult{Record: rec}
	}

	f.logger.WithFields(map[string]interface{}{
		"provider":  f.provider.Name(),
		"requested": len(tickers),
		"fetched":   len(tickers) - failed,
		"failed":    failed,
	}).Info("Per-ticker fetch completed")

	return results, nil
}

// BulkFetcher adapts a BulkProvider to Source
type BulkFetcher struct {
	provider BulkProvider
	logger   *logger.Logger
}

// NewBulkFetcher creates a bulk fetcher
func NewBulkFetcher(provider BulkProvider, log *logger.Logger) *BulkFetcher {
	return &BulkFetcher{provider: provider, logger: log}
}

// Name returns the provider name
func (b *BulkFetcher) Name() string { return b.provider.Name() }

// Provenance returns the provider unit conventions
func (b *BulkFetcher) Provenance() contracts.Provenance { return b.provider.Provenance() }

// NeedsTickers is false: the screener discovers its own universe
func (b *BulkFetcher) NeedsTickers() bool { return false }

// FetchRaw runs one bulk query. When tickers is non-empty the answer is
// restricted to those symbols. A failed query with no records is returned
// as a FetchError; partial answers are kept.
func (b *BulkFetcher) FetchRaw(ctx context.Context, tickers []string) (map[string]contracts.FetchResult, error) {
	records, err := b.provider.FetchBulk(ctx, tickers)
	if err != nil && len(records) == 0 {
		return nil, &contracts.FetchError{
			Kind:     contracts.KindOf(err),
			Attempts: 1,
			Err:      err,
		}
	}
	if err != nil {
		b.logger.WithFields(map[string]interface{}{
			"provider": b.provider.Name(),
			"records":  len(records),
		}).WithError(err).Warn("Bulk fetch returned partial results")
	}

	var wanted map[string]bool
	if len(tickers) > 0 {
		wanted = make(map[string]bool, len(tickers))
		for _, t := range tickers {
			wanted[strings.ToUpper(t)] = true
		}
	}

	results := make(map[string]contracts.FetchResult, len(records))
	for i := range records {
		code := strings.ToUpper(strings.TrimSpace(records[i].Symbol))
		if code == "" {
			continue
		}
		if wanted != nil && !wanted[code] {
			continue
		}
		if _, dup := results[code]; dup {
			continue
		}
		results[code] = contracts.FetchResult{Record: &records[i]}
	}
	return results, nil
}

// Split separates successful records from per-ticker failures,
// in ticker order for deterministic downstream processing.
func Split(results map[string]contracts.FetchResult) ([]contracts.RawSecurityRecord, map[string]error) {
	codes := make([]string, 0, len(results))
	for code := range results {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	raws := make([]contracts.RawSecurityRecord, 0, len(results))
	failures := make(map[string]error)
	for _, code := range codes {
		res := results[code]
		switch {
		case res.Err != nil:
			failures[code] = res.Err
		case res.Record == nil:
			failures[code] = &contracts.FetchError{Kind: contracts.KindDataQuality, Ticker: code, Err: contracts.ErrNoData}
		default:
			rec := *res.Record
			if rec.Symbol == "" {
				rec.Symbol = code
			}
			raws = append(raws, rec)
		}
	}
	return raws, failures
}
