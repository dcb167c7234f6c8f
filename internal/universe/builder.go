// Package universe supplies the ticker list scanned by per-ticker providers
package universe

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/httputil"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// Exclusion reasons
const (
	ReasonInvalidSymbol = "invalid_symbol"
	ReasonDuplicate     = "duplicate"
)

// symbolPattern accepts exchange-style tickers: KO, BRK-B, BCE.TO
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,14}$`)

// Lister returns candidate tickers, possibly unclean
type Lister interface {
	Name() string
	List(ctx context.Context) ([]string, error)
}

// Builder cleans a lister's output into a Universe
type Builder struct {
	lister Lister
	logger *logger.Logger
	now    func() time.Time
}

// NewBuilder creates a new universe builder
func NewBuilder(lister Lister, log *logger.Logger) *Builder {
	return &Builder{
		lister: lister,
		logger: log,
		now:    time.Now,
	}
}

// NewFromConfig selects the lister named by the universe config
func NewFromConfig(cfg config.UniverseConfig, httpClient *httputil.Client, log *logger.Logger) (*Builder, error) {
	var lister Lister
	switch cfg.Source {
	case config.UniverseStatic, "":
		lister = NewStatic(cfg.Tickers)
	case config.UniverseFile:
		lister = NewFile(cfg.File)
	case config.UniverseSP500:
		lister = NewSP500(cfg.URL, httpClient, log)
	default:
		return nil, fmt.Errorf("unknown universe source %q", cfg.Source)
	}
	return NewBuilder(lister, log), nil
}

// Name returns the lister name
func (b *Builder) Name() string {
	return b.lister.Name()
}

// Build lists, upper-cases and dedupes tickers
// ⭐ SSOT: universe source → fetcher hand-off
func (b *Builder) Build(ctx context.Context) (*contracts.Universe, error) {
	raw, err := b.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s universe: %w", b.lister.Name(), err)
	}

	universe := &contracts.Universe{
		Source:    b.lister.Name(),
		Tickers:   make([]string, 0, len(raw)),
		Excluded:  make(map[string]string),
		WrittenAt: b.now().UTC(),
	}

	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		ticker := Clean(t)
		if ticker == "" {
			continue
		}
		if reason := checkExclusion(ticker, seen); reason != "" {
			if reason != ReasonDuplicate {
				universe.Excluded[ticker] = reason
			}
			continue
		}
		seen[ticker] = true
		universe.Tickers = append(universe.Tickers, ticker)
	}
	sort.Strings(universe.Tickers)

	b.logger.WithFields(map[string]interface{}{
		"source":   universe.Source,
		"tickers":  universe.Count(),
		"excluded": len(universe.Excluded),
	}).Info("Universe built")

	return universe, nil
}

// Tickers returns the cleaned ticker list
func (b *Builder) Tickers(ctx context.Context) ([]string, error) {
	u, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return u.Tickers, nil
}

// Clean trims and upper-cases a ticker
func Clean(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func checkExclusion(ticker string, seen map[string]bool) string {
	if seen[ticker] {
		return ReasonDuplicate
	}
	if !symbolPattern.MatchString(ticker) {
		return ReasonInvalidSymbol
	}
	return ""
}
