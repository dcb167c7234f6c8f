package harvest

import (
	"context"
	"sort"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/ingest"
	"github.com/castleryder/dividend-harvest/internal/selection"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// Pipeline is the pure part of a run:
// normalize → derive → screen → rank.
type Pipeline struct {
	screener *selection.Screener
	ranker   *selection.Ranker
	logger   *logger.Logger
}

// Outcome is what one pipeline pass produces
type Outcome struct {
	Records   []contracts.CanonicalRecord // ranked, truncated
	Excluded  map[string]int              // filter name -> count
	Scanned   int                         // normalized records considered
	Qualified []string                    // codes passing every filter except the ex-div window
}

// NewPipeline creates a pipeline for the given thresholds
func NewPipeline(thresholds config.Thresholds, log *logger.Logger) *Pipeline {
	return &Pipeline{
		screener: selection.NewScreener(thresholds, log),
		ranker:   selection.NewRanker(thresholds.MaxResults, log),
		logger:   log,
	}
}

// Thresholds returns the bounds the pipeline screens with
func (p *Pipeline) Thresholds() config.Thresholds {
	return p.screener.Thresholds()
}

// Run processes raw records for one evaluation date. Deterministic:
// identical input and date give an identical outcome. Empty input gives
// an empty outcome, not an error.
func (p *Pipeline) Run(ctx context.Context, raws []contracts.RawSecurityRecord, prov contracts.Provenance, evalDate contracts.Date) *Outcome {
	records := ingest.DeriveAll(ingest.NormalizeAll(raws, prov), evalDate)

	passed, excluded := p.screener.Screen(ctx, records)
	ranked := p.ranker.Rank(ctx, passed)

	universe, _ := p.screener.ScreenUniverse(ctx, records)
	qualified := make([]string, 0, len(universe))
	for _, r := range universe {
		qualified = append(qualified, r.Code)
	}
	sort.Strings(qualified)

	return &Outcome{
		Records:   ranked,
		Excluded:  excluded,
		Scanned:   len(records),
		Qualified: qualified,
	}
}
