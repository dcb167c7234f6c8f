package selection

import (
	"context"
	"sort"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// Ranker orders qualifying records: soonest ex-dividend first,
// then highest yield, then code for a deterministic total order.
// ⭐ SSOT: ranking logic lives here only
type Ranker struct {
	maxResults int
	logger     *logger.Logger
}

// NewRanker creates a new ranker. maxResults <= 0 keeps everything.
func NewRanker(maxResults int, logger *logger.Logger) *Ranker {
	return &Ranker{
		maxResults: maxResults,
		logger:     logger,
	}
}

// Rank sorts a copy of records, assigns 1-based ranks and truncates.
// Records without a days value sort last; the screener never lets them through.
func (r *Ranker) Rank(ctx context.Context, records []contracts.CanonicalRecord) []contracts.CanonicalRecord {
	ranked := make([]contracts.CanonicalRecord, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(&ranked[i], &ranked[j])
	})

	if r.maxResults > 0 && len(ranked) > r.maxResults {
		ranked = ranked[:r.maxResults]
	}

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if len(ranked) == 0 {
		r.logger.Info("Ranking completed: nothing to rank")
		return ranked
	}

	r.logger.WithFields(map[string]interface{}{
		"total_input":  len(records),
		"total_ranked": len(ranked),
		"top_code":     ranked[0].Code,
		"top_yield":    ranked[0].DividendYield,
	}).Info("Ranking completed")

	return ranked
}

// Less is the ranking comparator
func Less(a, b *contracts.CanonicalRecord) bool {
	da, db := daysKey(a), daysKey(b)
	if da != db {
		return da < db
	}
	if a.DividendYield != b.DividendYield {
		return a.DividendYield > b.DividendYield
	}
	return a.Code < b.Code
}

func daysKey(r *contracts.CanonicalRecord) int {
	if r.DaysUntilExDiv == nil {
		return int(^uint(0) >> 1)
	}
	return *r.DaysUntilExDiv
}
