// Package search keeps a full-text index over the latest result set
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// DefaultLimit caps search hits when the caller gives no limit
const DefaultLimit = 20

// ErrEmptyQuery is returned for a blank query
var ErrEmptyQuery = errors.New("empty search query")

// Index is an in-memory bleve index rebuilt on every published result set
type Index struct {
	mu      sync.RWMutex
	index   bleve.Index
	records map[string]contracts.CanonicalRecord
	runID   string
	logger  *logger.Logger
}

// NewIndex creates an empty index
func NewIndex(log *logger.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &Index{
		index:   idx,
		records: make(map[string]contracts.CanonicalRecord),
		logger:  log,
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	recordMapping := bleve.NewDocumentMapping()

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true
	recordMapping.AddFieldMappingsAt("code", keyword)
	recordMapping.AddFieldMappingsAt("exchange", keyword)

	text := bleve.NewTextFieldMapping()
	text.Store = true
	recordMapping.AddFieldMappingsAt("name", text)
	recordMapping.AddFieldMappingsAt("sector", text)

	indexMapping.DefaultMapping = recordMapping
	return indexMapping
}

// Name identifies the index as a result sink
func (i *Index) Name() string { return "search" }

// Publish replaces the indexed records with the given result set
func (i *Index) Publish(_ context.Context, rs *contracts.ResultSet) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	records := make(map[string]contracts.CanonicalRecord, len(rs.Records))
	batch := fresh.NewBatch()
	for _, rec := range rs.Records {
		doc := map[string]interface{}{
			"code":     strings.ToLower(rec.Code),
			"exchange": strings.ToLower(rec.Exchange),
			"name":     rec.Name,
			"sector":   rec.Sector,
		}
		if err := batch.Index(rec.Code, doc); err != nil {
			fresh.Close()
			return fmt.Errorf("failed to add %s to batch: %w", rec.Code, err)
		}
		records[rec.Code] = rec
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = fresh
	i.records = records
	i.runID = rs.RunID
	i.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	i.logger.WithFields(map[string]interface{}{
		"run_id":  rs.RunID,
		"records": len(records),
	}).Debug("Search index rebuilt")
	return nil
}

// Len returns the number of indexed records
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// Search matches q against code, name and sector. Hits are ordered by
// relevance, then by rank.
func (i *Index) Search(q string, limit int) ([]contracts.CanonicalRecord, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	lower := strings.ToLower(q)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("code")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("code")
	prefix.SetBoost(5.0)

	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(3.0)

	namePrefix := bleve.NewPrefixQuery(lower)
	namePrefix.SetField("name")
	namePrefix.SetBoost(2.0)

	sector := bleve.NewMatchQuery(q)
	sector.SetField("sector")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(exact, prefix, name, namePrefix, sector))
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.index == nil {
		return nil, errors.New("search index closed")
	}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]contracts.CanonicalRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if rec, ok := i.records[hit.ID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close releases the index
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	return err
}
