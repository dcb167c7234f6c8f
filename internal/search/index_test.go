package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

func sampleSet() *contracts.ResultSet {
	return &contracts.ResultSet{
		RunID: "run-1",
		Records: []contracts.CanonicalRecord{
			{Code: "KO", Name: "Coca-Cola Company", Exchange: "US", Sector: "Consumer Defensive", Rank: 1},
			{Code: "T", Name: "AT&T Inc", Exchange: "US", Sector: "Communication Services", Rank: 2},
			{Code: "VZ", Name: "Verizon Communications", Exchange: "US", Sector: "Communication Services", Rank: 3},
			{Code: "KMB", Name: "Kimberly-Clark", Exchange: "US", Sector: "Consumer Defensive", Rank: 4},
		},
	}
}

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Publish(context.Background(), sampleSet()))
	return idx
}

func codes(recs []contracts.CanonicalRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Code)
	}
	return out
}

func TestSearch_ExactCodeFirst(t *testing.T) {
	idx := newIndex(t)

	hits, err := idx.Search("KO", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "KO", hits[0].Code)
	assert.Equal(t, 1, hits[0].Rank)
}

func TestSearch_ByName(t *testing.T) {
	idx := newIndex(t)

	hits, err := idx.Search("verizon", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"VZ"}, codes(hits))
}

func TestSearch_BySector(t *testing.T) {
	idx := newIndex(t)

	hits, err := idx.Search("communication", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"T", "VZ"}, codes(hits))
}

func TestSearch_Limit(t *testing.T) {
	idx := newIndex(t)

	hits, err := idx.Search("consumer", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := newIndex(t)

	_, err := idx.Search("   ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestPublish_ReplacesRecords(t *testing.T) {
	idx := newIndex(t)
	assert.Equal(t, 4, idx.Len())

	require.NoError(t, idx.Publish(context.Background(), &contracts.ResultSet{
		RunID:   "run-2",
		Records: []contracts.CanonicalRecord{{Code: "PEP", Name: "PepsiCo", Sector: "Consumer Defensive"}},
	}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search("KO", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search("pepsico", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"PEP"}, codes(hits))
}
