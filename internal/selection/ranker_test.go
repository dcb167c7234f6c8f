package selection

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

func ranked(code string, days int, yield float64) contracts.CanonicalRecord {
	r := qualifying(code)
	r.DaysUntilExDiv = intPtr(days)
	r.DividendYield = yield
	return r
}

func TestRank_SameDayHigherYieldFirst(t *testing.T) {
	r := NewRanker(100, logger.NewNop())
	out := r.Rank(context.Background(), []contracts.CanonicalRecord{
		ranked("LOW", 5, 3.5),
		ranked("HIGH", 5, 6.0),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "HIGH", out[0].Code)
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, "LOW", out[1].Code)
	assert.Equal(t, 2, out[1].Rank)
}

func TestRank_DaysBeforeYield(t *testing.T) {
	out := NewRanker(0, logger.NewNop()).Rank(context.Background(), []contracts.CanonicalRecord{
		ranked("LATER", 20, 9.0),
		ranked("SOON", 2, 3.1),
		ranked("TIE_B", 10, 4.0),
		ranked("TIE_A", 10, 4.0),
	})

	codes := make([]string, len(out))
	for i, r := range out {
		codes[i] = r.Code
	}
	assert.Equal(t, []string{"SOON", "TIE_A", "TIE_B", "LATER"}, codes)
}

func TestRank_Truncates(t *testing.T) {
	var input []contracts.CanonicalRecord
	for i := 0; i < 150; i++ {
		input = append(input, ranked(fmt.Sprintf("T%03d", i), i%36, 3+float64(i%7)))
	}

	out := NewRanker(100, logger.NewNop()).Rank(context.Background(), input)
	require.Len(t, out, 100)
	assert.Equal(t, 100, out[99].Rank)
	assert.Len(t, input, 150, "input is not modified")
	assert.Equal(t, 0, input[0].Rank)
}

func TestRank_TotalOrderProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var input []contracts.CanonicalRecord
	for i := 0; i < 300; i++ {
		input = append(input, ranked(fmt.Sprintf("C%03d", i), rng.Intn(36), float64(rng.Intn(40))/4+3))
	}

	out := NewRanker(0, logger.NewNop()).Rank(context.Background(), input)
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if *prev.DaysUntilExDiv != *cur.DaysUntilExDiv {
			assert.Less(t, *prev.DaysUntilExDiv, *cur.DaysUntilExDiv)
			continue
		}
		assert.GreaterOrEqual(t, prev.DividendYield, cur.DividendYield)
	}
}

func TestRank_Deterministic(t *testing.T) {
	input := []contracts.CanonicalRecord{
		ranked("B", 3, 4), ranked("A", 3, 4), ranked("C", 1, 5),
	}
	reversed := []contracts.CanonicalRecord{input[2], input[1], input[0]}

	r := NewRanker(0, logger.NewNop())
	assert.Equal(t, r.Rank(context.Background(), input), r.Rank(context.Background(), reversed))
}

func TestRank_Empty(t *testing.T) {
	out := NewRanker(100, logger.NewNop()).Rank(context.Background(), nil)
	assert.Empty(t, out)
}

func TestLess_NilDaysSortsLast(t *testing.T) {
	a := qualifying("A")
	a.DaysUntilExDiv = nil
	b := ranked("B", 35, 3)
	assert.True(t, Less(&b, &a))
	assert.False(t, Less(&a, &b))
}
