package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestDate_DaysSince(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want int
	}{
		{"same day", "2024-03-01", "2024-03-01", 0},
		{"leap day", "2024-02-28", "2024-03-01", 2},
		{"past", "2024-03-14", "2024-03-01", -13},
		{"beyond duration range", "2026-10-19", "2400-01-01", 136309},
		{"far past", "2024-03-01", "1600-01-01", -154923},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustDate(t, tt.to).DaysSince(mustDate(t, tt.from)))
		})
	}
}

func TestNewDate_TruncatesToUTCDay(t *testing.T) {
	d := NewDate(time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2024-03-14", d.String())
	assert.Equal(t, "2024-03-15", d.AddDays(1).String())
}
