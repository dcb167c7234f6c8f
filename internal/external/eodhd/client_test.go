package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/httputil"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Env: "test",
		Fetch: config.FetchConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			Timeout:     2 * time.Second,
		},
	}
	httpClient := httputil.New(cfg, logger.NewNop())

	opts = append([]ClientOption{WithBaseURL(server.URL)}, opts...)
	return NewClient("test-key", httpClient, logger.NewNop(), opts...)
}

func TestOptFloat_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		valid bool
		value float64
	}{
		{`4.5`, true, 4.5},
		{`"4.5"`, true, 4.5},
		{`"N/A"`, false, 0},
		{`""`, false, 0},
		{`null`, false, 0},
		{`"abc"`, false, 0},
		{`0`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var f optFloat
			require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
			assert.Equal(t, tt.valid, f.Valid)
			assert.Equal(t, tt.value, f.Value)
			if !tt.valid {
				assert.Nil(t, f.Ptr())
			}
		})
	}

	var f optFloat
	assert.Error(t, json.Unmarshal([]byte(`{}`), &f))
}

func TestBuildFilters(t *testing.T) {
	th := config.DefaultThresholds()

	filters := BuildFilters(th, contracts.UnitPercent, "US")
	require.Len(t, filters, 4)
	assert.Equal(t, Filter{Field: "dividend_yield", Operator: ">=", Value: 3.0}, filters[1])
	assert.Equal(t, Filter{Field: "exchange", Operator: "=", Value: "US"}, filters[3])

	decimal := BuildFilters(th, contracts.UnitDecimal, "")
	require.Len(t, decimal, 3)
	assert.InDelta(t, 0.03, decimal[1].Value.(float64), 1e-12)

	data, err := json.Marshal(filters[:1])
	require.NoError(t, err)
	assert.JSONEq(t, `[["market_capitalization",">=",1000000000]]`, string(data))
}

func TestScreen_DecodesRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screener", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "dividend_yield.desc", r.URL.Query().Get("sort"))
		assert.Contains(t, r.URL.Query().Get("filters"), `["exchange","=","US"]`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"code":"KO","name":"Coca-Cola","exchange":"US","sector":"Consumer Defensive",
			 "close":"60.5","market_capitalization":260000000000,"dividend_yield":3.1,
			 "payout_ratio":"N/A","pe_ratio":24,"earnings_share":2.5,"beta":0.6,
			 "volume_avg_30d":12000000,"52_week_high":64,"52_week_low":51,
			 "next_dividend_date":"2024-03-14"},
			{"code":"XYZ","adjusted_close":10,"avgvol_200d":500000,"next_dividend_date":null}
		]}`))
	}, WithExchanges([]string{"US"}))

	rows, err := client.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	ko := rows[0]
	assert.Equal(t, "KO", ko.Symbol)
	assert.Equal(t, 60.5, *ko.Close)
	assert.Nil(t, ko.PayoutRatio)
	assert.Equal(t, "2024-03-14", ko.ExDividendDate)

	xyz := rows[1]
	assert.Equal(t, 10.0, *xyz.Close)
	assert.Equal(t, 500000.0, *xyz.VolumeAvg30d)
	assert.Equal(t, "US", xyz.Exchange)
	assert.Empty(t, xyz.ExDividendDate)
}

func TestScreen_AcceptsBareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"code":"T","close":17}]`))
	}, WithExchanges([]string{"US"}))

	rows, err := client.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T", rows[0].Symbol)
}

func TestScreen_PaginatesUpToScanLimit(t *testing.T) {
	var mu sync.Mutex
	var offsets []int

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()

		rows := make([]string, 0, limit)
		for i := 0; i < limit; i++ {
			rows = append(rows, `{"code":"S`+strconv.Itoa(offset+i)+`"}`)
		}
		_, _ = w.Write([]byte(`{"data":[` + strings.Join(rows, ",") + `]}`))
	}, WithExchanges([]string{"US"}), WithScanLimit(250))

	rows, err := client.Screen(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 250)
	assert.Equal(t, []int{0, 100, 200}, offsets)
}

func TestScreen_StopsOnShortPage(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"code":"A"},{"code":"B"}]}`))
	}, WithExchanges([]string{"US"}))

	rows, err := client.Screen(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScreen_FailedExchangeKeepsOthers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("filters"), `"TO"`) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`forbidden`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"code":"KO"}]}`))
	}, WithExchanges([]string{"US", "TO"}))

	rows, err := client.Screen(context.Background())
	require.Error(t, err)
	assert.Len(t, rows, 1)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
	assert.NotContains(t, err.Error(), "test-key")
}

func TestAPIError_Retryable(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 429}).Retryable())
	assert.True(t, (&APIError{StatusCode: 502}).Retryable())
	assert.False(t, (&APIError{StatusCode: 401}).Retryable())
	assert.Equal(t, contracts.KindPermanent, contracts.KindOf(&APIError{StatusCode: 404}))
}

func TestScreenerProvider(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, WithUnits(contracts.UnitDecimal, contracts.UnitPercent))

	p := NewScreenerProvider(client)
	assert.Equal(t, "eodhd", p.Name())
	assert.Equal(t, contracts.UnitDecimal, p.Provenance().YieldUnit)
	assert.Equal(t, contracts.UnitPercent, p.Provenance().PayoutUnit)

	rows, err := p.FetchBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

const fundamentalsBody = `{
	"General": {"Code":"KO","Name":"The Coca-Cola Company","Exchange":"NYSE","Sector":"Consumer Defensive"},
	"Highlights": {"MarketCapitalization":260000000000,"PERatio":"24.1","EarningsShare":2.47,"DividendYield":0.031},
	"Technicals": {"Beta":0.59,"52WeekHigh":64.99,"52WeekLow":51.55},
	"SplitsDividends": {"PayoutRatio":0.74,"ExDividendDate":"2024-03-14"}
}`

func TestFundamentalsProvider_FetchTicker(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fundamentals/KO.US":
			_, _ = w.Write([]byte(fundamentalsBody))
		case "/eod/KO.US":
			assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
			assert.Equal(t, "d", r.URL.Query().Get("order"))
			_, _ = w.Write([]byte(`[
				{"date":"2024-03-01","close":60.5,"volume":1000},
				{"date":"2024-02-29","close":60.1,"volume":3000}
			]`))
		default:
			http.NotFound(w, r)
		}
	}, WithExchanges([]string{"US"}), WithClock(func() time.Time { return now }))

	p := NewFundamentalsProvider(client)
	assert.Equal(t, "eodhd-fundamentals", p.Name())
	assert.Equal(t, contracts.UnitDecimal, p.Provenance().YieldUnit)

	rec, err := p.FetchTicker(context.Background(), "KO")
	require.NoError(t, err)
	assert.Equal(t, "KO", rec.Symbol)
	assert.Equal(t, "Consumer Defensive", rec.Sector)
	assert.Equal(t, 24.1, *rec.PERatio)
	assert.Equal(t, 0.031, *rec.DividendYield)
	assert.Equal(t, 0.74, *rec.PayoutRatio)
	assert.Equal(t, 51.55, *rec.Week52Low)
	assert.Equal(t, "2024-03-14", rec.ExDividendDate)
	assert.Equal(t, 60.5, *rec.Close)
	assert.Equal(t, 2000.0, *rec.VolumeAvg30d)
}

func TestFundamentalsProvider_PriceFailureIsNotFatal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/fundamentals/") {
			_, _ = w.Write([]byte(fundamentalsBody))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, WithExchanges([]string{"US"}))

	rec, err := NewFundamentalsProvider(client).FetchTicker(context.Background(), "KO.US")
	require.NoError(t, err)
	assert.Nil(t, rec.Close)
	assert.Nil(t, rec.VolumeAvg30d)
}

func TestFundamentals_EmptyDocumentIsNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Fundamentals(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNoData)
	assert.Equal(t, contracts.KindDataQuality, contracts.KindOf(err))
}
