package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:      "test",
		LogLevel: "error",
		Fetch: config.FetchConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Timeout:     2 * time.Second,
		},
	}
}

func newTestClient() *Client {
	cfg := testConfig()
	return New(cfg, logger.NewNop())
}

func TestNew(t *testing.T) {
	client := newTestClient()
	require.NotNil(t, client)
	require.NotNil(t, client.httpClient)
	assert.Equal(t, 2*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 3, client.Policy().MaxAttempts)
	assert.True(t, client.retryEnabled)
}

func TestNew_Defaults(t *testing.T) {
	client := New(&config.Config{}, logger.NewNop())
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Equal(t, DefaultRetryPolicy(), client.Policy())
}

func TestNewWithTimeout(t *testing.T) {
	client := NewWithTimeout(testConfig(), logger.NewNop(), 5*time.Second)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

func TestGetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code":"KO","yield":3.1}`)
	}))
	defer server.Close()

	var out struct {
		Code  string  `json:"code"`
		Yield float64 `json:"yield"`
	}
	require.NoError(t, newTestClient().GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "KO", out.Code)
	assert.Equal(t, 3.1, out.Yield)
}

func TestGetJSON_RetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	var out map[string]bool
	require.NoError(t, newTestClient().GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, out["ok"])
}

func TestGetJSON_RateLimitedThenExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := newTestClient().GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSON_DoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown ticker", http.StatusNotFound)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := newTestClient().GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "unknown ticker")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSON_DecodeErrorIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := newTestClient().GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDisableRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient().DisableRetry()
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_ReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<table></table>")
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWithPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient().WithPacing(30 * time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		var out map[string]interface{}
		require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	}
	// first request passes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)

	assert.Nil(t, newTestClient().WithPacing(0).pacer)
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out map[string]interface{}
	err := newTestClient().GetJSON(ctx, server.URL, &out)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		gone string
	}{
		{"api token", "https://eodhd.com/api/screener?api_token=secret123&limit=100", "secret123"},
		{"apikey", "https://example.com/q?apikey=abc987", "abc987"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactURL(tt.in)
			assert.NotContains(t, got, tt.gone)
		})
	}

	plain := "https://example.com/wiki/List_of_S%26P_500_companies"
	assert.Equal(t, plain, RedactURL(plain))
}
