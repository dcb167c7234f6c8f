// Package eodhd provides the EODHD screener and fundamentals adapters
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/httputil"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultScanLimit = 500
	PageSize         = 100 // screener maximum per request
)

// optFloat decodes numbers that may arrive as numbers, numeric strings,
// "N/A", "" or null. Anything unusable decodes as absent.
type optFloat struct {
	Value float64
	Valid bool
}

func (f *optFloat) UnmarshalJSON(data []byte) error {
	*f = optFloat{}
	if string(data) == "null" {
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = optFloat{Value: num, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "N/A") || strings.EqualFold(s, "NA") {
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		*f = optFloat{Value: num, Valid: true}
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// Ptr returns the value or nil when absent
func (f optFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Client talks to the EODHD REST API through the shared retrying HTTP client
type Client struct {
	baseURL    string
	apiKey     string
	http       *httputil.Client
	logger     *logger.Logger
	exchanges  []string
	yieldUnit  contracts.Unit
	payoutUnit contracts.Unit
	scanLimit  int
	thresholds config.Thresholds
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithExchanges restricts screener queries to these exchanges
func WithExchanges(exchanges []string) ClientOption {
	return func(c *Client) {
		if len(exchanges) > 0 {
			c.exchanges = exchanges
		}
	}
}

// WithUnits sets how the screener expresses yield and payout
func WithUnits(yield, payout contracts.Unit) ClientOption {
	return func(c *Client) {
		c.yieldUnit = yield
		c.payoutUnit = payout
	}
}

// WithScanLimit caps the screener rows fetched per exchange
func WithScanLimit(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.scanLimit = limit
		}
	}
}

// WithThresholds sets the bounds used for server-side pre-filters
func WithThresholds(t config.Thresholds) ClientOption {
	return func(c *Client) {
		c.thresholds = t
	}
}

// WithClock overrides the clock used for price history windows
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, httpClient *httputil.Client, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		http:       httpClient,
		logger:     log,
		exchanges:  []string{"US"},
		yieldUnit:  contracts.UnitPercent,
		payoutUnit: contracts.UnitPercent,
		scanLimit:  DefaultScanLimit,
		thresholds: config.DefaultThresholds(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewFromConfig builds a client from the EODHD section of the config
func NewFromConfig(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return NewClient(cfg.EODHD.APIKey, httpClient, log,
		WithBaseURL(cfg.EODHD.BaseURL),
		WithExchanges(cfg.EODHD.Exchanges),
		WithUnits(contracts.Unit(cfg.EODHD.YieldUnit), contracts.Unit(cfg.EODHD.PayoutUnit)),
		WithScanLimit(cfg.EODHD.ScanLimit),
		WithThresholds(cfg.Thresholds),
	)
}

// APIError represents a non-2xx answer from EODHD
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the failure is worth another attempt
func (e *APIError) Retryable() bool {
	return httputil.IsRetryableStatus(e.StatusCode)
}

// get performs an authenticated GET and decodes the JSON answer
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	err := c.http.GetJSON(ctx, reqURL, result)
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return &APIError{
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.Body,
			Endpoint:   path,
		}
	}
	return err
}

// symbol qualifies a bare ticker with the primary exchange, KO -> KO.US
func (c *Client) symbol(ticker string) string {
	if strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + "." + c.exchanges[0]
}
