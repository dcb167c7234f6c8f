package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
	"github.com/castleryder/dividend-harvest/pkg/redis"
)

const userAgent = "dividend-harvest/1.0"

// secret query parameters never written to logs or errors
var secretParams = []string{"api_token", "apikey", "token"}

// Client is an HTTP client wrapper with pacing, retry and logging
// ⭐ SSOT: every upstream HTTP request goes through this client
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	policy       RetryPolicy
	retryEnabled bool
	pacer        *rate.Limiter
	rateLimiter  *redis.RateLimiter
	rateLimitCfg *redis.RateLimitConfig
	userAgent    string
}

// New creates a new HTTP client from config
// ⭐ SSOT: http.Client instances are only created here
func New(cfg *config.Config, log *logger.Logger) *Client {
	timeout := cfg.Fetch.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	policy := DefaultRetryPolicy()
	if cfg.Fetch.MaxAttempts > 0 {
		policy = PolicyFromConfig(cfg.Fetch)
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		logger:       log,
		policy:       policy,
		retryEnabled: true,
		userAgent:    userAgent,
	}
}

// NewWithTimeout creates a client with custom timeout
func NewWithTimeout(cfg *config.Config, log *logger.Logger, timeout time.Duration) *Client {
	client := New(cfg, log)
	client.httpClient.Timeout = timeout
	return client
}

// WithRetry replaces the retry policy
func (c *Client) WithRetry(policy RetryPolicy) *Client {
	c.policy = policy
	c.retryEnabled = true
	return c
}

// DisableRetry disables automatic retry, for callers that retry at a higher level
func (c *Client) DisableRetry() *Client {
	c.retryEnabled = false
	return c
}

// WithPacing enforces a minimum interval between requests of this client
func (c *Client) WithPacing(interval time.Duration) *Client {
	if interval <= 0 {
		c.pacer = nil
		return c
	}
	c.pacer = rate.NewLimiter(rate.Every(interval), 1)
	return c
}

// WithRateLimiter sets the shared redis rate limiter for this client
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.rateLimiter = limiter
	c.rateLimitCfg = &cfg
	return c
}

// Policy returns the active retry policy
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Get performs a GET request. Non-2xx responses are returned as *StatusError.
// The caller owns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	var resp *http.Response
	err := c.run(ctx, rawURL, func(ctx context.Context) error {
		r, err := c.attempt(ctx, rawURL)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// GetJSON performs a GET request and decodes the JSON body into dest
func (c *Client) GetJSON(ctx context.Context, rawURL string, dest interface{}) error {
	return c.run(ctx, rawURL, func(ctx context.Context) error {
		resp, err := c.attempt(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return Permanent(fmt.Errorf("failed to decode response from %s: %w", RedactURL(rawURL), err))
		}
		return nil
	})
}

func (c *Client) run(ctx context.Context, rawURL string, op func(ctx context.Context) error) error {
	if !c.retryEnabled {
		return op(ctx)
	}
	_, err := c.policy.Do(ctx, c.logger, map[string]interface{}{"url": RedactURL(rawURL)}, op)
	return err
}

// attempt executes one paced, logged request
func (c *Client) attempt(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pacing wait failed: %w", err)
		}
	}
	if c.rateLimiter != nil && c.rateLimitCfg != nil {
		if err := c.rateLimiter.Wait(ctx, *c.rateLimitCfg); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create GET request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	safeURL := RedactURL(rawURL)
	startTime := time.Now()

	c.logger.WithField("url", safeURL).Debug("HTTP request started")

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"url":      safeURL,
			"duration": duration,
		}).WithError(err).Debug("HTTP request failed")
		return nil, fmt.Errorf("GET %s: %w", safeURL, redactErr(err))
	}

	c.logger.WithFields(map[string]interface{}{
		"url":         safeURL,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        safeURL,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// RedactURL masks credential query parameters
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "***")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// redactErr strips the raw URL that *url.Error embeds
func redactErr(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return &url.Error{Op: ue.Op, URL: RedactURL(ue.URL), Err: ue.Err}
	}
	return err
}
