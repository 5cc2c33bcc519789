// Package coingecko implements ports.PriceSource against the CoinGecko
// simple price endpoint.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

const (
	// DefaultBaseURL is the public CoinGecko API.
	DefaultBaseURL = "https://api.coingecko.com"
	// SourceName identifies quotes produced by this adapter.
	SourceName = "coingecko"

	simplePricePath = "/api/v3/simple/price"

	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 4 * time.Second
	defaultTimeout         = 10 * time.Second
)

// Config holds configuration for the CoinGecko client.
type Config struct {
	BaseURL       string
	Logger        ports.Logger
	RetryAttempts int           // Total attempts including the first; defaults to 3
	RetryWait     time.Duration // Base backoff; defaults to 500ms
	Timeout       time.Duration
}

// Client fetches the BTC/USD price and 24h change from CoinGecko.
type Client struct {
	http   *resty.Client
	logger ports.Logger
}

type coinPrice struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

type simplePriceResponse struct {
	Bitcoin *coinPrice `json:"bitcoin"`
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return true
	}
	return false
}

// New creates a CoinGecko client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CoinGecko client: %w", ports.ErrConfigurationError)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = defaultRetryBaseDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(attempts - 1).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	cfg.Logger.Info(context.Background(), "CoinGecko price source configured", map[string]interface{}{"baseURL": baseURL, "attempts": attempts})
	return &Client{http: httpClient, logger: cfg.Logger}, nil
}

// Name implements ports.PriceSource.
func (c *Client) Name() string {
	return SourceName
}

// GetQuote implements ports.PriceSource.
func (c *Client) GetQuote(ctx context.Context) (*domain.PriceQuote, error) {
	var out simplePriceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                 "bitcoin",
			"vs_currencies":       "usd",
			"include_24hr_change": "true",
		}).
		SetResult(&out).
		Get(simplePricePath)
	if err != nil {
		return nil, c.handleError(ctx, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, c.handleStatus(ctx, resp)
	}
	if out.Bitcoin == nil || out.Bitcoin.USD == nil {
		err := fmt.Errorf("coingecko response missing bitcoin.usd: %w", ports.ErrUnknown)
		c.logger.Error(ctx, err, "Unexpected CoinGecko response", map[string]interface{}{"body": string(resp.Body())})
		return nil, err
	}

	return &domain.PriceQuote{
		Price:     *out.Bitcoin.USD,
		Change24h: out.Bitcoin.USD24hChange,
		Source:    SourceName,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) handleStatus(ctx context.Context, resp *resty.Response) error {
	code := resp.StatusCode()
	var mapped error
	switch {
	case code == http.StatusTooManyRequests:
		mapped = ports.ErrRateLimited
	case code == http.StatusRequestTimeout:
		mapped = ports.ErrTimeout
	case code >= 500:
		mapped = ports.ErrExchangeUnavailable
	default:
		mapped = ports.ErrUnknown
	}
	err := fmt.Errorf("coingecko returned HTTP %d: %w", code, mapped)
	c.logger.Error(ctx, err, "CoinGecko request failed", map[string]interface{}{"status": code, "body": string(resp.Body())})
	return err
}

func (c *Client) handleError(ctx context.Context, err error) error {
	var mapped error
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		mapped = ports.ErrContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		mapped = ports.ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		mapped = ports.ErrTimeout
	default:
		mapped = ports.ErrConnectionFailed
	}
	finalErr := fmt.Errorf("coingecko request failed: %w: %w", mapped, err)
	c.logger.Error(ctx, err, "CoinGecko request failed")
	return finalErr
}
