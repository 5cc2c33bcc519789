package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// SourceName identifies quotes produced by this adapter.
	SourceName = "binance"

	defaultSymbol = "BTCUSDT"
)

// Client implements the ports.PriceSource interface using the go-binance
// futures 24h ticker. Only public endpoints are used, so no API keys are needed.
type Client struct {
	futuresClient *futures.Client
	symbol        string
	logger        ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	Symbol     string // Defaults to BTCUSDT
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet URL when set
	Logger     ports.Logger
}

// New creates a new Binance price source.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient("", "")

	// Set BaseURL directly instead of using global futures.UseTestnet
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance price source configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	symbol := strings.ToUpper(cfg.Symbol)
	if symbol == "" {
		symbol = defaultSymbol
	}

	return &Client{
		futuresClient: client,
		symbol:        symbol,
		logger:        cfg.Logger,
	}, nil
}

// Name implements ports.PriceSource.
func (c *Client) Name() string {
	return SourceName
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "symbol": c.symbol, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1001, -1007: // Disconnected / backend timeout
			mappedErr = ports.ErrExchangeUnavailable
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1121: // Bad parameters or invalid symbol
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetQuote retrieves the last price and 24h change percent for the symbol.
func (c *Client) GetQuote(ctx context.Context) (*domain.PriceQuote, error) {
	op := "GetQuote"
	tickers, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(c.symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no ticker data returned for symbol %s", c.symbol)
		return nil, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPrice, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].LastPrice, err)
		return nil, c.handleError(ctx, parseErr, op)
	}

	quote := &domain.PriceQuote{
		Price:     price,
		Source:    SourceName,
		FetchedAt: time.Now().UTC(),
	}
	if tickers[0].PriceChangePercent != "" {
		change, err := strconv.ParseFloat(tickers[0].PriceChangePercent, 64)
		if err != nil {
			c.logger.Warn(ctx, "Could not parse 24h change percent", map[string]interface{}{"value": tickers[0].PriceChangePercent})
		} else {
			quote.Change24h = &change
		}
	}
	return quote, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.futuresClient.NewPingService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}
