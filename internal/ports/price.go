package ports

import (
	"context"

	"tradeTracker/internal/domain"
)

// PriceSource supplies the current BTC/USD price and its 24h change.
type PriceSource interface {
	// Name identifies the source in logs and quotes (e.g. "coingecko").
	Name() string
	// GetQuote fetches the latest quote. A quote with a non-positive price
	// must be treated by callers as "not loaded".
	GetQuote(ctx context.Context) (*domain.PriceQuote, error)
}
