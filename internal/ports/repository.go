package ports

import (
	"context"

	"tradeTracker/internal/domain"
)

// TradeRepository defines the durable store for trades.
type TradeRepository interface {
	// Insert persists a new trade. The trade ID is assigned by the caller.
	Insert(ctx context.Context, trade *domain.Trade) error
	// FindAll retrieves all trades, ordered by entry time descending.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
	// FindByID retrieves a trade by its ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Trade, error)
	// Update patches the amount, status and PnL fields of one trade.
	// Returns an error wrapping ErrNotFound if the trade does not exist.
	Update(ctx context.Context, id int64, update domain.TradeUpdate) error
	// Delete removes a trade regardless of its status.
	// Returns an error wrapping ErrNotFound if the trade does not exist.
	Delete(ctx context.Context, id int64) error
	// Close releases the underlying connection.
	Close() error
}
