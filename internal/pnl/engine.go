// Package pnl computes unrealized and realized profit-and-loss for trades and
// aggregates them into portfolio totals. Everything here is pure: no I/O, no
// clocks other than the ones passed in.
//
// Buy trades are long positions and report PnL in USD. Sell trades are
// cash-settled shorts that report PnL in BTC: covering at price P buys back
// cashValue/P BTC, and the difference to the sold amount is the gain.
package pnl

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradeTracker/internal/domain"
)

// ValidPrice reports whether p can be used as a price (positive and finite).
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func validAmount(a float64) bool {
	return a > 0 && !math.IsInf(a, 0) && !math.IsNaN(a)
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// calculate applies the side-dependent PnL formula for amount units valued at price.
// price must already be validated as positive. Inputs too large or too small to
// give a finite PnL are rejected as an invalid price.
func calculate(side domain.TradeSide, entryPrice, price, amount float64) (domain.PnL, error) {
	p := domain.PnL{
		Value: (price - entryPrice) * amount,
		Unit:  domain.UnitUSD,
	}
	if side == domain.Sell {
		p = domain.PnL{
			Value: amount * ((entryPrice - price) / price),
			Unit:  domain.UnitBTC,
		}
	}
	if !finite(p.Value) {
		return domain.PnL{}, fmt.Errorf("pnl at price %v for amount %v overflows: %w", price, amount, ErrInvalidPrice)
	}
	return p, nil
}

func checkOpenTrade(trade *domain.Trade) error {
	if trade == nil {
		return fmt.Errorf("nil trade: %w", ErrInvalidTrade)
	}
	if !trade.Side.Valid() || !ValidPrice(trade.EntryPrice) {
		return fmt.Errorf("trade %d: %w", trade.ID, ErrInvalidTrade)
	}
	if !trade.IsOpen() {
		return fmt.Errorf("trade %d has status %s: %w", trade.ID, trade.Status, ErrTradeNotOpen)
	}
	if !validAmount(trade.Amount) {
		return fmt.Errorf("trade %d amount %v: %w", trade.ID, trade.Amount, ErrInvalidAmount)
	}
	return nil
}

// ComputeUnrealized returns the mark-to-market PnL of an open trade at currentPrice.
func ComputeUnrealized(trade *domain.Trade, currentPrice float64) (domain.PnL, error) {
	if err := checkOpenTrade(trade); err != nil {
		return domain.PnL{}, err
	}
	if !ValidPrice(currentPrice) {
		return domain.PnL{}, fmt.Errorf("current price %v: %w", currentPrice, ErrInvalidPrice)
	}
	return calculate(trade.Side, trade.EntryPrice, currentPrice, trade.Amount)
}

// ComputeRealized returns the PnL locked in by closing closeAmount of an open
// trade at closePrice. It does not modify the trade.
func ComputeRealized(trade *domain.Trade, closePrice, closeAmount float64) (domain.PnL, error) {
	if err := checkOpenTrade(trade); err != nil {
		return domain.PnL{}, err
	}
	if !validAmount(closeAmount) {
		return domain.PnL{}, fmt.Errorf("close amount %v: %w", closeAmount, ErrInvalidCloseAmount)
	}
	if decimal.NewFromFloat(closeAmount).GreaterThan(decimal.NewFromFloat(trade.Amount)) {
		return domain.PnL{}, fmt.Errorf("close amount %v > remaining %v: %w", closeAmount, trade.Amount, ErrCloseAmountExceeds)
	}
	if !ValidPrice(closePrice) {
		return domain.PnL{}, fmt.Errorf("close price %v: %w", closePrice, ErrInvalidPrice)
	}
	return calculate(trade.Side, trade.EntryPrice, closePrice, closeAmount)
}

// ApplyClose closes closeAmount of trade at closePrice and returns the resulting
// trade state. The input trade is never modified, so a failed validation leaves
// the caller's state untouched.
//
// A partial close keeps the trade Open with the reduced amount and recomputes
// its unrealized PnL at currentPrice (nil when currentPrice is not a usable
// price). A close of the whole remaining amount sets the amount to zero, flips
// the status to Closed and clears the unrealized PnL. RealizedPnL always holds
// the PnL of this close only; earlier closes are overwritten.
func ApplyClose(trade *domain.Trade, closePrice, closeAmount, currentPrice float64) (*domain.Trade, error) {
	realized, err := ComputeRealized(trade, closePrice, closeAmount)
	if err != nil {
		return nil, err
	}

	remaining := decimal.NewFromFloat(trade.Amount).Sub(decimal.NewFromFloat(closeAmount))

	next := trade.Clone()
	next.RealizedPnL = &realized

	if remaining.IsPositive() {
		next.Amount = remaining.InexactFloat64()
		next.UnrealizedPnL = nil
		if ValidPrice(currentPrice) {
			unrealized, err := calculate(next.Side, next.EntryPrice, currentPrice, next.Amount)
			if err != nil {
				return nil, err
			}
			next.UnrealizedPnL = &unrealized
		}
		return next, nil
	}

	next.Amount = 0
	next.Status = domain.StatusClosed
	next.UnrealizedPnL = nil
	return next, nil
}

// RefreshUnrealized recomputes, in place, the unrealized PnL of every open trade
// at currentPrice and clears it on closed trades. When currentPrice is not a
// usable price nothing is touched. It returns the number of trades refreshed.
func RefreshUnrealized(trades []*domain.Trade, currentPrice float64) int {
	if !ValidPrice(currentPrice) {
		return 0
	}
	refreshed := 0
	for _, t := range trades {
		if t == nil {
			continue
		}
		if !t.IsOpen() {
			t.UnrealizedPnL = nil
			continue
		}
		u, err := ComputeUnrealized(t, currentPrice)
		if err != nil {
			continue
		}
		t.UnrealizedPnL = &u
		refreshed++
	}
	return refreshed
}

// OpenTrade validates a user submission and builds the new Open trade.
// Sell trades capture their cash value (price * amount). When currentPrice is a
// usable price the unrealized PnL is filled in immediately.
func OpenTrade(req domain.NewTrade, id int64, now time.Time, currentPrice float64) (*domain.Trade, error) {
	if !req.Side.Valid() {
		return nil, fmt.Errorf("side %q: %w", req.Side, ErrInvalidSide)
	}
	if !ValidPrice(req.Price) {
		return nil, fmt.Errorf("entry price %v: %w", req.Price, ErrInvalidPrice)
	}
	if !validAmount(req.Amount) {
		return nil, fmt.Errorf("amount %v: %w", req.Amount, ErrInvalidAmount)
	}

	trade := &domain.Trade{
		ID:         id,
		Side:       req.Side,
		EntryTime:  now.UTC().Truncate(time.Millisecond),
		EntryPrice: req.Price,
		Amount:     req.Amount,
		Status:     domain.StatusOpen,
	}
	if req.Side == domain.Sell {
		cash := decimal.NewFromFloat(req.Price).Mul(decimal.NewFromFloat(req.Amount)).InexactFloat64()
		if !finite(cash) {
			return nil, fmt.Errorf("cash value of %v at %v overflows: %w", req.Amount, req.Price, ErrInvalidAmount)
		}
		trade.CashValue = &cash
	}
	if ValidPrice(currentPrice) {
		u, err := calculate(trade.Side, trade.EntryPrice, currentPrice, trade.Amount)
		if err != nil {
			return nil, err
		}
		trade.UnrealizedPnL = &u
	}
	return trade, nil
}

// ValidateTrade checks a stored or imported trade against the trade
// invariants: known side and status, finite positive entry price, positive
// amount while Open and zero once Closed, PnL in the side's unit, and a cash
// value on Sell trades only.
func ValidateTrade(t *domain.Trade) error {
	if t == nil {
		return fmt.Errorf("nil trade: %w", ErrInvalidTrade)
	}
	if !t.Side.Valid() {
		return fmt.Errorf("trade %d side %q: %w", t.ID, t.Side, ErrInvalidSide)
	}
	if !ValidPrice(t.EntryPrice) {
		return fmt.Errorf("trade %d entry price %v: %w", t.ID, t.EntryPrice, ErrInvalidPrice)
	}
	switch t.Status {
	case domain.StatusOpen:
		if !validAmount(t.Amount) {
			return fmt.Errorf("open trade %d amount %v: %w", t.ID, t.Amount, ErrInvalidAmount)
		}
	case domain.StatusClosed:
		if t.Amount != 0 {
			return fmt.Errorf("closed trade %d amount %v must be 0: %w", t.ID, t.Amount, ErrInvalidAmount)
		}
		if t.UnrealizedPnL != nil {
			return fmt.Errorf("closed trade %d has unrealized pnl: %w", t.ID, ErrInvalidTrade)
		}
	default:
		return fmt.Errorf("trade %d status %q: %w", t.ID, t.Status, ErrInvalidTrade)
	}
	unit := domain.UnitForSide(t.Side)
	for _, p := range []*domain.PnL{t.UnrealizedPnL, t.RealizedPnL} {
		if p == nil {
			continue
		}
		if p.Unit != unit || !finite(p.Value) {
			return fmt.Errorf("trade %d pnl %v %s, want a finite value in %s: %w", t.ID, p.Value, p.Unit, unit, ErrInvalidTrade)
		}
	}
	if t.CashValue != nil && (t.Side != domain.Sell || !ValidPrice(*t.CashValue)) {
		return fmt.Errorf("trade %d cash value %v: %w", t.ID, *t.CashValue, ErrInvalidTrade)
	}
	return nil
}
