package pnl

import (
	"math"

	"github.com/shopspring/decimal"

	"tradeTracker/internal/domain"
)

type totals struct {
	btc decimal.Decimal
	usd decimal.Decimal
}

func (t *totals) add(p domain.PnL) {
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return
	}
	v := decimal.NewFromFloat(p.Value)
	if p.Unit == domain.UnitBTC {
		t.btc = t.btc.Add(v)
		return
	}
	t.usd = t.usd.Add(v)
}

func (t totals) currency() domain.CurrencyTotals {
	return domain.CurrencyTotals{
		BTC: t.btc.InexactFloat64(),
		USD: t.usd.InexactFloat64(),
	}
}

// Aggregate folds all trades into portfolio totals split by unit.
// Open trades contribute their unrealized PnL; every trade with a realized PnL
// contributes it regardless of status. Sums are exact decimals converted once
// at the end, so the result does not depend on the order of trades.
func Aggregate(trades []*domain.Trade) domain.CumulativePnL {
	unrealized := totals{btc: decimal.Zero, usd: decimal.Zero}
	realized := totals{btc: decimal.Zero, usd: decimal.Zero}

	for _, t := range trades {
		if t == nil {
			continue
		}
		if t.IsOpen() && t.UnrealizedPnL != nil {
			unrealized.add(*t.UnrealizedPnL)
		}
		if t.RealizedPnL != nil {
			realized.add(*t.RealizedPnL)
		}
	}

	return domain.CumulativePnL{
		Unrealized: unrealized.currency(),
		Realized:   realized.currency(),
	}
}
