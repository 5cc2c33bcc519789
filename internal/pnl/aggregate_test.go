package pnl

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeTracker/internal/domain"
)

func pnlPtr(v float64, unit domain.PnLUnit) *domain.PnL {
	return &domain.PnL{Value: v, Unit: unit}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Equal(t, domain.CumulativePnL{}, Aggregate(nil))
	assert.Equal(t, domain.CumulativePnL{}, Aggregate([]*domain.Trade{}))
}

func TestAggregate_SplitsByUnitAndStatus(t *testing.T) {
	trades := []*domain.Trade{
		{ID: 1, Side: domain.Buy, Status: domain.StatusOpen, UnrealizedPnL: pnlPtr(20000, domain.UnitUSD)},
		{ID: 2, Side: domain.Sell, Status: domain.StatusOpen, UnrealizedPnL: pnlPtr(0.25, domain.UnitBTC), RealizedPnL: pnlPtr(0.1, domain.UnitBTC)},
		{ID: 3, Side: domain.Buy, Status: domain.StatusClosed, RealizedPnL: pnlPtr(-5000, domain.UnitUSD)},
		// A stale unrealized value on a closed trade must not count.
		{ID: 4, Side: domain.Buy, Status: domain.StatusClosed, UnrealizedPnL: pnlPtr(999, domain.UnitUSD)},
		// Open trade before any price arrived.
		{ID: 5, Side: domain.Sell, Status: domain.StatusOpen},
		nil,
	}

	got := Aggregate(trades)
	assert.Equal(t, domain.CumulativePnL{
		Unrealized: domain.CurrencyTotals{BTC: 0.25, USD: 20000},
		Realized:   domain.CurrencyTotals{BTC: 0.1, USD: -5000},
	}, got)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	trades := make([]*domain.Trade, 0, 60)
	for i := 0; i < 60; i++ {
		unit := domain.UnitUSD
		side := domain.Buy
		if i%3 == 0 {
			unit = domain.UnitBTC
			side = domain.Sell
		}
		tr := &domain.Trade{ID: int64(i), Side: side, Status: domain.StatusOpen}
		tr.UnrealizedPnL = pnlPtr((r.Float64()-0.5)*1e4/3, unit)
		if i%4 == 0 {
			tr.RealizedPnL = pnlPtr(r.Float64()/7, unit)
		}
		if i%5 == 0 {
			tr.Status = domain.StatusClosed
		}
		trades = append(trades, tr)
	}

	want := Aggregate(trades)
	for i := 0; i < 20; i++ {
		shuffled := append([]*domain.Trade(nil), trades...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Aggregate(shuffled))
	}

	// Idempotent: aggregating twice yields the same totals.
	assert.Equal(t, want, Aggregate(trades))
}
