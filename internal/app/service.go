package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradeTracker/config"
	"tradeTracker/internal/domain"
	"tradeTracker/internal/pnl"
	"tradeTracker/internal/ports"
	"tradeTracker/internal/pricefeed"
)

// SummaryListener receives the dashboard summary after every change.
type SummaryListener func(domain.Summary)

// change is a summary stamped with the order in which it was taken under mu.
type change struct {
	seq     uint64
	summary domain.Summary
}

// TrackerService owns the trade collection and the cumulative PnL. Every
// create, close, delete and price tick is a single read-modify-write under mu,
// persistence included, so price ticks always apply to the latest collection.
type TrackerService struct {
	cfg    *config.Config
	logger ports.Logger
	repo   ports.TradeRepository
	state  *pricefeed.State
	poller *pricefeed.Poller // nil when the service runs without a live feed

	// State fields
	mu         sync.Mutex // Protects access to state fields below
	trades     []*domain.Trade
	cumulative domain.CumulativePnL
	lastID     int64
	seq        uint64 // bumped for every summary taken under mu
	applied    *domain.PriceQuote

	listenersMu sync.RWMutex
	listeners   []SummaryListener

	notifyMu sync.Mutex // serializes delivery and guards notified
	notified uint64

	background sync.WaitGroup
	now        func() time.Time
}

// NewTrackerService creates a new application service instance.
func NewTrackerService(
	cfg *config.Config,
	logger ports.Logger,
	repo ports.TradeRepository,
	state *pricefeed.State,
	poller *pricefeed.Poller,
) (*TrackerService, error) {
	if cfg == nil || logger == nil || repo == nil || state == nil {
		return nil, fmt.Errorf("missing required dependencies for TrackerService: %w", ports.ErrConfigurationError)
	}
	return &TrackerService{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		state:  state,
		poller: poller,
		trades: make([]*domain.Trade, 0),
		now:    time.Now,
	}, nil
}

// AddListener registers fn to be called with a fresh summary after each change.
func (s *TrackerService) AddListener(fn SummaryListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load reads all trades from the store and rebuilds the in-memory state.
func (s *TrackerService) Load(ctx context.Context) error {
	trades, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load trades from store")
		return fmt.Errorf("failed to load trades: %w", err)
	}

	c := s.replaceTrades(trades)

	s.logger.Info(ctx, "Trades loaded", map[string]interface{}{"count": len(trades), "open": c.summary.OpenTrades})
	s.notify(c)
	return nil
}

func (s *TrackerService) replaceTrades(trades []*domain.Trade) change {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = trades
	for _, t := range trades {
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}
	if price := s.state.Price(); pnl.ValidPrice(price) {
		pnl.RefreshUnrealized(s.trades, price)
	}
	s.recompute()
	return s.changeLocked()
}

// Start loads the trades, runs the price poller and applies every price tick
// until ctx is canceled or a shutdown signal arrives.
func (s *TrackerService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Tracker Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.Load(ctx); err != nil {
		return err
	}

	ticks := s.state.Subscribe()
	if s.poller != nil {
		go s.poller.Run(ctx)
	} else {
		s.logger.Warn(ctx, "No price poller configured, unrealized PnL will not refresh")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
			s.background.Wait()
			s.logger.Info(ctx, "Tracker Service stopped.")
			return nil
		case quote := <-ticks:
			s.handlePriceTick(ctx, quote)
		}
	}
}

// Wait blocks until background persistence started by price ticks finishes.
func (s *TrackerService) Wait() {
	s.background.Wait()
}

// handlePriceTick recomputes unrealized PnL of open trades for a new quote.
// A quote that was already applied is ignored.
func (s *TrackerService) handlePriceTick(ctx context.Context, quote domain.PriceQuote) {
	if !pnl.ValidPrice(quote.Price) {
		s.logger.Warn(ctx, "Ignoring price tick without a usable price", map[string]interface{}{"source": quote.Source})
		return
	}

	refreshed, c, ok := s.applyQuote(quote)
	if !ok {
		return
	}

	s.logger.Debug(ctx, "Unrealized PnL refreshed", map[string]interface{}{"price": quote.Price, "trades": refreshed})
	s.notify(c)

	if s.cfg.PersistUnrealized && refreshed > 0 {
		s.background.Add(1)
		go s.persistUnrealized(context.WithoutCancel(ctx))
	}
}

func (s *TrackerService) applyQuote(quote domain.PriceQuote) (int, change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applied != nil && sameQuote(*s.applied, quote) {
		return 0, change{}, false
	}
	s.applied = &quote
	refreshed := pnl.RefreshUnrealized(s.trades, quote.Price)
	s.recompute()
	return refreshed, s.changeLocked(), true
}

func sameQuote(a, b domain.PriceQuote) bool {
	return a.Price == b.Price && a.Source == b.Source && a.FetchedAt.Equal(b.FetchedAt)
}

// persistUnrealized writes the current unrealized PnL of open trades back to
// the store. It reads the collection under mu at write time, so it never
// overwrites a close that happened after the tick.
func (s *TrackerService) persistUnrealized(ctx context.Context) {
	defer s.background.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.trades {
		if !t.IsOpen() {
			continue
		}
		if err := s.repo.Update(ctx, t.ID, domain.UpdateFrom(t)); err != nil {
			s.logger.Error(ctx, err, "Failed to persist unrealized PnL", map[string]interface{}{"tradeID": t.ID})
		}
	}
}

// CreateTrade validates and records a new Open trade.
func (s *TrackerService) CreateTrade(ctx context.Context, req domain.NewTrade) (*domain.Trade, error) {
	trade, c, err := s.insertTrade(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Trade opened", map[string]interface{}{
		"tradeID":    trade.ID,
		"side":       trade.Side,
		"entryPrice": trade.EntryPrice,
		"amount":     trade.Amount,
	})
	s.notify(c)
	return trade, nil
}

func (s *TrackerService) insertTrade(ctx context.Context, req domain.NewTrade) (*domain.Trade, change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	trade, err := pnl.OpenTrade(req, s.peekID(now), now, s.state.Price())
	if err != nil {
		return nil, change{}, err
	}
	if err := s.repo.Insert(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to save new trade", map[string]interface{}{"side": req.Side})
		return nil, change{}, fmt.Errorf("failed to save trade: %w", err)
	}
	s.lastID = trade.ID

	// Newest entry first.
	s.trades = append([]*domain.Trade{trade}, s.trades...)
	s.recompute()
	return trade.Clone(), s.changeLocked(), nil
}

// CloseTrade closes closeAmount of an Open trade at closePrice. Closing the
// whole amount moves the trade to Closed.
func (s *TrackerService) CloseTrade(ctx context.Context, id int64, closePrice, closeAmount float64) (*domain.Trade, error) {
	return s.Close(ctx, id, domain.CloseRequest{Price: &closePrice, Amount: &closeAmount})
}

// Close closes an Open trade as described by req. An omitted price uses the
// latest quote and an omitted amount closes the whole remaining amount.
func (s *TrackerService) Close(ctx context.Context, id int64, req domain.CloseRequest) (*domain.Trade, error) {
	res, err := s.applyClose(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Trade closed", map[string]interface{}{
		"tradeID":     id,
		"closePrice":  res.price,
		"closeAmount": res.amount,
		"remaining":   res.trade.Amount,
		"status":      res.trade.Status,
		"realizedPnL": res.trade.RealizedPnL.Value,
	})
	s.notify(res.change)
	return res.trade, nil
}

type closeResult struct {
	trade         *domain.Trade
	price, amount float64
	change        change
}

func (s *TrackerService) applyClose(ctx context.Context, id int64, req domain.CloseRequest) (closeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return closeResult{}, fmt.Errorf("trade %d: %w", id, ports.ErrNotFound)
	}
	current := s.trades[idx]

	price := s.state.Price()
	closePrice := price
	if req.Price != nil {
		closePrice = *req.Price
	} else if current.IsOpen() && !pnl.ValidPrice(closePrice) {
		return closeResult{}, fmt.Errorf("close of trade %d without a price: %w", id, ports.ErrPriceNotLoaded)
	}
	closeAmount := current.Amount
	if req.Amount != nil {
		closeAmount = *req.Amount
	}

	updated, err := pnl.ApplyClose(current, closePrice, closeAmount, price)
	if err != nil {
		return closeResult{}, err
	}
	if err := s.repo.Update(ctx, id, domain.UpdateFrom(updated)); err != nil {
		s.logger.Error(ctx, err, "Failed to save closed trade", map[string]interface{}{"tradeID": id})
		return closeResult{}, fmt.Errorf("failed to save trade %d: %w", id, err)
	}

	s.trades[idx] = updated
	s.recompute()
	return closeResult{trade: updated.Clone(), price: closePrice, amount: closeAmount, change: s.changeLocked()}, nil
}

// DeleteTrade removes a trade regardless of its status.
func (s *TrackerService) DeleteTrade(ctx context.Context, id int64) error {
	c, err := s.removeTrade(ctx, id)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Trade deleted", map[string]interface{}{"tradeID": id})
	s.notify(c)
	return nil
}

func (s *TrackerService) removeTrade(ctx context.Context, id int64) (change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return change{}, fmt.Errorf("trade %d: %w", id, ports.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.logger.Error(ctx, err, "Failed to delete trade", map[string]interface{}{"tradeID": id})
		return change{}, fmt.Errorf("failed to delete trade %d: %w", id, err)
	}

	s.trades = append(s.trades[:idx], s.trades[idx+1:]...)
	s.recompute()
	return s.changeLocked(), nil
}

// Trades returns copies of all trades, newest entry first.
func (s *TrackerService) Trades() []*domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Trade, len(s.trades))
	for i, t := range s.trades {
		out[i] = t.Clone()
	}
	return out
}

// Summary returns the current price, cumulative PnL and trade counts.
func (s *TrackerService) Summary() domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// RefreshPrice asks the poller for an immediate quote and applies it. The
// running price loop sees the same quote and skips it.
func (s *TrackerService) RefreshPrice(ctx context.Context) (domain.PriceQuote, error) {
	if s.poller == nil {
		return domain.PriceQuote{}, fmt.Errorf("price refresh without a poller: %w", ports.ErrConfigurationError)
	}
	quote, err := s.poller.Refresh(ctx)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	s.handlePriceTick(ctx, quote)
	return quote, nil
}

// --- Private helpers ---
// NOTE: summaryLocked, changeLocked, recompute, indexOf and peekID assume s.mu is held.

// peekID derives the next trade id from the creation time in milliseconds,
// bumped past the last issued id so ids stay unique and increasing.
func (s *TrackerService) peekID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	return id
}

func (s *TrackerService) indexOf(id int64) int {
	for i, t := range s.trades {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *TrackerService) recompute() {
	s.cumulative = pnl.Aggregate(s.trades)
}

func (s *TrackerService) summaryLocked() domain.Summary {
	summary := domain.Summary{Cumulative: s.cumulative}
	if q, ok := s.state.Latest(); ok {
		summary.Price = &q
	}
	for _, t := range s.trades {
		if t.IsOpen() {
			summary.OpenTrades++
		} else {
			summary.ClosedTrades++
		}
	}
	return summary
}

func (s *TrackerService) changeLocked() change {
	s.seq++
	return change{seq: s.seq, summary: s.summaryLocked()}
}

// notify delivers c unless a later change has already been delivered.
func (s *TrackerService) notify(c change) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if c.seq <= s.notified {
		return
	}
	s.notified = c.seq

	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn(c.summary)
	}
}
