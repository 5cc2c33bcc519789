package pricefeed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/pnl"
	"tradeTracker/internal/ports"
)

const (
	MinInterval     = 30 * time.Second
	MaxInterval     = 60 * time.Second
	DefaultInterval = 60 * time.Second

	fetchTimeout = 15 * time.Second
)

// Config holds configuration for the Poller.
type Config struct {
	Source   ports.PriceSource
	State    *State
	Logger   ports.Logger
	Interval time.Duration // Between MinInterval and MaxInterval
	// RefreshPerMinute bounds manual refreshes requested through Refresh.
	RefreshPerMinute int
}

// Poller periodically pulls a quote from the price source into the State.
type Poller struct {
	source   ports.PriceSource
	state    *State
	logger   ports.Logger
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewPoller validates the configuration and creates a Poller.
func NewPoller(cfg Config) (*Poller, error) {
	if cfg.Source == nil || cfg.State == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Poller: %w", ports.ErrConfigurationError)
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval || interval > MaxInterval {
		return nil, fmt.Errorf("poll interval %s outside [%s, %s]: %w", interval, MinInterval, MaxInterval, ports.ErrConfigurationError)
	}
	perMinute := cfg.RefreshPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	return &Poller{
		source:   cfg.Source,
		state:    cfg.State,
		logger:   cfg.Logger,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		now:      time.Now,
	}, nil
}

// Run polls immediately and then on every interval until ctx is canceled.
// A failed poll is logged and skipped; it never stops the loop.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info(ctx, "Price poller started", map[string]interface{}{"source": p.source.Name(), "interval": p.interval.String()})

	_ = p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "Price poller stopped")
			return
		case <-ticker.C:
			_ = p.poll(ctx)
		}
	}
}

// Refresh performs an out-of-band poll, bounded by the refresh rate limit.
func (p *Poller) Refresh(ctx context.Context) (domain.PriceQuote, error) {
	if !p.limiter.Allow() {
		return domain.PriceQuote{}, fmt.Errorf("manual price refresh: %w", ports.ErrRateLimited)
	}
	if err := p.poll(ctx); err != nil {
		return domain.PriceQuote{}, err
	}
	q, _ := p.state.Latest()
	return q, nil
}

func (p *Poller) poll(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	quote, err := p.source.GetQuote(fetchCtx)
	if err != nil {
		p.logger.Error(ctx, err, "Price fetch failed, skipping cycle", map[string]interface{}{"source": p.source.Name()})
		return err
	}
	if quote == nil || !pnl.ValidPrice(quote.Price) {
		err := fmt.Errorf("price source %s returned an unusable price: %w", p.source.Name(), ports.ErrPriceNotLoaded)
		p.logger.Warn(ctx, "Ignoring unusable price", map[string]interface{}{"source": p.source.Name()})
		return err
	}
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = p.now().UTC()
	}
	if quote.Source == "" {
		quote.Source = p.source.Name()
	}

	p.state.set(*quote)
	p.logger.Debug(ctx, "Price updated", map[string]interface{}{"price": quote.Price, "source": quote.Source})
	return nil
}
