package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradeTracker/config"
	"tradeTracker/internal/adapters/logger"
	"tradeTracker/internal/app"
	"tradeTracker/internal/bootstrap"
	"tradeTracker/internal/domain"
	"tradeTracker/internal/pnl"
	"tradeTracker/internal/ports"
	"tradeTracker/internal/pricefeed"
	"tradeTracker/internal/utils"
)

// session is a loaded tracker bound to the configured store.
type session struct {
	cfg     *config.Config
	logger  ports.Logger
	repo    ports.TradeRepository
	tracker *app.TrackerService
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	// Keep stdout for command output; only warnings and errors go to stderr.
	log := logger.NewWithWriter(os.Stderr, maxLevel(cfg.LogLevel, logrus.WarnLevel), cfg.LogFormat).WithComponent("tradectl")
	ctx := context.Background()

	repo, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}

	state := pricefeed.NewState()
	var poller *pricefeed.Poller
	if c.Bool("live") {
		state, poller, err = bootstrap.NewPriceFeed(cfg, log)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	tracker, err := app.NewTrackerService(cfg, log, repo, state, poller)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if err := tracker.Load(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	if poller != nil {
		if _, err := tracker.RefreshPrice(ctx); err != nil {
			log.Warn(ctx, "Live price unavailable, showing stored values", map[string]interface{}{"error": err.Error()})
		}
	}
	return &session{cfg: cfg, logger: log, repo: repo, tracker: tracker}, nil
}

func (s *session) close() {
	s.tracker.Wait()
	if err := s.repo.Close(); err != nil {
		s.logger.Error(context.Background(), err, "Error closing trade store")
	}
}

// maxLevel returns the less verbose of two logrus levels.
func maxLevel(a, b logrus.Level) logrus.Level {
	if a < b {
		return a
	}
	return b
}

func parseDecimalFlag(c *cli.Context, name string) (float64, error) {
	raw := c.String(name)
	if raw == "" {
		return 0, fmt.Errorf("--%s is required: %w", name, ports.ErrInvalidRequest)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("--%s %q is not a decimal number: %w", name, raw, ports.ErrInvalidRequest)
	}
	return d.InexactFloat64(), nil
}

// parseOptionalDecimalFlag returns nil when the flag was not given.
func parseOptionalDecimalFlag(c *cli.Context, name string) (*float64, error) {
	if c.String(name) == "" {
		return nil, nil
	}
	f, err := parseDecimalFlag(c, name)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func requireID(c *cli.Context) (int64, error) {
	id := c.Int64("id")
	if id <= 0 {
		return 0, fmt.Errorf("--id is required: %w", ports.ErrInvalidRequest)
	}
	return id, nil
}

func listAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	return printTrades(os.Stdout, s.tracker.Trades())
}

func summaryAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	return printSummary(os.Stdout, s.tracker.Summary())
}

func openAction(c *cli.Context) error {
	side, err := parseSide(c.String("side"))
	if err != nil {
		return err
	}
	price, err := parseOptionalDecimalFlag(c, "price")
	if err != nil {
		return err
	}
	amount, err := parseDecimalFlag(c, "amount")
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if price == nil {
		q := s.tracker.Summary().Price
		if q == nil {
			return fmt.Errorf("--price is required without --live: %w", ports.ErrPriceNotLoaded)
		}
		price = &q.Price
	}
	trade, err := s.tracker.CreateTrade(context.Background(), domain.NewTrade{Side: side, Price: *price, Amount: amount})
	if err != nil {
		return err
	}
	return printTrades(os.Stdout, []*domain.Trade{trade})
}

func closeAction(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	price, err := parseOptionalDecimalFlag(c, "price")
	if err != nil {
		return err
	}
	amount, err := parseOptionalDecimalFlag(c, "amount")
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	trade, err := s.tracker.Close(context.Background(), id, domain.CloseRequest{Price: price, Amount: amount})
	if err != nil {
		return err
	}
	return printTrades(os.Stdout, []*domain.Trade{trade})
}

func deleteAction(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.tracker.DeleteTrade(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted trade %d\n", id)
	return nil
}

func exportAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	trades := s.tracker.Trades()
	out := c.String("out")
	if out == "" {
		return utils.WriteTradesCSV(os.Stdout, trades)
	}
	if err := utils.WriteTradesToCSV(trades, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d trades to %s\n", len(trades), out)
	return nil
}

func importAction(c *cli.Context) error {
	in := c.String("in")
	if in == "" {
		return fmt.Errorf("--in is required: %w", ports.ErrInvalidRequest)
	}
	trades, err := utils.ReadTradesFromCSV(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	inserted, skipped, err := importTrades(context.Background(), s.repo, trades)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d trades, skipped %d already stored\n", inserted, skipped)
	return nil
}

// importTrades inserts trades as they are, skipping ids the store already has.
// Nothing is inserted when any trade is inconsistent.
func importTrades(ctx context.Context, repo ports.TradeRepository, trades []*domain.Trade) (inserted, skipped int, err error) {
	for _, t := range trades {
		if err := pnl.ValidateTrade(t); err != nil {
			return 0, 0, fmt.Errorf("trade %d: %w", t.ID, err)
		}
	}
	for _, t := range trades {
		if err := repo.Insert(ctx, t); err != nil {
			if errors.Is(err, ports.ErrDuplicateEntry) {
				skipped++
				continue
			}
			return inserted, skipped, fmt.Errorf("failed to import trade %d: %w", t.ID, err)
		}
		inserted++
	}
	return inserted, skipped, nil
}
