// Package bootstrap builds the configured adapters shared by the server and
// the command line tool.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"tradeTracker/config"
	"tradeTracker/internal/adapters/binanceclient"
	"tradeTracker/internal/adapters/coingecko"
	"tradeTracker/internal/adapters/gormstore"
	"tradeTracker/internal/adapters/sqlite"
	"tradeTracker/internal/ports"
	"tradeTracker/internal/pricefeed"
)

// OpenStore opens the trade store selected by cfg.StoreDriver.
func OpenStore(cfg *config.Config, logger ports.Logger) (ports.TradeRepository, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger})
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreGormSQLite, config.StorePostgres:
		gcfg := gormstore.Config{Driver: gormstore.DriverPostgres, DSN: cfg.DatabaseURL, Logger: logger}
		if cfg.StoreDriver == config.StoreGormSQLite {
			if err := ensureDir(cfg.DBPath); err != nil {
				return nil, err
			}
			gcfg.Driver = gormstore.DriverSQLite
			gcfg.DSN = cfg.DBPath
		}
		repo, err := gormstore.Open(gcfg)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported store driver '%s': %w", cfg.StoreDriver, ports.ErrConfigurationError)
	}
}

// NewPriceSource builds the price source selected by cfg.PriceSource.
func NewPriceSource(cfg *config.Config, logger ports.Logger) (ports.PriceSource, error) {
	switch cfg.PriceSource {
	case config.PriceSourceCoinGecko:
		src, err := coingecko.New(coingecko.Config{BaseURL: cfg.CoinGeckoBaseURL, Logger: logger})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.PriceSourceBinance:
		src, err := binanceclient.New(binanceclient.Config{
			Symbol:     cfg.BinanceSymbol,
			UseTestnet: cfg.IsTestnet,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported price source '%s': %w", cfg.PriceSource, ports.ErrConfigurationError)
	}
}

// NewPriceFeed builds the price state and the poller that fills it.
func NewPriceFeed(cfg *config.Config, logger ports.Logger) (*pricefeed.State, *pricefeed.Poller, error) {
	source, err := NewPriceSource(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	state := pricefeed.NewState()
	poller, err := pricefeed.NewPoller(pricefeed.Config{
		Source:           source,
		State:            state,
		Logger:           logger,
		Interval:         cfg.PollInterval,
		RefreshPerMinute: cfg.RefreshPerMinute,
	})
	if err != nil {
		return nil, nil, err
	}
	return state, poller, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w: %w", dir, ports.ErrDBConnection, err)
	}
	return nil
}
