// Package gormstore implements ports.TradeRepository on top of gorm, for the
// managed Postgres database and for local gorm-sqlite files.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "gorm-sqlite"
)

// Config holds configuration for the gorm repository.
type Config struct {
	Driver string
	DSN    string
	Logger ports.Logger
}

// Repository implements ports.TradeRepository using gorm.
type Repository struct {
	db     *gorm.DB
	logger ports.Logger
}

// Open connects to the configured database and migrates the trades table.
func Open(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for gorm repository: %w", ports.ErrConfigurationError)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for driver %q: %w", cfg.Driver, ports.ErrConfigurationError)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q: %w", cfg.Driver, ports.ErrConfigurationError)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		err = fmt.Errorf("failed to open %s database: %w: %w", cfg.Driver, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "Gorm repository initialization failed")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB from gorm: %w: %w", ports.ErrDBConnection, err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&tradeRow{}); err != nil {
		sqlDB.Close()
		err = fmt.Errorf("failed to migrate trades table: %w", err)
		cfg.Logger.Error(context.Background(), err, "Gorm repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "Gorm database connection established", map[string]interface{}{"driver": cfg.Driver})
	return &Repository{db: db, logger: cfg.Logger}, nil
}

// WithDB wraps an already opened *gorm.DB without migrating it.
func WithDB(db *gorm.DB, logger ports.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	r.logger.Info(context.Background(), "Closing gorm database connection")
	return sqlDB.Close()
}

// Insert persists a new trade under its caller-assigned ID.
func (r *Repository) Insert(ctx context.Context, trade *domain.Trade) error {
	row, err := toRow(trade)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("trade %d already exists: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade %d: %w: %w", trade.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Trade inserted", map[string]interface{}{"tradeID": trade.ID, "side": trade.Side})
	return nil
}

// FindAll retrieves all trades, newest entry first.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	var rows []tradeRow
	if err := r.db.WithContext(ctx).Order("entry_date DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query all trades: %w: %w", ports.ErrQueryFailed, err)
	}
	trades := make([]*domain.Trade, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// FindByID returns nil, nil when the trade does not exist.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	var row tradeRow
	err := r.db.WithContext(ctx).First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return row.toDomain()
}

// Update patches the mutable columns of a trade. A map is used so that zero
// amounts and cleared PnL values are written too.
func (r *Repository) Update(ctx context.Context, id int64, update domain.TradeUpdate) error {
	patch, err := toRow(&domain.Trade{
		ID:            id,
		Amount:        update.Amount,
		Status:        update.Status,
		RealizedPnL:   update.RealizedPnL,
		UnrealizedPnL: update.UnrealizedPnL,
	})
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&tradeRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"amount":         patch.Amount,
		"status":         patch.Status,
		"realized_pnl":   patch.RealizedPnL,
		"unrealized_pnl": patch.UnrealizedPnL,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update trade ID %d: %w: %w", id, ports.ErrUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": id, "status": update.Status, "amount": update.Amount})
	return nil
}

// Delete removes a trade regardless of its status.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&tradeRow{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete trade ID %d: %w: %w", id, ports.ErrDeleteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for delete: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade deleted", map[string]interface{}{"tradeID": id})
	return nil
}
