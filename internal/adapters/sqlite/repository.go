package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradeTracker/internal/adapters/storeformat"
	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trades.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates the trades table if it doesn't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN ('Buy', 'Sell')),
		entry_date TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Open', 'Closed')),
		realized_pnl TEXT DEFAULT NULL,
		unrealized_pnl TEXT DEFAULT NULL,
		cash_value TEXT DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_entry_date ON trades (entry_date);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// mutableColumns holds the encoded columns that Update may change.
type mutableColumns struct {
	amount     string
	status     string
	realized   sql.NullString
	unrealized sql.NullString
}

func encodeMutable(u domain.TradeUpdate) (mutableColumns, error) {
	var (
		cols mutableColumns
		err  error
	)
	cols.status = string(u.Status)
	if cols.amount, err = storeformat.FormatDecimal(u.Amount); err != nil {
		return cols, fmt.Errorf("amount: %w", err)
	}
	if cols.realized, err = storeformat.EncodePnL(u.RealizedPnL); err != nil {
		return cols, fmt.Errorf("realized %w", err)
	}
	if cols.unrealized, err = storeformat.EncodePnL(u.UnrealizedPnL); err != nil {
		return cols, fmt.Errorf("unrealized %w", err)
	}
	return cols, nil
}

// Insert persists a new trade under its caller-assigned ID.
func (r *Repository) Insert(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, type, entry_date, entry_price, amount, status, realized_pnl, unrealized_pnl, cash_value)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	entryPrice, err := storeformat.FormatDecimal(trade.EntryPrice)
	if err != nil {
		return fmt.Errorf("trade %d entry price: %w", trade.ID, err)
	}
	cashValue, err := storeformat.FormatOptionalDecimal(trade.CashValue)
	if err != nil {
		return fmt.Errorf("trade %d cash value: %w", trade.ID, err)
	}
	cols, err := encodeMutable(domain.UpdateFrom(trade))
	if err != nil {
		return fmt.Errorf("trade %d: %w", trade.ID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		trade.ID, string(trade.Side), storeformat.FormatTime(trade.EntryTime),
		entryPrice, cols.amount, cols.status,
		cols.realized, cols.unrealized, cashValue)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("trade %d already exists: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade %d: %w: %w", trade.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Trade inserted", map[string]interface{}{"tradeID": trade.ID, "side": trade.Side})
	return nil
}

// FindAll retrieves all trades, ordered by entry time descending.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	const query = `
	SELECT id, type, entry_date, entry_price, amount, status, realized_pnl, unrealized_pnl, cash_value
	FROM trades
	ORDER BY entry_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindAll: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// FindByID retrieves a trade by its unique ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	const query = `
	SELECT id, type, entry_date, entry_price, amount, status, realized_pnl, unrealized_pnl, cash_value
	FROM trades
	WHERE id = ?`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w", id, err)
	}
	return trade, nil
}

// Update patches the amount, status and PnL columns of a trade.
func (r *Repository) Update(ctx context.Context, id int64, update domain.TradeUpdate) error {
	const query = `
	UPDATE trades
	SET amount = ?, status = ?, realized_pnl = ?, unrealized_pnl = ?
	WHERE id = ?`

	cols, err := encodeMutable(update)
	if err != nil {
		return fmt.Errorf("trade %d: %w", id, err)
	}

	result, err := r.db.ExecContext(ctx, query, cols.amount, cols.status, cols.realized, cols.unrealized, id)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w: %w", id, ports.ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade ID %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": id, "status": update.Status, "amount": update.Amount})
	return nil
}

// Delete removes a trade regardless of its status.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trade ID %d: %w: %w", id, ports.ErrDeleteFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete trade ID %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for delete: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade deleted", map[string]interface{}{"tradeID": id})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	var (
		t                       domain.Trade
		side, status, entryDate string
		entryPrice, amount      string
		realized, unrealized    sql.NullString
		cashValue               sql.NullString
	)
	if err := s.Scan(&t.ID, &side, &entryDate, &entryPrice, &amount, &status, &realized, &unrealized, &cashValue); err != nil {
		return nil, err // sql.ErrNoRows is handled by the caller
	}

	var err error
	t.Side = domain.TradeSide(side)
	t.Status = domain.TradeStatus(status)
	if t.EntryTime, err = storeformat.ParseTime(entryDate); err != nil {
		return nil, err
	}
	if t.EntryPrice, err = storeformat.ParseDecimal(entryPrice); err != nil {
		return nil, err
	}
	if t.Amount, err = storeformat.ParseDecimal(amount); err != nil {
		return nil, err
	}
	if t.RealizedPnL, err = storeformat.DecodePnL(realized); err != nil {
		return nil, err
	}
	if t.UnrealizedPnL, err = storeformat.DecodePnL(unrealized); err != nil {
		return nil, err
	}
	if t.CashValue, err = storeformat.ParseOptionalDecimal(cashValue); err != nil {
		return nil, err
	}
	return &t, nil
}
