package gormstore

import (
	"context"
	"math"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})
	gdb, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}
	return gdb, mock
}

func floatPtr(f float64) *float64 { return &f }

var tradeColumns = []string{"id", "type", "entry_date", "entry_price", "amount", "status", "realized_pnl", "unrealized_pnl", "cash_value"}

func TestRepository_Queries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := WithDB(db, &mockLogger{})
	ctx := context.Background()
	entry := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("insert", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "trades"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(ctx, &domain.Trade{
			ID: 1, Side: domain.Buy, EntryTime: entry, EntryPrice: 40000, Amount: 0.5, Status: domain.StatusOpen,
		})
		require.NoError(t, err)
	})

	t.Run("find all orders by entry date", func(t *testing.T) {
		rows := sqlmock.NewRows(tradeColumns).
			AddRow(int64(2), "Sell", entry.Add(time.Minute), "50000", "0.3", "Open", nil, nil, "15000").
			AddRow(int64(1), "Buy", entry, "40000", "0.5", "Open", `{"value":1250.5,"unit":"USD"}`, nil, nil)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" ORDER BY entry_date DESC, id DESC`)).
			WillReturnRows(rows)

		trades, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, domain.Sell, trades[0].Side)
		assert.Equal(t, floatPtr(15000), trades[0].CashValue)
		assert.Nil(t, trades[0].RealizedPnL)
		assert.Equal(t, 0.5, trades[1].Amount)
		assert.Equal(t, &domain.PnL{Value: 1250.5, Unit: domain.UnitUSD}, trades[1].RealizedPnL)
	})

	t.Run("find missing by id", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE "trades"."id" = $1 ORDER BY "trades"."id" LIMIT $2`)).
			WithArgs(int64(5), 1).
			WillReturnRows(sqlmock.NewRows(tradeColumns))

		found, err := repo.FindByID(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("update missing trade", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "trades" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, 9, domain.TradeUpdate{Amount: 0, Status: domain.StatusClosed})
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("non-finite values never reach the database", func(t *testing.T) {
		err := repo.Insert(ctx, &domain.Trade{
			ID: 3, Side: domain.Sell, EntryTime: entry, EntryPrice: 50000, Amount: 1, Status: domain.StatusOpen,
			CashValue: floatPtr(math.Inf(1)),
		})
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)

		err = repo.Update(ctx, 1, domain.TradeUpdate{
			Amount: 0.5, Status: domain.StatusOpen,
			UnrealizedPnL: &domain.PnL{Value: math.NaN(), Unit: domain.UnitUSD},
		})
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("delete", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "trades" WHERE "trades"."id" = $1`)).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, 1))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing logger", cfg: Config{Driver: DriverSQLite, DSN: "x.db"}},
		{name: "missing dsn", cfg: Config{Driver: DriverPostgres, Logger: &mockLogger{}}},
		{name: "unknown driver", cfg: Config{Driver: "mysql", DSN: "x", Logger: &mockLogger{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg)
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
		})
	}
}

func TestRepository_SQLiteRoundTrip(t *testing.T) {
	repo, err := Open(Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "trades.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	buy := &domain.Trade{
		ID: 100, Side: domain.Buy, EntryTime: base, EntryPrice: 40000, Amount: 0.5,
		Status: domain.StatusOpen, UnrealizedPnL: &domain.PnL{Value: 500, Unit: domain.UnitUSD},
	}
	sell := &domain.Trade{
		ID: 101, Side: domain.Sell, EntryTime: base.Add(time.Second), EntryPrice: 50000, Amount: 0.3,
		Status: domain.StatusOpen, CashValue: floatPtr(15000),
	}
	require.NoError(t, repo.Insert(ctx, buy))
	require.NoError(t, repo.Insert(ctx, sell))
	assert.ErrorIs(t, repo.Insert(ctx, buy), ports.ErrDuplicateEntry)

	trades, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, sell, trades[0])
	assert.Equal(t, buy, trades[1])

	update := domain.TradeUpdate{
		Amount:      0,
		Status:      domain.StatusClosed,
		RealizedPnL: &domain.PnL{Value: -0.0625, Unit: domain.UnitBTC},
	}
	require.NoError(t, repo.Update(ctx, sell.ID, update))

	found, err := repo.FindByID(ctx, sell.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, update, domain.UpdateFrom(found))
	assert.Equal(t, sell.CashValue, found.CashValue)

	require.NoError(t, repo.Delete(ctx, buy.ID))
	assert.ErrorIs(t, repo.Delete(ctx, buy.ID), ports.ErrNotFound)
	missing, err := repo.FindByID(ctx, buy.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
