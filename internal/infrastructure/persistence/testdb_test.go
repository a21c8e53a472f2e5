package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupLedgerTestDB opens an in-memory sqlite database with the ledger schema.
// A single connection keeps every statement on the same in-memory database.
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

// newMockGormDB creates a postgres-dialect GORM handle over sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func createTestWarehouse(t *testing.T, db *gorm.DB, code string) *inventory.Warehouse {
	t.Helper()
	wh, err := inventory.NewWarehouse(code, "Warehouse "+code, "", "")
	require.NoError(t, err)
	require.NoError(t, NewGormWarehouseRepository(db).Create(context.Background(), wh))
	return wh
}

func createTestItem(t *testing.T, db *gorm.DB, sku string, warehouseID uuid.UUID, onHand int64) *inventory.Item {
	t.Helper()
	item, err := inventory.NewItem(sku, "Item "+sku, "", warehouseID, 5, decimal.NewFromInt(2))
	require.NoError(t, err)
	item.QuantityOnHand = onHand
	require.NoError(t, NewGormItemRepository(db).Create(context.Background(), item))
	return item
}
