package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormItemRepository_CreateAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormItemRepository(db)
	ctx := context.Background()
	wh := createTestWarehouse(t, db, "WH-A")

	t.Run("finds item by id and by sku", func(t *testing.T) {
		item := createTestItem(t, db, "SKU-1", wh.ID, 10)

		found, err := repo.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "SKU-1", found.SKU)
		assert.Equal(t, int64(10), found.QuantityOnHand)
		assert.True(t, decimal.NewFromInt(2).Equal(found.UnitCost))
		assert.Equal(t, 1, found.Version)

		bySKU, err := repo.FindBySKUAndWarehouse(ctx, "SKU-1", wh.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, bySKU.ID)

		locked, err := repo.FindByIDAndWarehouseForUpdate(ctx, item.ID, wh.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, locked.ID)
	})

	t.Run("item in another warehouse is not found", func(t *testing.T) {
		other := createTestWarehouse(t, db, "WH-B")
		item := createTestItem(t, db, "SKU-2", wh.ID, 0)

		_, err := repo.FindByIDAndWarehouse(ctx, item.ID, other.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		_, err = repo.FindBySKUAndWarehouseForUpdate(ctx, "SKU-2", other.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("duplicate sku in the same warehouse is rejected", func(t *testing.T) {
		createTestItem(t, db, "SKU-DUP", wh.ID, 0)
		dup, err := inventory.NewItem("SKU-DUP", "Other", "", wh.ID, 0, decimal.Zero)
		require.NoError(t, err)

		err = repo.Create(ctx, dup)
		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
	})

	t.Run("missing id returns not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestGormItemRepository_SaveWithLock(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormItemRepository(db)
	ctx := context.Background()
	wh := createTestWarehouse(t, db, "WH-A")
	item := createTestItem(t, db, "SKU-1", wh.ID, 10)

	t.Run("writes when the stored version matches", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, item.ID)
		require.NoError(t, err)
		_, _, err = loaded.ApplyMovement(inventory.MovementTypeOutbound, 4)
		require.NoError(t, err)

		require.NoError(t, repo.SaveWithLock(ctx, loaded))

		reloaded, err := repo.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6), reloaded.QuantityOnHand)
		assert.Equal(t, 2, reloaded.Version)
	})

	t.Run("stale copy gets a concurrency conflict", func(t *testing.T) {
		first, err := repo.FindByID(ctx, item.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, item.ID)
		require.NoError(t, err)

		_, _, err = first.ApplyMovement(inventory.MovementTypeInbound, 1)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, first))

		_, _, err = second.ApplyMovement(inventory.MovementTypeInbound, 1)
		require.NoError(t, err)
		err = repo.SaveWithLock(ctx, second)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))

		reloaded, err := repo.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), reloaded.QuantityOnHand)
	})
}

func TestGormItemRepository_FindAll(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormItemRepository(db)
	ctx := context.Background()
	whA := createTestWarehouse(t, db, "WH-A")
	whB := createTestWarehouse(t, db, "WH-B")

	createTestItem(t, db, "BOLT-1", whA.ID, 100)
	createTestItem(t, db, "BOLT-2", whA.ID, 3) // reorder level is 5
	createTestItem(t, db, "NUT-1", whB.ID, 0)

	t.Run("filters by warehouse", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.OrderBy = "sku"
		filter.OrderDir = "asc"
		filter.Filters[inventory.FilterWarehouseID] = whA.ID

		items, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 2)
		assert.Equal(t, "BOLT-1", items[0].SKU)
	})

	t.Run("filters below reorder level", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters[inventory.FilterBelowReorder] = true

		items, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, item := range items {
			assert.True(t, item.IsBelowReorderLevel())
		}
	})

	t.Run("searches sku and name with pagination", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Search = "BOLT"
		filter.PageSize = 1
		filter.Page = 2
		filter.OrderBy = "sku"
		filter.OrderDir = "asc"

		items, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 1)
		assert.Equal(t, "BOLT-2", items[0].SKU)
	})

	t.Run("unknown sort field falls back to sku", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.OrderBy = "sku; DROP TABLE items"
		filter.OrderDir = "asc"

		items, _, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "BOLT-1", items[0].SKU)
	})
}

func TestGormItemRepository_SQL(t *testing.T) {
	t.Run("locked read issues SELECT ... FOR UPDATE", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormItemRepository(gormDB)

		itemID := uuid.New()
		warehouseID := uuid.New()
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "version", "sku", "name", "description",
			"warehouse_id", "quantity_on_hand", "reorder_level", "unit_cost",
		}).AddRow(
			itemID.String(), now, now, 3, "SKU-1", "Bolt", "",
			warehouseID.String(), 42, 5, "1.50",
		)

		mock.ExpectQuery(`SELECT \* FROM "items" WHERE id = \$1 AND warehouse_id = \$2 .*FOR UPDATE`).
			WithArgs(itemID, warehouseID, 1).
			WillReturnRows(rows)

		item, err := repo.FindByIDAndWarehouseForUpdate(context.Background(), itemID, warehouseID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), item.QuantityOnHand)
		assert.Equal(t, 3, item.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update that matches no row is a conflict", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormItemRepository(gormDB)

		item, err := inventory.NewItem("SKU-1", "Bolt", "", uuid.New(), 0, decimal.Zero)
		require.NoError(t, err)
		item.Version = 2

		mock.ExpectExec(`UPDATE "items" SET .*id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), item)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.CodeConcurrencyConflict, domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error is returned unchanged", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormItemRepository(gormDB)

		item, err := inventory.NewItem("SKU-1", "Bolt", "", uuid.New(), 0, decimal.Zero)
		require.NoError(t, err)
		item.Version = 2

		mock.ExpectExec(`UPDATE "items" SET`).WillReturnError(errors.New("connection reset"))

		err = repo.SaveWithLock(context.Background(), item)
		assert.EqualError(t, err, "connection reset")
	})
}
