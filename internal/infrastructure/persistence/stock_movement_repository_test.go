package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMovement(t *testing.T, item *inventory.Item, mt inventory.MovementType, qty int64, ref string) *inventory.StockMovement {
	t.Helper()
	before, after, err := item.ApplyMovement(mt, qty)
	require.NoError(t, err)
	m, err := inventory.NewStockMovement(item.ID, item.WarehouseID, mt, qty, ref, uuid.New(), before, after)
	require.NoError(t, err)
	return m
}

func TestGormStockMovementRepository_AppendAndRead(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormStockMovementRepository(db)
	ctx := context.Background()
	wh := createTestWarehouse(t, db, "WH-A")
	item := createTestItem(t, db, "SKU-1", wh.ID, 0)

	in := newTestMovement(t, item, inventory.MovementTypeInbound, 10, "PO-1")
	out := newTestMovement(t, item, inventory.MovementTypeOutbound, 3, "SO-1")
	require.NoError(t, repo.Create(ctx, in))
	require.NoError(t, repo.Create(ctx, out))

	t.Run("find by id round trips balances", func(t *testing.T) {
		found, err := repo.FindByID(ctx, out.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.MovementTypeOutbound, found.Type)
		assert.Equal(t, int64(10), found.BalanceBefore)
		assert.Equal(t, int64(7), found.BalanceAfter)
		assert.Nil(t, found.TransferID)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("sum of signed quantities matches the balance", func(t *testing.T) {
		sum, err := repo.SumByItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), sum)

		empty, err := repo.SumByItem(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, empty)
	})

	t.Run("filters by type and reference", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters[inventory.FilterMovementType] = inventory.MovementTypeInbound

		rows, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rows, 1)
		assert.Equal(t, "PO-1", rows[0].Reference)

		filter = shared.DefaultFilter()
		filter.Filters[inventory.FilterReference] = "SO-1"
		filter.Filters[inventory.FilterItemID] = item.ID
		rows, _, err = repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, out.ID, rows[0].ID)
	})

	t.Run("filters by date range", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters[inventory.FilterFrom] = time.Now().Add(time.Hour)

		rows, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, rows)
	})
}

func TestGormStockMovementRepository_TransferPair(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormStockMovementRepository(db)
	ctx := context.Background()
	whA := createTestWarehouse(t, db, "WH-A")
	whB := createTestWarehouse(t, db, "WH-B")
	source := createTestItem(t, db, "SKU-1", whA.ID, 10)
	dest := createTestItem(t, db, "SKU-1", whB.ID, 0)

	ref := inventory.TransferReference("T-1")
	transferID := uuid.New()
	out := newTestMovement(t, source, inventory.MovementTypeOutbound, 4, ref).WithTransferID(transferID)
	in := newTestMovement(t, dest, inventory.MovementTypeInbound, 4, ref).WithTransferID(transferID)
	in.CreatedAt = out.CreatedAt

	require.NoError(t, repo.CreateBatch(ctx, []*inventory.StockMovement{out, in}))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	rows, err := repo.FindByReference(ctx, "TRANSFER:T-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, inventory.MovementTypeOutbound, rows[0].Type)
	assert.Equal(t, inventory.MovementTypeInbound, rows[1].Type)
	for _, row := range rows {
		require.NotNil(t, row.TransferID)
		assert.Equal(t, transferID, *row.TransferID)
		assert.True(t, row.IsTransferLeg())
	}

	none, err := repo.FindByReference(ctx, "T-1")
	require.NoError(t, err)
	assert.Empty(t, none)
}
