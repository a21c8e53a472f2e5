package inventory

import (
	"context"
	"strings"
	"testing"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stocktakeFixture struct {
	store     *memoryStore
	service   *StocktakeService
	publisher *MockEventPublisher
	warehouse *inventory.Warehouse
	actor     uuid.UUID
}

func newStocktakeFixture() *stocktakeFixture {
	store := newMemoryStore()
	ledger := newTestLedger(store)
	publisher := NewMockEventPublisher()
	service := NewStocktakeService(store, store.StocktakeRepo(), ledger, nil)
	service.SetEventPublisher(publisher)
	return &stocktakeFixture{
		store:     store,
		service:   service,
		publisher: publisher,
		warehouse: store.seedWarehouse("WH-A"),
		actor:     uuid.New(),
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestStocktakeService_FullLifecycle(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	item := f.store.seedItem("SKU-1", f.warehouse.ID, 100)

	created, err := f.service.Create(ctx, CreateStocktakeRequest{
		Reference:   "ST-1",
		WarehouseID: f.warehouse.ID,
		Lines:       []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 95}},
	}, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "PLANNED", created.Status)
	require.Len(t, created.Lines, 1)
	assert.Equal(t, int64(100), created.Lines[0].ExpectedQuantity, "expected defaults to quantity on hand")
	assert.Equal(t, int64(-5), created.Lines[0].Variance)

	started, err := f.service.Start(ctx, created.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", started.Status)
	assert.NotNil(t, started.StartedAt)

	completed, err := f.service.Complete(ctx, created.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", completed.Stocktake.Status)
	require.Len(t, completed.Adjustments, 1)
	adj := completed.Adjustments[0]
	assert.Equal(t, "OUTBOUND", adj.Type)
	assert.Equal(t, int64(5), adj.Quantity)
	assert.Equal(t, "STOCKTAKE:ST-1", adj.Reference)
	assert.Equal(t, int64(95), f.store.item(item.ID).QuantityOnHand)

	assert.Len(t, f.publisher.GetEventsByType(inventory.EventTypeStocktakeCompleted), 1)
	assert.Len(t, f.publisher.GetEventsByType(inventory.EventTypeStockMovementRecorded), 1)

	// a second completion is rejected and books nothing
	_, err = f.service.Complete(ctx, created.ID, f.actor)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, int64(95), f.store.item(item.ID).QuantityOnHand)
	assert.Len(t, f.store.movementsByReference("STOCKTAKE:ST-1"), 1)
}

func TestStocktakeService_Complete_NoVarianceProducesNoMovements(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	item := f.store.seedItem("SKU-1", f.warehouse.ID, 20)

	created, err := f.service.Create(ctx, CreateStocktakeRequest{
		Reference: "ST-2", WarehouseID: f.warehouse.ID,
		Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 20}},
	}, f.actor)
	require.NoError(t, err)
	_, err = f.service.Start(ctx, created.ID, f.actor)
	require.NoError(t, err)

	completed, err := f.service.Complete(ctx, created.ID, f.actor)
	require.NoError(t, err)
	assert.Empty(t, completed.Adjustments)
	assert.Equal(t, "COMPLETED", completed.Stocktake.Status)
	assert.Equal(t, int64(20), f.store.item(item.ID).QuantityOnHand)
}

func TestStocktakeService_Complete_FromPlannedRejected(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	item := f.store.seedItem("SKU-1", f.warehouse.ID, 10)

	created, err := f.service.Create(ctx, CreateStocktakeRequest{
		Reference: "ST-3", WarehouseID: f.warehouse.ID,
		Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 8}},
	}, f.actor)
	require.NoError(t, err)

	_, err = f.service.Complete(ctx, created.ID, f.actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, int64(10), f.store.item(item.ID).QuantityOnHand)
}

func TestStocktakeService_Complete_AdjustmentFailureRollsBackEverything(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	gain := f.store.seedItem("SKU-GAIN", f.warehouse.ID, 5)
	loss := f.store.seedItem("SKU-LOSS", f.warehouse.ID, 3)

	created, err := f.service.Create(ctx, CreateStocktakeRequest{
		Reference:   "ST-4",
		WarehouseID: f.warehouse.ID,
		Lines: []StocktakeLineRequest{
			{ItemID: gain.ID, CountedQuantity: 7},
			// expected overstated so the outbound adjustment exceeds stock on hand
			{ItemID: loss.ID, ExpectedQuantity: int64Ptr(10), CountedQuantity: 2},
		},
	}, f.actor)
	require.NoError(t, err)
	_, err = f.service.Start(ctx, created.ID, f.actor)
	require.NoError(t, err)

	_, err = f.service.Complete(ctx, created.ID, f.actor)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	assert.Equal(t, int64(5), f.store.item(gain.ID).QuantityOnHand)
	assert.Equal(t, int64(3), f.store.item(loss.ID).QuantityOnHand)
	assert.Empty(t, f.store.movementsByReference("STOCKTAKE:ST-4"))

	current, err := f.service.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", current.Status)
}

func TestStocktakeService_Create_Validation(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	item := f.store.seedItem("SKU-1", f.warehouse.ID, 10)
	other := f.store.seedWarehouse("WH-B")
	foreign := f.store.seedItem("SKU-2", other.ID, 10)

	_, err := f.service.Create(ctx, CreateStocktakeRequest{
		Reference: "ST-5", WarehouseID: f.warehouse.ID,
		Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 10}},
	}, f.actor)
	require.NoError(t, err)

	t.Run("duplicate reference", func(t *testing.T) {
		_, err := f.service.Create(ctx, CreateStocktakeRequest{
			Reference: "ST-5", WarehouseID: f.warehouse.ID,
			Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 10}},
		}, f.actor)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("reference longer than the stocktake column", func(t *testing.T) {
		ref := strings.Repeat("S", inventory.MaxStocktakeReferenceLength+1)
		_, err := f.service.Create(ctx, CreateStocktakeRequest{
			Reference: ref, WarehouseID: f.warehouse.ID,
			Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 10}},
		}, f.actor)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		exists, err := f.store.StocktakeRepo().ExistsByReference(ctx, ref)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("unknown warehouse", func(t *testing.T) {
		_, err := f.service.Create(ctx, CreateStocktakeRequest{
			Reference: "ST-6", WarehouseID: uuid.New(),
			Lines: []StocktakeLineRequest{{ItemID: item.ID}},
		}, f.actor)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("item from another warehouse", func(t *testing.T) {
		_, err := f.service.Create(ctx, CreateStocktakeRequest{
			Reference: "ST-7", WarehouseID: f.warehouse.ID,
			Lines: []StocktakeLineRequest{{ItemID: foreign.ID}},
		}, f.actor)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate item", func(t *testing.T) {
		_, err := f.service.Create(ctx, CreateStocktakeRequest{
			Reference: "ST-8", WarehouseID: f.warehouse.ID,
			Lines:     []StocktakeLineRequest{{ItemID: item.ID}, {ItemID: item.ID}},
		}, f.actor)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestStocktakeService_UpdateCountAndCancel(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	item := f.store.seedItem("SKU-1", f.warehouse.ID, 10)

	created, err := f.service.Create(ctx, CreateStocktakeRequest{
		Reference: "ST-9", WarehouseID: f.warehouse.ID,
		Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 10}},
	}, f.actor)
	require.NoError(t, err)

	updated, err := f.service.UpdateCount(ctx, created.ID, 1, RecordCountRequest{CountedQuantity: 12, Notes: "found a box"}, f.actor)
	require.NoError(t, err)
	assert.Equal(t, int64(12), updated.Lines[0].CountedQuantity)
	assert.Equal(t, int64(2), updated.Lines[0].Variance)

	_, err = f.service.UpdateCount(ctx, created.ID, 7, RecordCountRequest{CountedQuantity: 1}, f.actor)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	cancelled, err := f.service.Cancel(ctx, created.ID, CancelStocktakeRequest{Reason: "rescheduled"}, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "rescheduled", cancelled.CancelReason)

	_, err = f.service.Start(ctx, created.ID, f.actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.service.UpdateCount(ctx, created.ID, 1, RecordCountRequest{CountedQuantity: 1}, f.actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	assert.Equal(t, int64(10), f.store.item(item.ID).QuantityOnHand)
	assert.Len(t, f.publisher.GetEventsByType(inventory.EventTypeStocktakeCancelled), 1)
}

func TestStocktakeService_List(t *testing.T) {
	f := newStocktakeFixture()
	ctx := context.Background()
	item := f.store.seedItem("SKU-1", f.warehouse.ID, 10)

	for _, ref := range []string{"ST-A", "ST-B"} {
		_, err := f.service.Create(ctx, CreateStocktakeRequest{
			Reference: ref, WarehouseID: f.warehouse.ID,
			Lines: []StocktakeLineRequest{{ItemID: item.ID, CountedQuantity: 10}},
		}, f.actor)
		require.NoError(t, err)
	}

	list, total, err := f.service.List(ctx, StocktakeListFilter{Status: "PLANNED"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	_, _, err = f.service.List(ctx, StocktakeListFilter{Status: "DONE"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
