package inventory

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLedger(store *memoryStore) *StockLedger {
	return NewStockLedger(store, store.ItemRepo(), store.MovementRepo(), nil)
}

func TestStockLedger_RecordMovement_Inbound(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 10)
	publisher := NewMockEventPublisher()
	ledger := newTestLedger(store)
	ledger.SetEventPublisher(publisher)
	actor := uuid.New()

	resp, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID:      item.ID,
		WarehouseID: wh.ID,
		Quantity:    5,
		Type:        "INBOUND",
		Reference:   "PO-1",
	}, actor)

	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.BalanceBefore)
	assert.Equal(t, int64(15), resp.BalanceAfter)
	assert.Equal(t, "INBOUND", resp.Type)
	assert.Equal(t, actor, resp.PerformedBy)
	assert.Equal(t, int64(15), store.item(item.ID).QuantityOnHand)
	assert.Len(t, store.movementsByReference("PO-1"), 1)

	events := publisher.GetEventsByType(inventory.EventTypeStockMovementRecorded)
	require.Len(t, events, 1)
	recorded := events[0].(*inventory.StockMovementRecordedEvent)
	assert.Equal(t, int64(10), recorded.Before.QuantityOnHand)
	assert.Equal(t, int64(15), recorded.After.QuantityOnHand)
}

func TestStockLedger_RecordMovement_OutboundToZero(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 4)
	ledger := newTestLedger(store)

	resp, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID: item.ID, WarehouseID: wh.ID, Quantity: 4, Type: "outbound", Reference: "SO-1",
	}, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.BalanceAfter)
	assert.Equal(t, int64(0), store.item(item.ID).QuantityOnHand)
}

func TestStockLedger_RecordMovement_InsufficientStock(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 3)
	publisher := NewMockEventPublisher()
	ledger := newTestLedger(store)
	ledger.SetEventPublisher(publisher)

	_, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID: item.ID, WarehouseID: wh.ID, Quantity: 5, Type: "OUTBOUND", Reference: "SO-1",
	}, uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	assert.Equal(t, int64(3), store.item(item.ID).QuantityOnHand)
	assert.Empty(t, store.movementsByReference("SO-1"))
	assert.Equal(t, 0, publisher.Count())
}

func TestStockLedger_RecordMovement_Validation(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 3)
	other := store.seedWarehouse("WH-B")
	ledger := newTestLedger(store)

	tests := []struct {
		name    string
		req     RecordMovementRequest
		wantErr error
	}{
		{
			name:    "transfer type rejected",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "TRANSFER", Reference: "X"},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "unknown type rejected",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "ADJUST", Reference: "X"},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "zero quantity rejected",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 0, Type: "INBOUND", Reference: "X"},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "blank reference rejected",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "INBOUND", Reference: "  "},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "reference longer than the ledger column",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "INBOUND", Reference: strings.Repeat("x", inventory.MaxMovementReferenceLength+1)},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "inbound that would overflow quantity on hand",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: math.MaxInt64, Type: "INBOUND", Reference: "X"},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "unknown item",
			req:     RecordMovementRequest{ItemID: uuid.New(), WarehouseID: wh.ID, Quantity: 1, Type: "INBOUND", Reference: "X"},
			wantErr: shared.ErrNotFound,
		},
		{
			name:    "unknown warehouse",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: uuid.New(), Quantity: 1, Type: "INBOUND", Reference: "X"},
			wantErr: shared.ErrNotFound,
		},
		{
			name:    "item held in another warehouse",
			req:     RecordMovementRequest{ItemID: item.ID, WarehouseID: other.ID, Quantity: 1, Type: "INBOUND", Reference: "X"},
			wantErr: shared.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.RecordMovement(context.Background(), tt.req, uuid.New())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int64(3), store.item(item.ID).QuantityOnHand)
		})
	}
}

func TestStockLedger_RecordMovement_MovementInsertFailureRollsBack(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 10)
	store.failMovementCreateAfter = 1
	ledger := newTestLedger(store)

	_, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID: item.ID, WarehouseID: wh.ID, Quantity: 2, Type: "OUTBOUND", Reference: "SO-1",
	}, uuid.New())

	require.Error(t, err)
	stored := store.item(item.ID)
	assert.Equal(t, int64(10), stored.QuantityOnHand)
	assert.Equal(t, 1, stored.Version)
}

func TestStockLedger_RecordMovement_PublishFailureDoesNotFailOperation(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 10)
	publisher := new(FailingEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("audit store down"))
	ledger := newTestLedger(store)
	ledger.SetEventPublisher(publisher)

	resp, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "OUTBOUND", Reference: "SO-1",
	}, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, int64(9), resp.BalanceAfter)
	assert.Equal(t, int64(9), store.item(item.ID).QuantityOnHand)
	publisher.AssertExpectations(t)
}

func TestStockLedger_RecordMovement_StagesEventsInOutbox(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 10)
	stager := new(MockEventStager)
	stager.On("StageEvents", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == inventory.EventTypeStockMovementRecorded
	})).Return(nil).Once()
	store.outbox = stager
	publisher := NewMockEventPublisher()
	ledger := newTestLedger(store)
	ledger.SetEventPublisher(publisher)

	_, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "INBOUND", Reference: "PO-9",
	}, uuid.New())

	require.NoError(t, err)
	stager.AssertExpectations(t)
	assert.Equal(t, 0, publisher.Count(), "staged events must not also be published directly")
}

func TestStockLedger_RecordMovement_OutboxFailureRollsBack(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 10)
	stager := new(MockEventStager)
	stager.On("StageEvents", mock.Anything, mock.Anything).Return(errors.New("outbox insert failed"))
	store.outbox = stager
	ledger := newTestLedger(store)

	_, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
		ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "INBOUND", Reference: "PO-9",
	}, uuid.New())

	require.Error(t, err)
	assert.Equal(t, int64(10), store.item(item.ID).QuantityOnHand)
	assert.Empty(t, store.movementsByReference("PO-9"))
}

func TestStockLedger_ConcurrentOutboundNeverGoesNegative(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 5)
	ledger := newTestLedger(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordMovement(context.Background(), RecordMovementRequest{
				ItemID: item.ID, WarehouseID: wh.ID, Quantity: 1, Type: "OUTBOUND", Reference: "SO-RUSH",
			}, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, shared.ErrInsufficientStock) {
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 7, insufficient)
	assert.Equal(t, int64(0), store.item(item.ID).QuantityOnHand)
	assert.Len(t, store.movementsByReference("SO-RUSH"), 5)
}

func TestStockLedger_VerifyItemBalance(t *testing.T) {
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, 0)
	ledger := newTestLedger(store)
	ctx := context.Background()

	_, err := ledger.RecordMovement(ctx, RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 8, Type: "INBOUND", Reference: "PO-1"}, uuid.New())
	require.NoError(t, err)
	_, err = ledger.RecordMovement(ctx, RecordMovementRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: 3, Type: "OUTBOUND", Reference: "SO-1"}, uuid.New())
	require.NoError(t, err)

	check, err := ledger.VerifyItemBalance(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
	assert.Equal(t, int64(5), check.LedgerBalance)
	assert.Equal(t, int64(5), check.QuantityOnHand)
}

func TestStockLedger_GetMovementsByReference(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(store)

	_, err := ledger.GetMovementsByReference(context.Background(), " ")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	movements, err := ledger.GetMovementsByReference(context.Background(), "TRANSFER:none")
	require.NoError(t, err)
	assert.Empty(t, movements)
}
