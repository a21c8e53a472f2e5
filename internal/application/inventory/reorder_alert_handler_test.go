package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockReorderAlertNotifier struct {
	mock.Mock
}

func (m *MockReorderAlertNotifier) SendAlert(ctx context.Context, alert ReorderAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func movementEvent(t *testing.T, onHand, reorder, outbound int64) *inventory.StockMovementRecordedEvent {
	t.Helper()
	store := newMemoryStore()
	wh := store.seedWarehouse("WH-A")
	item := store.seedItem("SKU-1", wh.ID, onHand)
	item.ReorderLevel = reorder
	before := item.Snapshot()
	b, a, err := item.ApplyMovement(inventory.MovementTypeOutbound, outbound)
	require.NoError(t, err)
	m, err := inventory.NewStockMovement(item.ID, wh.ID, inventory.MovementTypeOutbound, outbound, "SO-1", uuid.New(), b, a)
	require.NoError(t, err)
	return inventory.NewStockMovementRecordedEvent(m, before, item.Snapshot())
}

func TestReorderAlertHandler_AlertsOnCrossing(t *testing.T) {
	notifier := new(MockReorderAlertNotifier)
	notifier.On("SendAlert", mock.Anything, mock.MatchedBy(func(a ReorderAlert) bool {
		return a.AlertType == AlertTypeLowStock && a.QuantityOnHand == 4 && a.ReorderLevel == 5
	})).Return(nil).Once()

	handler := NewReorderAlertHandler(zap.NewNop()).WithNotifier(notifier)
	require.NoError(t, handler.Handle(context.Background(), movementEvent(t, 10, 5, 6)))
	notifier.AssertExpectations(t)
}

func TestReorderAlertHandler_OutOfStock(t *testing.T) {
	notifier := new(MockReorderAlertNotifier)
	notifier.On("SendAlert", mock.Anything, mock.MatchedBy(func(a ReorderAlert) bool {
		return a.AlertType == AlertTypeOutOfStock
	})).Return(errors.New("smtp down")).Once()

	core, logs := observer.New(zap.ErrorLevel)
	handler := NewReorderAlertHandler(zap.New(core)).WithNotifier(notifier)

	require.NoError(t, handler.Handle(context.Background(), movementEvent(t, 3, 1, 3)))
	notifier.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("Failed to send reorder alert").Len())
}

func TestReorderAlertHandler_NoAlertWhenAlreadyBelow(t *testing.T) {
	notifier := new(MockReorderAlertNotifier)
	handler := NewReorderAlertHandler(nil).WithNotifier(notifier)

	require.NoError(t, handler.Handle(context.Background(), movementEvent(t, 4, 5, 1)))
	require.NoError(t, handler.Handle(context.Background(), movementEvent(t, 20, 5, 1)))
	notifier.AssertNotCalled(t, "SendAlert", mock.Anything, mock.Anything)
}
