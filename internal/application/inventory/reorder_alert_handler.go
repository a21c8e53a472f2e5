package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types raised by ReorderAlertHandler
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
)

// ReorderAlert describes an item that crossed its reorder level
type ReorderAlert struct {
	ItemID         string `json:"item_id"`
	SKU            string `json:"sku"`
	WarehouseID    string `json:"warehouse_id"`
	QuantityOnHand int64  `json:"quantity_on_hand"`
	ReorderLevel   int64  `json:"reorder_level"`
	AlertType      string `json:"alert_type"`
	Reference      string `json:"reference"`
}

// ReorderAlertNotifier delivers reorder alerts
type ReorderAlertNotifier interface {
	SendAlert(ctx context.Context, alert ReorderAlert) error
}

// ReorderAlertHandler watches ledger movements and raises an alert the first
// time an item drops to or below its reorder level.
type ReorderAlertHandler struct {
	logger   *zap.Logger
	notifier ReorderAlertNotifier
}

// NewReorderAlertHandler creates a new handler; without a notifier alerts are only logged
func NewReorderAlertHandler(logger *zap.Logger) *ReorderAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReorderAlertHandler{logger: logger}
}

// WithNotifier sets the notifier for sending alerts
func (h *ReorderAlertHandler) WithNotifier(notifier ReorderAlertNotifier) *ReorderAlertHandler {
	h.notifier = notifier
	return h
}

// Name keys the handler's idempotency records
func (h *ReorderAlertHandler) Name() string { return "reorder_alerts" }

// EventTypes returns the event types this handler is interested in
func (h *ReorderAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockMovementRecorded, inventory.EventTypeStockTransferred}
}

// Handle inspects the item state after the movement
func (h *ReorderAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *inventory.StockMovementRecordedEvent:
		h.check(ctx, e.Before, e.After, e.Reference)
	case *inventory.StockTransferredEvent:
		h.check(ctx, e.SourceBefore, e.SourceAfter, e.Reference)
	}
	return nil
}

func (h *ReorderAlertHandler) check(ctx context.Context, before, after inventory.ItemSnapshot, reference string) {
	// Alert only on the crossing so a stream of small issues does not repeat it.
	if after.QuantityOnHand > after.ReorderLevel || before.QuantityOnHand <= before.ReorderLevel {
		return
	}

	alert := ReorderAlert{
		ItemID:         after.ID.String(),
		SKU:            after.SKU,
		WarehouseID:    after.WarehouseID.String(),
		QuantityOnHand: after.QuantityOnHand,
		ReorderLevel:   after.ReorderLevel,
		AlertType:      AlertTypeLowStock,
		Reference:      reference,
	}
	if after.QuantityOnHand == 0 {
		alert.AlertType = AlertTypeOutOfStock
	}

	h.logger.Warn("Item reached reorder level",
		zap.String("item_id", alert.ItemID),
		zap.String("sku", alert.SKU),
		zap.String("warehouse_id", alert.WarehouseID),
		zap.Int64("quantity_on_hand", alert.QuantityOnHand),
		zap.Int64("reorder_level", alert.ReorderLevel),
		zap.String("alert_type", alert.AlertType),
	)

	if h.notifier == nil {
		return
	}
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		// notification failure does not fail event handling
		h.logger.Error("Failed to send reorder alert",
			zap.String("item_id", alert.ItemID),
			zap.Error(err),
		)
	}
}

var _ shared.EventHandler = (*ReorderAlertHandler)(nil)
