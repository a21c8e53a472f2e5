// Package audit turns committed ledger events into audit log entries.
package audit

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/domain/audit"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler subscribes to inventory events and writes one audit entry per event.
// It runs after the ledger transaction has committed; a failure here is
// returned to the bus or outbox for retry and never reaches the caller of the
// ledger operation.
type Handler struct {
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewHandler creates a new audit Handler
func NewHandler(recorder audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{recorder: recorder, logger: logger}
}

// Name identifies the handler in idempotency keys
func (h *Handler) Name() string {
	return "audit"
}

// EventTypes returns every inventory event type
func (h *Handler) EventTypes() []string {
	return inventory.AllEventTypes()
}

// Handle maps the event to an audit entry and records it
func (h *Handler) Handle(ctx context.Context, event shared.DomainEvent) error {
	entry, ok, err := EntryFor(event)
	if err != nil {
		return fmt.Errorf("build audit entry for %s: %w", event.EventType(), err)
	}
	if !ok {
		h.logger.Debug("No audit mapping for event", zap.String("event_type", event.EventType()))
		return nil
	}

	if err := h.recorder.Record(ctx, entry); err != nil {
		h.logger.Warn("Failed to record audit entry",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

type statusState struct {
	Status inventory.StocktakeStatus `json:"status"`
}

type countState struct {
	LineNo   int       `json:"line_no"`
	ItemID   uuid.UUID `json:"item_id"`
	Counted  int64     `json:"counted"`
	Variance *int64    `json:"variance,omitempty"`
}

type transferState struct {
	Source      inventory.ItemSnapshot  `json:"source"`
	Destination *inventory.ItemSnapshot `json:"destination"`
}

// EntryFor builds the audit entry for an event. ok is false for event types
// that are not audited.
func EntryFor(event shared.DomainEvent) (entry audit.Entry, ok bool, err error) {
	switch e := event.(type) {
	case *inventory.ItemCreatedEvent:
		entry, err = audit.NewEntry(e.CreatedBy, audit.ActionCreate, inventory.AggregateTypeItem, e.Item.ID,
			nil, e.Item, "")

	case *inventory.StockMovementRecordedEvent:
		entry, err = audit.NewEntry(e.PerformedBy, audit.ActionStockMovement, inventory.AggregateTypeItem, e.ItemID,
			e.Before, e.After, fmt.Sprintf("%s %d %s", e.Type, e.Quantity, e.Reference))

	case *inventory.StockTransferredEvent:
		after := e.DestinationAfter
		entry, err = audit.NewEntry(e.PerformedBy, audit.ActionStockTransfer, inventory.AggregateTypeItem, e.SourceBefore.ID,
			transferState{Source: e.SourceBefore, Destination: e.DestinationBefore},
			transferState{Source: e.SourceAfter, Destination: &after},
			e.Reference)

	case *inventory.StocktakeCreatedEvent:
		entry, err = audit.NewEntry(e.CreatedBy, audit.ActionCreate, inventory.AggregateTypeStocktake, e.StocktakeID,
			nil, statusState{Status: inventory.StocktakeStatusPlanned}, e.Reference)

	case *inventory.StocktakeStartedEvent:
		entry, err = audit.NewEntry(e.StartedBy, audit.ActionStatusChange, inventory.AggregateTypeStocktake, e.StocktakeID,
			statusState{Status: inventory.StocktakeStatusPlanned},
			statusState{Status: inventory.StocktakeStatusInProgress}, e.Reference)

	case *inventory.StocktakeCountRecordedEvent:
		variance := e.Variance
		entry, err = audit.NewEntry(e.RecordedBy, audit.ActionCountCorrected, inventory.AggregateTypeStocktake, e.StocktakeID,
			countState{LineNo: e.LineNo, ItemID: e.ItemID, Counted: e.PreviousCounted},
			countState{LineNo: e.LineNo, ItemID: e.ItemID, Counted: e.Counted, Variance: &variance}, "")

	case *inventory.StocktakeCompletedEvent:
		entry, err = audit.NewEntry(e.ApprovedBy, audit.ActionStatusChange, inventory.AggregateTypeStocktake, e.StocktakeID,
			statusState{Status: e.FromStatus}, statusState{Status: e.ToStatus},
			fmt.Sprintf("%d adjustments, net variance %d", e.AdjustmentCount, e.TotalVariance))

	case *inventory.StocktakeCancelledEvent:
		entry, err = audit.NewEntry(e.CancelledBy, audit.ActionStatusChange, inventory.AggregateTypeStocktake, e.StocktakeID,
			statusState{Status: e.FromStatus}, statusState{Status: inventory.StocktakeStatusCancelled}, e.Reason)

	default:
		return audit.Entry{}, false, nil
	}
	if err != nil {
		return audit.Entry{}, false, err
	}

	entry.EventID = event.EventID()
	entry.OccurredAt = event.OccurredAt()
	return entry, true, nil
}

var _ shared.EventHandler = (*Handler)(nil)
