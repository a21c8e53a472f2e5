package inventory

import (
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeItemCreated            = "ItemCreated"
	EventTypeStockMovementRecorded  = "StockMovementRecorded"
	EventTypeStockTransferred       = "StockTransferred"
	EventTypeStocktakeCreated       = "StocktakeCreated"
	EventTypeStocktakeStarted       = "StocktakeStarted"
	EventTypeStocktakeCountRecorded = "StocktakeCountRecorded"
	EventTypeStocktakeCompleted     = "StocktakeCompleted"
	EventTypeStocktakeCancelled     = "StocktakeCancelled"
)

// AllEventTypes lists every event type raised by the inventory domain
func AllEventTypes() []string {
	return []string{
		EventTypeItemCreated,
		EventTypeStockMovementRecorded,
		EventTypeStockTransferred,
		EventTypeStocktakeCreated,
		EventTypeStocktakeStarted,
		EventTypeStocktakeCountRecorded,
		EventTypeStocktakeCompleted,
		EventTypeStocktakeCancelled,
	}
}

// ItemCreatedEvent is raised when an item row is registered through the catalog
type ItemCreatedEvent struct {
	shared.BaseDomainEvent
	Item      ItemSnapshot `json:"item"`
	CreatedBy uuid.UUID    `json:"created_by"`
}

// NewItemCreatedEvent creates a new ItemCreatedEvent
func NewItemCreatedEvent(item *Item, createdBy uuid.UUID) *ItemCreatedEvent {
	return &ItemCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemCreated, AggregateTypeItem, item.ID),
		Item:            item.Snapshot(),
		CreatedBy:       createdBy,
	}
}

// StockMovementRecordedEvent carries one ledger entry and the item state around it
type StockMovementRecordedEvent struct {
	shared.BaseDomainEvent
	MovementID  uuid.UUID    `json:"movement_id"`
	ItemID      uuid.UUID    `json:"item_id"`
	WarehouseID uuid.UUID    `json:"warehouse_id"`
	Type        MovementType `json:"movement_type"`
	Quantity    int64        `json:"quantity"`
	Reference   string       `json:"reference"`
	PerformedBy uuid.UUID    `json:"performed_by"`
	Before      ItemSnapshot `json:"before"`
	After       ItemSnapshot `json:"after"`
}

// NewStockMovementRecordedEvent creates a new StockMovementRecordedEvent
func NewStockMovementRecordedEvent(m *StockMovement, before, after ItemSnapshot) *StockMovementRecordedEvent {
	return &StockMovementRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockMovementRecorded, AggregateTypeItem, m.ItemID),
		MovementID:      m.ID,
		ItemID:          m.ItemID,
		WarehouseID:     m.WarehouseID,
		Type:            m.Type,
		Quantity:        m.Quantity,
		Reference:       m.Reference,
		PerformedBy:     m.PerformedBy,
		Before:          before,
		After:           after,
	}
}

// StockTransferredEvent is the single audit record of a transfer.
// DestinationBefore is nil when the destination row was created by the transfer.
type StockTransferredEvent struct {
	shared.BaseDomainEvent
	TransferID         uuid.UUID     `json:"transfer_id"`
	Reference          string        `json:"reference"`
	Quantity           int64         `json:"quantity"`
	PerformedBy        uuid.UUID     `json:"performed_by"`
	FromWarehouseID    uuid.UUID     `json:"from_warehouse_id"`
	ToWarehouseID      uuid.UUID     `json:"to_warehouse_id"`
	OutboundMovementID uuid.UUID     `json:"outbound_movement_id"`
	InboundMovementID  uuid.UUID     `json:"inbound_movement_id"`
	SourceBefore       ItemSnapshot  `json:"source_before"`
	SourceAfter        ItemSnapshot  `json:"source_after"`
	DestinationBefore  *ItemSnapshot `json:"destination_before,omitempty"`
	DestinationAfter   ItemSnapshot  `json:"destination_after"`
	DestinationCreated bool          `json:"destination_created"`
}

// NewStockTransferredEvent creates a new StockTransferredEvent
func NewStockTransferredEvent(
	transferID uuid.UUID,
	outbound, inbound *StockMovement,
	sourceBefore, sourceAfter ItemSnapshot,
	destinationBefore *ItemSnapshot,
	destinationAfter ItemSnapshot,
) *StockTransferredEvent {
	return &StockTransferredEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeStockTransferred, AggregateTypeItem, outbound.ItemID),
		TransferID:         transferID,
		Reference:          outbound.Reference,
		Quantity:           outbound.Quantity,
		PerformedBy:        outbound.PerformedBy,
		FromWarehouseID:    outbound.WarehouseID,
		ToWarehouseID:      inbound.WarehouseID,
		OutboundMovementID: outbound.ID,
		InboundMovementID:  inbound.ID,
		SourceBefore:       sourceBefore,
		SourceAfter:        sourceAfter,
		DestinationBefore:  destinationBefore,
		DestinationAfter:   destinationAfter,
		DestinationCreated: destinationBefore == nil,
	}
}

// StocktakeCreatedEvent is raised when a stocktake is planned
type StocktakeCreatedEvent struct {
	shared.BaseDomainEvent
	StocktakeID uuid.UUID `json:"stocktake_id"`
	Reference   string    `json:"reference"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	LineCount   int       `json:"line_count"`
	CreatedBy   uuid.UUID `json:"created_by"`
}

// NewStocktakeCreatedEvent creates a new StocktakeCreatedEvent
func NewStocktakeCreatedEvent(st *Stocktake) *StocktakeCreatedEvent {
	return &StocktakeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStocktakeCreated, AggregateTypeStocktake, st.ID),
		StocktakeID:     st.ID,
		Reference:       st.Reference,
		WarehouseID:     st.WarehouseID,
		LineCount:       len(st.Lines),
		CreatedBy:       st.CreatedBy,
	}
}

// StocktakeStartedEvent is raised when counting begins
type StocktakeStartedEvent struct {
	shared.BaseDomainEvent
	StocktakeID uuid.UUID `json:"stocktake_id"`
	Reference   string    `json:"reference"`
	StartedBy   uuid.UUID `json:"started_by"`
}

// NewStocktakeStartedEvent creates a new StocktakeStartedEvent
func NewStocktakeStartedEvent(st *Stocktake, actor uuid.UUID) *StocktakeStartedEvent {
	return &StocktakeStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStocktakeStarted, AggregateTypeStocktake, st.ID),
		StocktakeID:     st.ID,
		Reference:       st.Reference,
		StartedBy:       actor,
	}
}

// StocktakeCountRecordedEvent is raised when a line count is corrected
type StocktakeCountRecordedEvent struct {
	shared.BaseDomainEvent
	StocktakeID     uuid.UUID `json:"stocktake_id"`
	LineNo          int       `json:"line_no"`
	ItemID          uuid.UUID `json:"item_id"`
	PreviousCounted int64     `json:"previous_counted"`
	Counted         int64     `json:"counted"`
	Variance        int64     `json:"variance"`
	RecordedBy      uuid.UUID `json:"recorded_by"`
}

// NewStocktakeCountRecordedEvent creates a new StocktakeCountRecordedEvent
func NewStocktakeCountRecordedEvent(st *Stocktake, line *StocktakeLine, previous int64, actor uuid.UUID) *StocktakeCountRecordedEvent {
	return &StocktakeCountRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStocktakeCountRecorded, AggregateTypeStocktake, st.ID),
		StocktakeID:     st.ID,
		LineNo:          line.LineNo,
		ItemID:          line.ItemID,
		PreviousCounted: previous,
		Counted:         line.CountedQuantity,
		Variance:        line.Variance,
		RecordedBy:      actor,
	}
}

// StocktakeCompletedEvent summarizes a completion and the adjustments it produced
type StocktakeCompletedEvent struct {
	shared.BaseDomainEvent
	StocktakeID        uuid.UUID       `json:"stocktake_id"`
	Reference          string          `json:"reference"`
	WarehouseID        uuid.UUID       `json:"warehouse_id"`
	FromStatus         StocktakeStatus `json:"from_status"`
	ToStatus           StocktakeStatus `json:"to_status"`
	AdjustmentCount    int             `json:"adjustment_count"`
	TotalVariance      int64           `json:"total_variance"`
	TotalVarianceValue decimal.Decimal `json:"total_variance_value"`
	ApprovedBy         uuid.UUID       `json:"approved_by"`
}

// NewStocktakeCompletedEvent creates a new StocktakeCompletedEvent
func NewStocktakeCompletedEvent(st *Stocktake, from StocktakeStatus, adjustments int, actor uuid.UUID) *StocktakeCompletedEvent {
	return &StocktakeCompletedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeStocktakeCompleted, AggregateTypeStocktake, st.ID),
		StocktakeID:        st.ID,
		Reference:          st.Reference,
		WarehouseID:        st.WarehouseID,
		FromStatus:         from,
		ToStatus:           st.Status,
		AdjustmentCount:    adjustments,
		TotalVariance:      st.TotalVariance(),
		TotalVarianceValue: st.TotalVarianceValue(),
		ApprovedBy:         actor,
	}
}

// StocktakeCancelledEvent is raised when a stocktake is abandoned
type StocktakeCancelledEvent struct {
	shared.BaseDomainEvent
	StocktakeID uuid.UUID       `json:"stocktake_id"`
	Reference   string          `json:"reference"`
	FromStatus  StocktakeStatus `json:"from_status"`
	Reason      string          `json:"reason"`
	CancelledBy uuid.UUID       `json:"cancelled_by"`
}

// NewStocktakeCancelledEvent creates a new StocktakeCancelledEvent
func NewStocktakeCancelledEvent(st *Stocktake, from StocktakeStatus, actor uuid.UUID) *StocktakeCancelledEvent {
	return &StocktakeCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStocktakeCancelled, AggregateTypeStocktake, st.ID),
		StocktakeID:     st.ID,
		Reference:       st.Reference,
		FromStatus:      from,
		Reason:          st.CancelReason,
		CancelledBy:     actor,
	}
}
