package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Request DTOs =====================

// CreateWarehouseRequest represents a request to register a warehouse
type CreateWarehouseRequest struct {
	Code        string `json:"code" binding:"required,max=32"`
	Name        string `json:"name" binding:"required,max=200"`
	Location    string `json:"location" binding:"max=500"`
	Description string `json:"description" binding:"max=2000"`
}

// CreateItemRequest represents a request to register an item in a warehouse.
// A positive OpeningQuantity is booked as an INBOUND movement so the ledger stays complete.
type CreateItemRequest struct {
	SKU              string          `json:"sku" binding:"required,max=64"`
	Name             string          `json:"name" binding:"required,max=200"`
	Description      string          `json:"description" binding:"max=2000"`
	WarehouseID      uuid.UUID       `json:"warehouse_id" binding:"required"`
	ReorderLevel     int64           `json:"reorder_level" binding:"gte=0"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	OpeningQuantity  int64           `json:"opening_quantity" binding:"gte=0"`
	OpeningReference string          `json:"opening_reference" binding:"max=100"`
}

// RecordMovementRequest represents a request to record a single ledger movement
type RecordMovementRequest struct {
	ItemID      uuid.UUID `json:"item_id" binding:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" binding:"required"`
	Quantity    int64     `json:"quantity" binding:"required,gt=0"`
	Type        string    `json:"type" binding:"required,movement_type"`
	Reference   string    `json:"reference" binding:"required,max=100"`
}

// TransferRequest represents a request to move stock between warehouses
type TransferRequest struct {
	ItemID          uuid.UUID `json:"item_id" binding:"required"`
	FromWarehouseID uuid.UUID `json:"from_warehouse_id" binding:"required"`
	ToWarehouseID   uuid.UUID `json:"to_warehouse_id" binding:"required"`
	Quantity        int64     `json:"quantity" binding:"required,gt=0"`
	Reference       string    `json:"reference" binding:"required,max=90"`
}

// StocktakeLineRequest is one line of a new stocktake.
// ExpectedQuantity defaults to the item's quantity on hand when omitted.
type StocktakeLineRequest struct {
	ItemID           uuid.UUID `json:"item_id" binding:"required"`
	ExpectedQuantity *int64    `json:"expected_quantity" binding:"omitempty,gte=0"`
	CountedQuantity  int64     `json:"counted_quantity" binding:"gte=0"`
	Notes            string    `json:"notes" binding:"max=500"`
}

// CreateStocktakeRequest represents a request to plan a stocktake
type CreateStocktakeRequest struct {
	Reference     string                 `json:"reference" binding:"required,max=64"`
	WarehouseID   uuid.UUID              `json:"warehouse_id" binding:"required"`
	ScheduledDate *time.Time             `json:"scheduled_date"`
	Notes         string                 `json:"notes" binding:"max=2000"`
	Lines         []StocktakeLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// RecordCountRequest corrects the counted quantity of one line
type RecordCountRequest struct {
	CountedQuantity int64  `json:"counted_quantity" binding:"gte=0"`
	Notes           string `json:"notes" binding:"max=500"`
}

// CancelStocktakeRequest represents a request to cancel a stocktake
type CancelStocktakeRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ItemListFilter represents filter options for the item list
type ItemListFilter struct {
	Search       string     `form:"search"`
	WarehouseID  *uuid.UUID `form:"-"`
	SKU          string     `form:"sku"`
	BelowReorder bool       `form:"below_reorder"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy      string     `form:"order_by"`
	OrderDir     string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// MovementListFilter represents filter options for the movement list
type MovementListFilter struct {
	ItemID      *uuid.UUID `form:"-"`
	WarehouseID *uuid.UUID `form:"-"`
	Reference   string     `form:"reference"`
	Type        string     `form:"type" binding:"omitempty,oneof=INBOUND OUTBOUND"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// StocktakeListFilter represents filter options for the stocktake list
type StocktakeListFilter struct {
	Search      string     `form:"search"`
	WarehouseID *uuid.UUID `form:"-"`
	Status      string     `form:"status" binding:"omitempty,oneof=PLANNED IN_PROGRESS COMPLETED CANCELLED"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// WarehouseListFilter represents filter options for the warehouse list
type WarehouseListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ===================== Response DTOs =====================

// WarehouseResponse represents a warehouse in API responses
type WarehouseResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemResponse represents an item in API responses
type ItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	QuantityOnHand    int64           `json:"quantity_on_hand"`
	ReorderLevel      int64           `json:"reorder_level"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	StockValue        decimal.Decimal `json:"stock_value"`
	BelowReorderLevel bool            `json:"below_reorder_level"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MovementResponse represents a ledger movement in API responses
type MovementResponse struct {
	ID            uuid.UUID  `json:"id"`
	ItemID        uuid.UUID  `json:"item_id"`
	WarehouseID   uuid.UUID  `json:"warehouse_id"`
	Quantity      int64      `json:"quantity"`
	Type          string     `json:"type"`
	Reference     string     `json:"reference"`
	PerformedBy   uuid.UUID  `json:"performed_by"`
	BalanceBefore int64      `json:"balance_before"`
	BalanceAfter  int64      `json:"balance_after"`
	TransferID    *uuid.UUID `json:"transfer_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TransferResponse holds both legs of a transfer
type TransferResponse struct {
	TransferID uuid.UUID        `json:"transfer_id"`
	Outbound   MovementResponse `json:"outbound"`
	Inbound    MovementResponse `json:"inbound"`
}

// BalanceCheckResponse compares an item's stored quantity with the sum of its ledger
type BalanceCheckResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	QuantityOnHand int64     `json:"quantity_on_hand"`
	LedgerBalance  int64     `json:"ledger_balance"`
	Consistent     bool      `json:"consistent"`
}

// StocktakeLineResponse represents a stocktake line in API responses
type StocktakeLineResponse struct {
	LineNo           int             `json:"line_no"`
	ItemID           uuid.UUID       `json:"item_id"`
	ItemSKU          string          `json:"item_sku"`
	ItemName         string          `json:"item_name"`
	ExpectedQuantity int64           `json:"expected_quantity"`
	CountedQuantity  int64           `json:"counted_quantity"`
	Variance         int64           `json:"variance"`
	VarianceValue    decimal.Decimal `json:"variance_value"`
	Notes            string          `json:"notes"`
}

// StocktakeResponse represents a stocktake with its lines
type StocktakeResponse struct {
	ID                 uuid.UUID               `json:"id"`
	Reference          string                  `json:"reference"`
	WarehouseID        uuid.UUID               `json:"warehouse_id"`
	Status             string                  `json:"status"`
	ScheduledDate      time.Time               `json:"scheduled_date"`
	StartedAt          *time.Time              `json:"started_at,omitempty"`
	CompletedAt        *time.Time              `json:"completed_at,omitempty"`
	CancelledAt        *time.Time              `json:"cancelled_at,omitempty"`
	Notes              string                  `json:"notes"`
	CreatedBy          uuid.UUID               `json:"created_by"`
	ApprovedBy         *uuid.UUID              `json:"approved_by,omitempty"`
	CancelReason       string                  `json:"cancel_reason,omitempty"`
	TotalVariance      int64                   `json:"total_variance"`
	TotalVarianceValue decimal.Decimal         `json:"total_variance_value"`
	Lines              []StocktakeLineResponse `json:"lines"`
	Version            int                     `json:"version"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// StocktakeListResponse represents a stocktake in list responses
type StocktakeListResponse struct {
	ID            uuid.UUID  `json:"id"`
	Reference     string     `json:"reference"`
	WarehouseID   uuid.UUID  `json:"warehouse_id"`
	Status        string     `json:"status"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CompleteStocktakeResponse is the completed stocktake with the adjustments it booked
type CompleteStocktakeResponse struct {
	Stocktake   StocktakeResponse  `json:"stocktake"`
	Adjustments []MovementResponse `json:"adjustments"`
}

// ===================== Mappers =====================

// ToWarehouseResponse converts a domain Warehouse to WarehouseResponse
func ToWarehouseResponse(w *inventory.Warehouse) WarehouseResponse {
	return WarehouseResponse{
		ID:          w.ID,
		Code:        w.Code,
		Name:        w.Name,
		Location:    w.Location,
		Description: w.Description,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// ToItemResponse converts a domain Item to ItemResponse
func ToItemResponse(item *inventory.Item) ItemResponse {
	return ItemResponse{
		ID:                item.ID,
		SKU:               item.SKU,
		Name:              item.Name,
		Description:       item.Description,
		WarehouseID:       item.WarehouseID,
		QuantityOnHand:    item.QuantityOnHand,
		ReorderLevel:      item.ReorderLevel,
		UnitCost:          item.UnitCost,
		StockValue:        item.StockValue(),
		BelowReorderLevel: item.IsBelowReorderLevel(),
		Version:           item.Version,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

// ToMovementResponse converts a domain StockMovement to MovementResponse
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		WarehouseID:   m.WarehouseID,
		Quantity:      m.Quantity,
		Type:          m.Type.String(),
		Reference:     m.Reference,
		PerformedBy:   m.PerformedBy,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		TransferID:    m.TransferID,
		CreatedAt:     m.CreatedAt,
	}
}

// ToMovementResponses converts a slice of movements
func ToMovementResponses(movements []inventory.StockMovement) []MovementResponse {
	responses := make([]MovementResponse, len(movements))
	for i := range movements {
		responses[i] = ToMovementResponse(&movements[i])
	}
	return responses
}

// ToStocktakeResponse converts a domain Stocktake to StocktakeResponse
func ToStocktakeResponse(st *inventory.Stocktake) StocktakeResponse {
	lines := make([]StocktakeLineResponse, len(st.Lines))
	for i := range st.Lines {
		l := &st.Lines[i]
		lines[i] = StocktakeLineResponse{
			LineNo:           l.LineNo,
			ItemID:           l.ItemID,
			ItemSKU:          l.ItemSKU,
			ItemName:         l.ItemName,
			ExpectedQuantity: l.ExpectedQuantity,
			CountedQuantity:  l.CountedQuantity,
			Variance:         l.Variance,
			VarianceValue:    l.VarianceValue(),
			Notes:            l.Notes,
		}
	}
	return StocktakeResponse{
		ID:                 st.ID,
		Reference:          st.Reference,
		WarehouseID:        st.WarehouseID,
		Status:             st.Status.String(),
		ScheduledDate:      st.ScheduledDate,
		StartedAt:          st.StartedAt,
		CompletedAt:        st.CompletedAt,
		CancelledAt:        st.CancelledAt,
		Notes:              st.Notes,
		CreatedBy:          st.CreatedBy,
		ApprovedBy:         st.ApprovedBy,
		CancelReason:       st.CancelReason,
		TotalVariance:      st.TotalVariance(),
		TotalVarianceValue: st.TotalVarianceValue(),
		Lines:              lines,
		Version:            st.Version,
		CreatedAt:          st.CreatedAt,
		UpdatedAt:          st.UpdatedAt,
	}
}

// ToStocktakeListResponses converts stocktakes to list responses
func ToStocktakeListResponses(sts []inventory.Stocktake) []StocktakeListResponse {
	responses := make([]StocktakeListResponse, len(sts))
	for i := range sts {
		responses[i] = StocktakeListResponse{
			ID:            sts[i].ID,
			Reference:     sts[i].Reference,
			WarehouseID:   sts[i].WarehouseID,
			Status:        sts[i].Status.String(),
			ScheduledDate: sts[i].ScheduledDate,
			CompletedAt:   sts[i].CompletedAt,
			CreatedAt:     sts[i].CreatedAt,
		}
	}
	return responses
}

func pageOrDefault(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
