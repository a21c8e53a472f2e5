package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WarehouseModel is the persistence model for the Warehouse entity.
type WarehouseModel struct {
	BaseModel
	Code        string `gorm:"type:varchar(32);not null;uniqueIndex:idx_warehouse_code"`
	Name        string `gorm:"type:varchar(200);not null"`
	Location    string `gorm:"type:varchar(500)"`
	Description string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "warehouses"
}

// ToDomain converts the persistence model to a domain Warehouse entity.
func (m *WarehouseModel) ToDomain() *inventory.Warehouse {
	return &inventory.Warehouse{
		BaseEntity:  m.BaseModel.ToDomain(),
		Code:        m.Code,
		Name:        m.Name,
		Location:    m.Location,
		Description: m.Description,
	}
}

// FromDomain populates the persistence model from a domain Warehouse entity.
func (m *WarehouseModel) FromDomain(w *inventory.Warehouse) {
	m.FromDomainBaseEntity(w.BaseEntity)
	m.Code = w.Code
	m.Name = w.Name
	m.Location = w.Location
	m.Description = w.Description
}

// WarehouseModelFromDomain creates a new persistence model from a domain Warehouse entity.
func WarehouseModelFromDomain(w *inventory.Warehouse) *WarehouseModel {
	m := &WarehouseModel{}
	m.FromDomain(w)
	return m
}

// ItemModel is the persistence model for the Item aggregate root.
// One row per sku per warehouse.
type ItemModel struct {
	AggregateModel
	SKU            string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_item_sku_warehouse,priority:1"`
	Name           string          `gorm:"type:varchar(200);not null"`
	Description    string          `gorm:"type:text"`
	WarehouseID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_item_sku_warehouse,priority:2;index:idx_item_warehouse"`
	QuantityOnHand int64           `gorm:"not null;default:0;check:chk_item_quantity_non_negative,quantity_on_hand >= 0"`
	ReorderLevel   int64           `gorm:"not null;default:0"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item aggregate.
func (m *ItemModel) ToDomain() *inventory.Item {
	return &inventory.Item{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SKU:               m.SKU,
		Name:              m.Name,
		Description:       m.Description,
		WarehouseID:       m.WarehouseID,
		QuantityOnHand:    m.QuantityOnHand,
		ReorderLevel:      m.ReorderLevel,
		UnitCost:          m.UnitCost,
	}
}

// FromDomain populates the persistence model from a domain Item aggregate.
func (m *ItemModel) FromDomain(i *inventory.Item) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.SKU = i.SKU
	m.Name = i.Name
	m.Description = i.Description
	m.WarehouseID = i.WarehouseID
	m.QuantityOnHand = i.QuantityOnHand
	m.ReorderLevel = i.ReorderLevel
	m.UnitCost = i.UnitCost
}

// ItemModelFromDomain creates a new persistence model from a domain Item aggregate.
func ItemModelFromDomain(i *inventory.Item) *ItemModel {
	m := &ItemModel{}
	m.FromDomain(i)
	return m
}

// StockMovementModel is the persistence model for a ledger entry.
// Rows are insert-only; there is no UpdatedAt column.
type StockMovementModel struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey"`
	ItemID        uuid.UUID              `gorm:"type:uuid;not null;index:idx_movement_item_time,priority:1"`
	WarehouseID   uuid.UUID              `gorm:"type:uuid;not null;index:idx_movement_warehouse"`
	Quantity      int64                  `gorm:"not null;check:chk_movement_quantity_positive,quantity > 0"`
	Type          inventory.MovementType `gorm:"column:movement_type;type:varchar(20);not null;index:idx_movement_type"`
	Reference     string                 `gorm:"type:varchar(128);not null;index:idx_movement_reference"`
	PerformedBy   uuid.UUID              `gorm:"type:uuid;not null"`
	BalanceBefore int64                  `gorm:"not null"`
	BalanceAfter  int64                  `gorm:"not null"`
	TransferID    *uuid.UUID             `gorm:"type:uuid;index:idx_movement_transfer"`
	CreatedAt     time.Time              `gorm:"not null;index:idx_movement_item_time,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:            m.ID,
		ItemID:        m.ItemID,
		WarehouseID:   m.WarehouseID,
		Quantity:      m.Quantity,
		Type:          m.Type,
		Reference:     m.Reference,
		PerformedBy:   m.PerformedBy,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		TransferID:    m.TransferID,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain StockMovement.
func (m *StockMovementModel) FromDomain(sm *inventory.StockMovement) {
	m.ID = sm.ID
	m.ItemID = sm.ItemID
	m.WarehouseID = sm.WarehouseID
	m.Quantity = sm.Quantity
	m.Type = sm.Type
	m.Reference = sm.Reference
	m.PerformedBy = sm.PerformedBy
	m.BalanceBefore = sm.BalanceBefore
	m.BalanceAfter = sm.BalanceAfter
	m.TransferID = sm.TransferID
	m.CreatedAt = sm.CreatedAt
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(sm *inventory.StockMovement) *StockMovementModel {
	m := &StockMovementModel{}
	m.FromDomain(sm)
	return m
}

// StocktakeModel is the persistence model for the Stocktake aggregate root.
type StocktakeModel struct {
	AggregateModel
	Reference     string                    `gorm:"type:varchar(64);not null;uniqueIndex:idx_stocktake_reference"`
	WarehouseID   uuid.UUID                 `gorm:"type:uuid;not null;index:idx_stocktake_warehouse"`
	Status        inventory.StocktakeStatus `gorm:"type:varchar(20);not null;default:'PLANNED';index:idx_stocktake_status"`
	ScheduledDate time.Time                 `gorm:"not null"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	Notes         string     `gorm:"type:text"`
	CreatedBy     uuid.UUID  `gorm:"type:uuid;not null"`
	ApprovedBy    *uuid.UUID `gorm:"type:uuid"`
	CancelReason  string     `gorm:"type:varchar(500)"`
	// Associations
	Lines []StocktakeLineModel `gorm:"foreignKey:StocktakeID;references:ID"`
}

// TableName returns the table name for GORM
func (StocktakeModel) TableName() string {
	return "stocktakes"
}

// ToDomain converts the persistence model to a domain Stocktake aggregate.
func (m *StocktakeModel) ToDomain() *inventory.Stocktake {
	st := &inventory.Stocktake{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Reference:         m.Reference,
		WarehouseID:       m.WarehouseID,
		Status:            m.Status,
		ScheduledDate:     m.ScheduledDate,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		Notes:             m.Notes,
		CreatedBy:         m.CreatedBy,
		ApprovedBy:        m.ApprovedBy,
		CancelReason:      m.CancelReason,
		Lines:             make([]inventory.StocktakeLine, len(m.Lines)),
	}
	for i, line := range m.Lines {
		st.Lines[i] = *line.ToDomain()
	}
	return st
}

// FromDomain populates the persistence model from a domain Stocktake aggregate.
func (m *StocktakeModel) FromDomain(st *inventory.Stocktake) {
	m.FromDomainAggregateRoot(st.BaseAggregateRoot)
	m.Reference = st.Reference
	m.WarehouseID = st.WarehouseID
	m.Status = st.Status
	m.ScheduledDate = st.ScheduledDate
	m.StartedAt = st.StartedAt
	m.CompletedAt = st.CompletedAt
	m.CancelledAt = st.CancelledAt
	m.Notes = st.Notes
	m.CreatedBy = st.CreatedBy
	m.ApprovedBy = st.ApprovedBy
	m.CancelReason = st.CancelReason
	m.Lines = make([]StocktakeLineModel, len(st.Lines))
	for i := range st.Lines {
		m.Lines[i] = *StocktakeLineModelFromDomain(&st.Lines[i])
	}
}

// StocktakeModelFromDomain creates a new persistence model from a domain Stocktake aggregate.
func StocktakeModelFromDomain(st *inventory.Stocktake) *StocktakeModel {
	m := &StocktakeModel{}
	m.FromDomain(st)
	return m
}

// StocktakeLineModel is the persistence model for one counted item of a stocktake.
type StocktakeLineModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StocktakeID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stocktake_line_no,priority:1"`
	LineNo           int             `gorm:"not null;uniqueIndex:idx_stocktake_line_no,priority:2"`
	ItemID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_stocktake_line_item"`
	ItemSKU          string          `gorm:"type:varchar(64);not null"`
	ItemName         string          `gorm:"type:varchar(200);not null"`
	ExpectedQuantity int64           `gorm:"not null"`
	CountedQuantity  int64           `gorm:"not null"`
	Variance         int64           `gorm:"not null"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Notes            string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (StocktakeLineModel) TableName() string {
	return "stocktake_lines"
}

// ToDomain converts the persistence model to a domain StocktakeLine.
func (m *StocktakeLineModel) ToDomain() *inventory.StocktakeLine {
	return &inventory.StocktakeLine{
		ID:               m.ID,
		StocktakeID:      m.StocktakeID,
		LineNo:           m.LineNo,
		ItemID:           m.ItemID,
		ItemSKU:          m.ItemSKU,
		ItemName:         m.ItemName,
		ExpectedQuantity: m.ExpectedQuantity,
		CountedQuantity:  m.CountedQuantity,
		Variance:         m.Variance,
		UnitCost:         m.UnitCost,
		Notes:            m.Notes,
	}
}

// FromDomain populates the persistence model from a domain StocktakeLine.
func (m *StocktakeLineModel) FromDomain(l *inventory.StocktakeLine) {
	m.ID = l.ID
	m.StocktakeID = l.StocktakeID
	m.LineNo = l.LineNo
	m.ItemID = l.ItemID
	m.ItemSKU = l.ItemSKU
	m.ItemName = l.ItemName
	m.ExpectedQuantity = l.ExpectedQuantity
	m.CountedQuantity = l.CountedQuantity
	m.Variance = l.Variance
	m.UnitCost = l.UnitCost
	m.Notes = l.Notes
}

// StocktakeLineModelFromDomain creates a new persistence model from a domain StocktakeLine.
func StocktakeLineModelFromDomain(l *inventory.StocktakeLine) *StocktakeLineModel {
	m := &StocktakeLineModel{}
	m.FromDomain(l)
	return m
}
