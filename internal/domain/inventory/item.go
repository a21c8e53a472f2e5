package inventory

import (
	"math"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeItem is the aggregate type name used in events and audit entries
const AggregateTypeItem = "Item"

// Item is the stock position of one sku held in one warehouse.
// QuantityOnHand is never negative after a committed operation.
type Item struct {
	shared.BaseAggregateRoot
	SKU            string
	Name           string
	Description    string
	WarehouseID    uuid.UUID
	QuantityOnHand int64
	ReorderLevel   int64
	UnitCost       decimal.Decimal
}

// ItemSnapshot is the serializable state of an item at a point in time
type ItemSnapshot struct {
	ID             uuid.UUID       `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	QuantityOnHand int64           `json:"quantity_on_hand"`
	ReorderLevel   int64           `json:"reorder_level"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Version        int             `json:"version"`
}

// NewItem creates an item with zero quantity on hand
func NewItem(sku, name, description string, warehouseID uuid.UUID, reorderLevel int64, unitCost decimal.Decimal) (*Item, error) {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "SKU cannot be empty")
	}
	if len(sku) > 64 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "SKU cannot exceed 64 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item name cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Warehouse ID cannot be empty")
	}
	if reorderLevel < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reorder level cannot be negative")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}

	return &Item{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		Name:              name,
		Description:       description,
		WarehouseID:       warehouseID,
		ReorderLevel:      reorderLevel,
		UnitCost:          unitCost,
	}, nil
}

// CloneForWarehouse creates an empty row for the same sku in another warehouse.
// Catalog attributes are copied; quantity starts at zero.
func (i *Item) CloneForWarehouse(warehouseID uuid.UUID) (*Item, error) {
	if warehouseID == i.WarehouseID {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Cannot clone an item into its own warehouse")
	}
	return NewItem(i.SKU, i.Name, i.Description, warehouseID, i.ReorderLevel, i.UnitCost)
}

// ApplyMovement changes the quantity on hand by a direct movement and returns
// the balance before and after. On error the item is left untouched.
func (i *Item) ApplyMovement(movementType MovementType, quantity int64) (before, after int64, err error) {
	if quantity <= 0 {
		return 0, 0, shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	if movementType == MovementTypeTransfer {
		return 0, 0, shared.NewDomainError(shared.CodeInvalidInput, "Transfers must be recorded through the transfer operation")
	}
	if !movementType.IsDirect() {
		return 0, 0, shared.NewDomainErrorf(shared.CodeInvalidInput, "Invalid movement type: %s", movementType)
	}

	before = i.QuantityOnHand
	if movementType == MovementTypeInbound && quantity > math.MaxInt64-before {
		return 0, 0, shared.NewDomainErrorf(shared.CodeInvalidInput,
			"Quantity %d would overflow the quantity on hand of %s", quantity, i.SKU)
	}
	after = before + movementType.Sign()*quantity
	if after < 0 {
		return 0, 0, shared.NewDomainErrorf(shared.CodeInsufficientStock,
			"Insufficient stock for %s: on hand %d, requested %d", i.SKU, before, quantity)
	}

	i.QuantityOnHand = after
	i.Touch()
	i.IncrementVersion()
	return before, after, nil
}

// IsBelowReorderLevel reports whether the item should be reordered
func (i *Item) IsBelowReorderLevel() bool {
	return i.QuantityOnHand <= i.ReorderLevel
}

// StockValue returns quantity on hand valued at unit cost
func (i *Item) StockValue() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.QuantityOnHand))
}

// Snapshot captures the current state for audit before/after records
func (i *Item) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		ID:             i.ID,
		SKU:            i.SKU,
		Name:           i.Name,
		WarehouseID:    i.WarehouseID,
		QuantityOnHand: i.QuantityOnHand,
		ReorderLevel:   i.ReorderLevel,
		UnitCost:       i.UnitCost,
		Version:        i.Version,
	}
}
