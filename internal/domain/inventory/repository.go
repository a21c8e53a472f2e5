package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter keys understood by the inventory repositories
const (
	FilterWarehouseID  = "warehouse_id"
	FilterItemID       = "item_id"
	FilterSKU          = "sku"
	FilterBelowReorder = "below_reorder"
	FilterReference    = "reference"
	FilterMovementType = "movement_type"
	FilterStatus       = "status"
	FilterFrom         = "from"
	FilterTo           = "to"
)

// ItemRepository defines the interface for item persistence
type ItemRepository interface {
	// FindByID finds an item by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// FindByIDAndWarehouse finds an item by ID that is held in the given warehouse
	FindByIDAndWarehouse(ctx context.Context, id, warehouseID uuid.UUID) (*Item, error)

	// FindByIDAndWarehouseForUpdate is FindByIDAndWarehouse with a row lock held until the transaction ends
	FindByIDAndWarehouseForUpdate(ctx context.Context, id, warehouseID uuid.UUID) (*Item, error)

	// FindBySKUAndWarehouse finds the row for a sku in a warehouse
	FindBySKUAndWarehouse(ctx context.Context, sku string, warehouseID uuid.UUID) (*Item, error)

	// FindBySKUAndWarehouseForUpdate is FindBySKUAndWarehouse with a row lock
	FindBySKUAndWarehouseForUpdate(ctx context.Context, sku string, warehouseID uuid.UUID) (*Item, error)

	// FindAll finds items matching the filter and returns the total count
	FindAll(ctx context.Context, filter shared.Filter) ([]Item, int64, error)

	// Create inserts a new item
	Create(ctx context.Context, item *Item) error

	// SaveWithLock writes the item only if the stored version is item.Version-1
	SaveWithLock(ctx context.Context, item *Item) error
}

// WarehouseRepository defines the interface for warehouse persistence
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	FindByCode(ctx context.Context, code string) (*Warehouse, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Warehouse, int64, error)
	Create(ctx context.Context, warehouse *Warehouse) error
}

// StockMovementRepository is the append-only ledger store. It has no update or delete.
type StockMovementRepository interface {
	// Create appends a movement
	Create(ctx context.Context, movement *StockMovement) error

	// CreateBatch appends several movements in one statement
	CreateBatch(ctx context.Context, movements []*StockMovement) error

	// FindByID finds a movement by ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)

	// FindAll finds movements matching the filter, newest first
	FindAll(ctx context.Context, filter shared.Filter) ([]StockMovement, int64, error)

	// FindByReference finds every movement carrying the exact reference
	FindByReference(ctx context.Context, reference string) ([]StockMovement, error)

	// SumByItem returns the net signed quantity of all movements for an item
	SumByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// StocktakeRepository defines the interface for stocktake persistence
type StocktakeRepository interface {
	// FindByID finds a stocktake with its lines ordered by line number
	FindByID(ctx context.Context, id uuid.UUID) (*Stocktake, error)

	// FindByIDForUpdate is FindByID with the header row locked
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Stocktake, error)

	// ExistsByReference checks whether a reference is already used
	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// FindAll finds stocktakes (without lines) matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Stocktake, int64, error)

	// Create inserts the stocktake and its lines
	Create(ctx context.Context, stocktake *Stocktake) error

	// SaveWithLock writes the header and lines if the stored version is stocktake.Version-1
	SaveWithLock(ctx context.Context, stocktake *Stocktake) error
}
