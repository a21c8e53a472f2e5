package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormItemRepository implements ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDAndWarehouse finds an item by ID held in the given warehouse
func (r *GormItemRepository) FindByIDAndWarehouse(ctx context.Context, id, warehouseID uuid.UUID) (*inventory.Item, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ? AND warehouse_id = ?", id, warehouseID)
}

// FindByIDAndWarehouseForUpdate finds the item and locks its row with SELECT ... FOR UPDATE.
// The lock is released when the surrounding transaction ends.
func (r *GormItemRepository) FindByIDAndWarehouseForUpdate(ctx context.Context, id, warehouseID uuid.UUID) (*inventory.Item, error) {
	return r.findOne(r.forUpdate(ctx), "id = ? AND warehouse_id = ?", id, warehouseID)
}

// FindBySKUAndWarehouse finds the row for a sku in a warehouse
func (r *GormItemRepository) FindBySKUAndWarehouse(ctx context.Context, sku string, warehouseID uuid.UUID) (*inventory.Item, error) {
	return r.findOne(r.db.WithContext(ctx), "sku = ? AND warehouse_id = ?", sku, warehouseID)
}

// FindBySKUAndWarehouseForUpdate finds the row for a sku in a warehouse and locks it
func (r *GormItemRepository) FindBySKUAndWarehouseForUpdate(ctx context.Context, sku string, warehouseID uuid.UUID) (*inventory.Item, error) {
	return r.findOne(r.forUpdate(ctx), "sku = ? AND warehouse_id = ?", sku, warehouseID)
}

// FindAll finds items matching the filter
func (r *GormItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Item, int64, error) {
	var total int64
	countQuery := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.ItemModel{}), filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ItemModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ItemModel{}), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]inventory.Item, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}

// Create inserts a new item; a second row for the same sku and warehouse is rejected
func (r *GormItemRepository) Create(ctx context.Context, item *inventory.Item) error {
	model := models.ItemModelFromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateCreate(err, "Item with this SKU already exists in the warehouse")
	}
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormItemRepository) SaveWithLock(ctx context.Context, item *inventory.Item) error {
	result := r.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]any{
			"quantity_on_hand": item.QuantityOnHand,
			"name":             item.Name,
			"description":      item.Description,
			"reorder_level":    item.ReorderLevel,
			"unit_cost":        item.UnitCost,
			"version":          item.Version,
			"updated_at":       item.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflictError("Item")
	}
	return nil
}

func (r *GormItemRepository) forUpdate(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func (r *GormItemRepository) findOne(query *gorm.DB, cond string, args ...any) (*inventory.Item, error) {
	var model models.ItemModel
	if err := query.Where(cond, args...).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// applyFilter applies filter options to the query
func (r *GormItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	return query.Order(ItemSortFields.OrderBy(filter.OrderBy, filter.OrderDir, "sku"))
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormItemRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("sku LIKE ? OR name LIKE ?", like, like)
	}

	for key, value := range filter.Filters {
		switch key {
		case inventory.FilterWarehouseID:
			query = query.Where("warehouse_id = ?", value)
		case inventory.FilterSKU:
			query = query.Where("sku = ?", value)
		case inventory.FilterBelowReorder:
			if value == true {
				query = query.Where("quantity_on_hand <= reorder_level")
			}
		}
	}

	return query
}

// Ensure GormItemRepository implements ItemRepository
var _ inventory.ItemRepository = (*GormItemRepository)(nil)
