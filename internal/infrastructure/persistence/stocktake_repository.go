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

// GormStocktakeRepository implements StocktakeRepository using GORM
type GormStocktakeRepository struct {
	db *gorm.DB
}

// NewGormStocktakeRepository creates a new GormStocktakeRepository
func NewGormStocktakeRepository(db *gorm.DB) *GormStocktakeRepository {
	return &GormStocktakeRepository{db: db}
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID finds a stocktake with its lines
func (r *GormStocktakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Stocktake, error) {
	var model models.StocktakeModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the header row and then loads the lines.
// Every writer takes the header lock first, so the lines need no lock of their own.
func (r *GormStocktakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Stocktake, error) {
	var model models.StocktakeModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if err := orderLines(r.db.WithContext(ctx)).
		Where("stocktake_id = ?", id).
		Find(&model.Lines).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByReference checks whether a reference is already used
func (r *GormStocktakeRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StocktakeModel{}).
		Where("reference = ?", reference).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll finds stocktake headers matching the filter; lines are not loaded
func (r *GormStocktakeRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Stocktake, int64, error) {
	var total int64
	countQuery := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.StocktakeModel{}), filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.StocktakeModel
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.StocktakeModel{}), filter).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	stocktakes := make([]inventory.Stocktake, len(rows))
	for i := range rows {
		stocktakes[i] = *rows[i].ToDomain()
	}
	return stocktakes, total, nil
}

// Create inserts the stocktake header and its lines
func (r *GormStocktakeRepository) Create(ctx context.Context, st *inventory.Stocktake) error {
	model := models.StocktakeModelFromDomain(st)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateCreate(err, "Stocktake reference already exists")
	}
	return nil
}

// SaveWithLock writes the header with a version check, then the counted values of each line
func (r *GormStocktakeRepository) SaveWithLock(ctx context.Context, st *inventory.Stocktake) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.StocktakeModel{}).
			Where("id = ? AND version = ?", st.ID, st.Version-1).
			Updates(map[string]any{
				"status":        st.Status,
				"started_at":    st.StartedAt,
				"completed_at":  st.CompletedAt,
				"cancelled_at":  st.CancelledAt,
				"approved_by":   st.ApprovedBy,
				"cancel_reason": st.CancelReason,
				"notes":         st.Notes,
				"version":       st.Version,
				"updated_at":    st.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictError("Stocktake")
		}

		for i := range st.Lines {
			line := &st.Lines[i]
			if err := tx.Model(&models.StocktakeLineModel{}).
				Where("id = ? AND stocktake_id = ?", line.ID, st.ID).
				Updates(map[string]any{
					"counted_quantity": line.CountedQuantity,
					"variance":         line.Variance,
					"notes":            line.Notes,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// applyFilter applies filter options to the query
func (r *GormStocktakeRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	return query.Order(StocktakeSortFields.OrderBy(filter.OrderBy, filter.OrderDir, "created_at"))
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormStocktakeRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("reference LIKE ?", "%"+filter.Search+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case inventory.FilterWarehouseID:
			query = query.Where("warehouse_id = ?", value)
		case inventory.FilterStatus:
			query = query.Where("status = ?", value)
		}
	}
	return query
}

// Ensure GormStocktakeRepository implements StocktakeRepository
var _ inventory.StocktakeRepository = (*GormStocktakeRepository)(nil)
