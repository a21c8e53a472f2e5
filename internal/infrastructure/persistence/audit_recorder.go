package persistence

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/domain/audit"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditRecorder writes audit entries to the audit_logs table
type GormAuditRecorder struct {
	db *gorm.DB
}

// NewGormAuditRecorder creates a new GormAuditRecorder
func NewGormAuditRecorder(db *gorm.DB) *GormAuditRecorder {
	return &GormAuditRecorder{db: db}
}

// Record inserts the entry. An entry whose event was already recorded is skipped,
// so outbox redelivery leaves a single row.
func (r *GormAuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	model := models.AuditLogModelFromDomain(entry)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(model).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// FindByEntity returns the audit trail of one entity, oldest first
func (r *GormAuditRecorder) FindByEntity(ctx context.Context, entity string, entityID uuid.UUID) ([]audit.Entry, error) {
	var rows []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]audit.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditRecorder implements audit.Recorder
var _ audit.Recorder = (*GormAuditRecorder)(nil)
