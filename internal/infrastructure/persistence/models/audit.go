package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/audit"
	"github.com/google/uuid"
)

// AuditLogModel is the persistence model for an audit entry.
// EventID is unique so a redelivered event writes at most one row.
type AuditLogModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID    *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_audit_event"`
	ActorID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_actor"`
	Action     string     `gorm:"type:varchar(50);not null"`
	Entity     string     `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Before     []byte     `gorm:"type:jsonb"`
	After      []byte     `gorm:"type:jsonb"`
	Reason     string     `gorm:"type:varchar(500)"`
	OccurredAt time.Time  `gorm:"not null;index:idx_audit_occurred"`
	CreatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain audit Entry.
func (m *AuditLogModel) ToDomain() audit.Entry {
	e := audit.Entry{
		ID:         m.ID,
		ActorID:    m.ActorID,
		Action:     m.Action,
		Entity:     m.Entity,
		EntityID:   m.EntityID,
		Before:     m.Before,
		After:      m.After,
		Reason:     m.Reason,
		OccurredAt: m.OccurredAt,
	}
	if m.EventID != nil {
		e.EventID = *m.EventID
	}
	return e
}

// AuditLogModelFromDomain creates a new persistence model from a domain audit Entry.
func AuditLogModelFromDomain(e audit.Entry) *AuditLogModel {
	m := &AuditLogModel{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		Entity:     e.Entity,
		EntityID:   e.EntityID,
		Before:     e.Before,
		After:      e.After,
		Reason:     e.Reason,
		OccurredAt: e.OccurredAt,
		CreatedAt:  time.Now(),
	}
	if e.EventID != uuid.Nil {
		eventID := e.EventID
		m.EventID = &eventID
	}
	return m
}
