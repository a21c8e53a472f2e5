// Package audit defines the write contract of the audit log.
// The ledger never waits on it; entries are delivered after the ledger transaction commits.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the inventory ledger
const (
	ActionCreate         = "CREATE"
	ActionStockMovement  = "STOCK_MOVEMENT"
	ActionStockTransfer  = "STOCK_TRANSFER"
	ActionStatusChange   = "STATUS_CHANGE"
	ActionCountCorrected = "COUNT_CORRECTED"
)

// Entry is one audit record
type Entry struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	ActorID    uuid.UUID
	Action     string
	Entity     string
	EntityID   uuid.UUID
	Before     json.RawMessage
	After      json.RawMessage
	Reason     string
	OccurredAt time.Time
}

// NewEntry creates an entry; before and after are marshalled to JSON when non-nil
func NewEntry(actorID uuid.UUID, action, entity string, entityID uuid.UUID, before, after any, reason string) (Entry, error) {
	e := Entry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Reason:     reason,
		OccurredAt: time.Now(),
	}
	var err error
	if e.Before, err = marshalState(before); err != nil {
		return Entry{}, err
	}
	if e.After, err = marshalState(after); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func marshalState(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Recorder receives audit entries
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}
