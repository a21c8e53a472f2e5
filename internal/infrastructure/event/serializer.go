package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
)

// EventSerializer converts domain events to and from the JSON payload stored in the outbox
type EventSerializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{types: make(map[string]reflect.Type)}
}

// NewLedgerEventSerializer creates a serializer that knows every inventory event
func NewLedgerEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterInventoryEvents(s)
	return s
}

// Register binds an event type name to the concrete struct behind prototype
func (s *EventSerializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s.mu.Lock()
	s.types[eventType] = t
	s.mu.Unlock()
}

// Serialize encodes an event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize decodes a payload into the struct registered for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.types[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}

	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	if event.EventType() != eventType {
		return nil, fmt.Errorf("payload carries event type %q, entry says %q", event.EventType(), eventType)
	}
	return event, nil
}

// DecodeEntry rebuilds the domain event stored in an outbox entry
func (s *EventSerializer) DecodeEntry(entry *shared.OutboxEntry) (shared.DomainEvent, error) {
	event, err := s.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return nil, err
	}
	if event.EventID() != entry.EventID {
		return nil, fmt.Errorf("payload event id %s does not match entry %s", event.EventID(), entry.EventID)
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.types[eventType]
	return ok
}

// RegisteredTypes returns the registered event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterInventoryEvents registers every event raised by the inventory domain.
// The outbox processor cannot relay an entry whose type is missing here.
func RegisterInventoryEvents(s *EventSerializer) {
	s.Register(inventory.EventTypeItemCreated, &inventory.ItemCreatedEvent{})
	s.Register(inventory.EventTypeStockMovementRecorded, &inventory.StockMovementRecordedEvent{})
	s.Register(inventory.EventTypeStockTransferred, &inventory.StockTransferredEvent{})
	s.Register(inventory.EventTypeStocktakeCreated, &inventory.StocktakeCreatedEvent{})
	s.Register(inventory.EventTypeStocktakeStarted, &inventory.StocktakeStartedEvent{})
	s.Register(inventory.EventTypeStocktakeCountRecorded, &inventory.StocktakeCountRecordedEvent{})
	s.Register(inventory.EventTypeStocktakeCompleted, &inventory.StocktakeCompletedEvent{})
	s.Register(inventory.EventTypeStocktakeCancelled, &inventory.StocktakeCancelledEvent{})
}
