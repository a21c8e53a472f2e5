package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memoryStore is an in-memory database for service tests. Execute snapshots
// the tables and restores them when fn fails, which gives the services the
// same all-or-nothing behaviour as a real transaction.
type memoryStore struct {
	mu         sync.Mutex
	items      map[uuid.UUID]inventory.Item
	warehouses map[uuid.UUID]inventory.Warehouse
	movements  []inventory.StockMovement
	stocktakes map[uuid.UUID]inventory.Stocktake
	outbox     EventStager

	// failMovementCreateAfter makes the n-th movement insert fail when > 0
	failMovementCreateAfter int
	movementCreates         int

	// beforeItemCreate runs inside Create, ahead of the uniqueness check
	beforeItemCreate func(s *memoryStore)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		items:      make(map[uuid.UUID]inventory.Item),
		warehouses: make(map[uuid.UUID]inventory.Warehouse),
		stocktakes: make(map[uuid.UUID]inventory.Stocktake),
	}
}

func (s *memoryStore) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[uuid.UUID]inventory.Item, len(s.items))
	for k, v := range s.items {
		items[k] = v
	}
	stocktakes := make(map[uuid.UUID]inventory.Stocktake, len(s.stocktakes))
	for k, v := range s.stocktakes {
		stocktakes[k] = cloneStocktake(v)
	}
	movements := append([]inventory.StockMovement(nil), s.movements...)

	if err := fn(s); err != nil {
		s.items = items
		s.stocktakes = stocktakes
		s.movements = movements
		return err
	}
	return nil
}

func (s *memoryStore) ItemRepo() inventory.ItemRepository              { return (*memoryItemRepo)(s) }
func (s *memoryStore) WarehouseRepo() inventory.WarehouseRepository    { return (*memoryWarehouseRepo)(s) }
func (s *memoryStore) MovementRepo() inventory.StockMovementRepository { return (*memoryMovementRepo)(s) }
func (s *memoryStore) StocktakeRepo() inventory.StocktakeRepository    { return (*memoryStocktakeRepo)(s) }
func (s *memoryStore) Outbox() EventStager                             { return s.outbox }

// seedWarehouse inserts a warehouse directly
func (s *memoryStore) seedWarehouse(code string) *inventory.Warehouse {
	w, err := inventory.NewWarehouse(code, code+" warehouse", "", "")
	if err != nil {
		panic(err)
	}
	s.warehouses[w.ID] = *w
	return w
}

// seedItem inserts an item with the given quantity and no ledger history
func (s *memoryStore) seedItem(sku string, warehouseID uuid.UUID, qty int64) *inventory.Item {
	item, err := inventory.NewItem(sku, sku+" name", "", warehouseID, 0, decimal.NewFromInt(2))
	if err != nil {
		panic(err)
	}
	item.QuantityOnHand = qty
	s.items[item.ID] = *item
	return item
}

func (s *memoryStore) item(id uuid.UUID) inventory.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *memoryStore) movementsByReference(ref string) []inventory.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.StockMovement
	for _, m := range s.movements {
		if m.Reference == ref {
			out = append(out, m)
		}
	}
	return out
}

func cloneStocktake(st inventory.Stocktake) inventory.Stocktake {
	st.Lines = append([]inventory.StocktakeLine(nil), st.Lines...)
	st.ClearDomainEvents()
	return st
}

func notFound(what string) error {
	return shared.NewDomainErrorf(shared.CodeNotFound, "%s not found", what)
}

// ===================== Items =====================

type memoryItemRepo memoryStore

func (r *memoryItemRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, notFound("Item")
	}
	return &item, nil
}

func (r *memoryItemRepo) FindByIDAndWarehouse(ctx context.Context, id, warehouseID uuid.UUID) (*inventory.Item, error) {
	item, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.WarehouseID != warehouseID {
		return nil, notFound("Item")
	}
	return item, nil
}

func (r *memoryItemRepo) FindByIDAndWarehouseForUpdate(ctx context.Context, id, warehouseID uuid.UUID) (*inventory.Item, error) {
	return r.FindByIDAndWarehouse(ctx, id, warehouseID)
}

func (r *memoryItemRepo) FindBySKUAndWarehouse(_ context.Context, sku string, warehouseID uuid.UUID) (*inventory.Item, error) {
	for _, item := range r.items {
		if item.SKU == sku && item.WarehouseID == warehouseID {
			return &item, nil
		}
	}
	return nil, notFound("Item")
}

func (r *memoryItemRepo) FindBySKUAndWarehouseForUpdate(ctx context.Context, sku string, warehouseID uuid.UUID) (*inventory.Item, error) {
	return r.FindBySKUAndWarehouse(ctx, sku, warehouseID)
}

func (r *memoryItemRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.Item, int64, error) {
	items := make([]inventory.Item, 0, len(r.items))
	for _, item := range r.items {
		if wid, ok := filter.Filters[inventory.FilterWarehouseID].(uuid.UUID); ok && item.WarehouseID != wid {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return items, int64(len(items)), nil
}

func (r *memoryItemRepo) Create(_ context.Context, item *inventory.Item) error {
	if r.beforeItemCreate != nil {
		r.beforeItemCreate((*memoryStore)(r))
	}
	for _, existing := range r.items {
		if existing.SKU == item.SKU && existing.WarehouseID == item.WarehouseID {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Item already exists")
		}
	}
	r.items[item.ID] = *item
	return nil
}

func (r *memoryItemRepo) SaveWithLock(_ context.Context, item *inventory.Item) error {
	stored, ok := r.items[item.ID]
	if !ok || stored.Version != item.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Item was modified by another transaction")
	}
	saved := *item
	saved.ClearDomainEvents()
	r.items[item.ID] = saved
	return nil
}

// ===================== Warehouses =====================

type memoryWarehouseRepo memoryStore

func (r *memoryWarehouseRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Warehouse, error) {
	w, ok := r.warehouses[id]
	if !ok {
		return nil, notFound("Warehouse")
	}
	return &w, nil
}

func (r *memoryWarehouseRepo) FindByCode(_ context.Context, code string) (*inventory.Warehouse, error) {
	for _, w := range r.warehouses {
		if w.Code == strings.ToUpper(code) {
			return &w, nil
		}
	}
	return nil, notFound("Warehouse")
}

func (r *memoryWarehouseRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Warehouse, int64, error) {
	out := make([]inventory.Warehouse, 0, len(r.warehouses))
	for _, w := range r.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, int64(len(out)), nil
}

func (r *memoryWarehouseRepo) Create(_ context.Context, w *inventory.Warehouse) error {
	r.warehouses[w.ID] = *w
	return nil
}

// ===================== Movements =====================

type memoryMovementRepo memoryStore

func (r *memoryMovementRepo) Create(_ context.Context, m *inventory.StockMovement) error {
	r.movementCreates++
	if r.failMovementCreateAfter > 0 && r.movementCreates >= r.failMovementCreateAfter {
		return shared.NewDomainError("DB_ERROR", "simulated insert failure")
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *memoryMovementRepo) CreateBatch(ctx context.Context, ms []*inventory.StockMovement) error {
	for _, m := range ms {
		if err := r.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	for _, m := range r.movements {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, notFound("Stock movement")
}

func (r *memoryMovementRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.StockMovement, int64, error) {
	out := make([]inventory.StockMovement, 0)
	for _, m := range r.movements {
		if id, ok := filter.Filters[inventory.FilterItemID].(uuid.UUID); ok && m.ItemID != id {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r *memoryMovementRepo) FindByReference(_ context.Context, reference string) ([]inventory.StockMovement, error) {
	out := make([]inventory.StockMovement, 0)
	for _, m := range r.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryMovementRepo) SumByItem(_ context.Context, itemID uuid.UUID) (int64, error) {
	var sum int64
	for _, m := range r.movements {
		if m.ItemID == itemID {
			sum += m.SignedQuantity()
		}
	}
	return sum, nil
}

// ===================== Stocktakes =====================

type memoryStocktakeRepo memoryStore

func (r *memoryStocktakeRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Stocktake, error) {
	st, ok := r.stocktakes[id]
	if !ok {
		return nil, notFound("Stocktake")
	}
	st = cloneStocktake(st)
	return &st, nil
}

func (r *memoryStocktakeRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Stocktake, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryStocktakeRepo) ExistsByReference(_ context.Context, reference string) (bool, error) {
	for _, st := range r.stocktakes {
		if st.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryStocktakeRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.Stocktake, int64, error) {
	out := make([]inventory.Stocktake, 0)
	for _, st := range r.stocktakes {
		if status, ok := filter.Filters[inventory.FilterStatus].(inventory.StocktakeStatus); ok && st.Status != status {
			continue
		}
		out = append(out, cloneStocktake(st))
	}
	return out, int64(len(out)), nil
}

func (r *memoryStocktakeRepo) Create(_ context.Context, st *inventory.Stocktake) error {
	r.stocktakes[st.ID] = cloneStocktake(*st)
	return nil
}

func (r *memoryStocktakeRepo) SaveWithLock(_ context.Context, st *inventory.Stocktake) error {
	stored, ok := r.stocktakes[st.ID]
	if !ok || stored.Version != st.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Stocktake was modified by another transaction")
	}
	r.stocktakes[st.ID] = cloneStocktake(*st)
	return nil
}

// ===================== Publishers =====================

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

func (m *MockEventPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// FailingEventPublisher is a testify mock used to simulate a broken audit sink
type FailingEventPublisher struct {
	mock.Mock
}

func (m *FailingEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockEventStager records staged events
type MockEventStager struct {
	mock.Mock
}

func (m *MockEventStager) StageEvents(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

var _ TransactionScope = (*memoryStore)(nil)
var _ TransactionalRepositories = (*memoryStore)(nil)
