package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
)

// TransactionScope provides transactional access to inventory repositories.
// Every repository returned inside Execute shares one database transaction, which
// is committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// EventStager writes domain events into the transactional outbox
type EventStager interface {
	StageEvents(ctx context.Context, events ...shared.DomainEvent) error
}

// TransactionalRepositories provides access to all inventory repositories within a transaction.
type TransactionalRepositories interface {
	ItemRepo() inventory.ItemRepository
	WarehouseRepo() inventory.WarehouseRepository
	MovementRepo() inventory.StockMovementRepository
	StocktakeRepo() inventory.StocktakeRepository
	// Outbox returns nil when events are published after commit instead of staged
	Outbox() EventStager
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// It is meant for tests with in-memory repositories.
type NoOpTransactionScope struct {
	itemRepo      inventory.ItemRepository
	warehouseRepo inventory.WarehouseRepository
	movementRepo  inventory.StockMovementRepository
	stocktakeRepo inventory.StocktakeRepository
	outbox        EventStager
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	itemRepo inventory.ItemRepository,
	warehouseRepo inventory.WarehouseRepository,
	movementRepo inventory.StockMovementRepository,
	stocktakeRepo inventory.StocktakeRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		itemRepo:      itemRepo,
		warehouseRepo: warehouseRepo,
		movementRepo:  movementRepo,
		stocktakeRepo: stocktakeRepo,
	}
}

// WithOutbox sets the stager returned by Outbox
func (s *NoOpTransactionScope) WithOutbox(outbox EventStager) *NoOpTransactionScope {
	s.outbox = outbox
	return s
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) ItemRepo() inventory.ItemRepository { return s.itemRepo }

func (s *NoOpTransactionScope) WarehouseRepo() inventory.WarehouseRepository { return s.warehouseRepo }

func (s *NoOpTransactionScope) MovementRepo() inventory.StockMovementRepository { return s.movementRepo }

func (s *NoOpTransactionScope) StocktakeRepo() inventory.StocktakeRepository { return s.stocktakeRepo }

func (s *NoOpTransactionScope) Outbox() EventStager { return s.outbox }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
