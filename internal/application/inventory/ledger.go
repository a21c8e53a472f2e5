package inventory

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MovementCommand is a single direct ledger movement to apply inside a transaction
type MovementCommand struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	Type        inventory.MovementType
	Quantity    int64
	Reference   string
	PerformedBy uuid.UUID
}

// Validate checks the command before any repository is touched
func (c MovementCommand) Validate() error {
	if c.ItemID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	if c.WarehouseID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Warehouse ID cannot be empty")
	}
	if c.Type == inventory.MovementTypeTransfer {
		return shared.NewDomainError(shared.CodeInvalidInput, "Transfers must be recorded through the transfer operation")
	}
	if !c.Type.IsDirect() {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "Invalid movement type: %s", c.Type)
	}
	if c.Quantity <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	if strings.TrimSpace(c.Reference) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Reference cannot be empty")
	}
	if utf8.RuneCountInString(strings.TrimSpace(c.Reference)) > inventory.MaxMovementReferenceLength {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "Reference cannot exceed %d characters", inventory.MaxMovementReferenceLength)
	}
	if c.PerformedBy == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Performer ID cannot be empty")
	}
	return nil
}

// MovementApplier applies a movement using repositories that already belong to
// an open transaction. Stocktake completion and opening balances go through it
// so every quantity change is written by the ledger.
type MovementApplier interface {
	ApplyMovement(ctx context.Context, repos TransactionalRepositories, cmd MovementCommand) (*inventory.StockMovement, shared.DomainEvent, error)
}

// StockLedger records movements against item quantities
type StockLedger struct {
	txScope      TransactionScope
	itemRepo     inventory.ItemRepository
	movementRepo inventory.StockMovementRepository
	events       *eventDispatcher
	logger       *zap.Logger
}

// NewStockLedger creates a new StockLedger
func NewStockLedger(
	txScope TransactionScope,
	itemRepo inventory.ItemRepository,
	movementRepo inventory.StockMovementRepository,
	logger *zap.Logger,
) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{
		txScope:      txScope,
		itemRepo:     itemRepo,
		movementRepo: movementRepo,
		events:       newEventDispatcher(logger),
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (l *StockLedger) SetEventPublisher(publisher shared.EventPublisher) {
	l.events.publisher = publisher
}

// RecordMovement applies one INBOUND or OUTBOUND movement atomically.
// The item row is locked for the duration of the transaction so concurrent
// outbound movements can never take the quantity below zero.
func (l *StockLedger) RecordMovement(ctx context.Context, req RecordMovementRequest, performedBy uuid.UUID) (*MovementResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "record_movement")
	defer span.End()

	cmd := MovementCommand{
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		Type:        inventory.MovementType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		PerformedBy: performedBy,
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, cmd.ItemID.String(),
		telemetry.SpanAttrWarehouseID, cmd.WarehouseID.String(),
		telemetry.SpanAttrMovementType, cmd.Type.String(),
		telemetry.SpanAttrQuantity, cmd.Quantity,
		telemetry.SpanAttrReference, cmd.Reference,
	)
	if err := cmd.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var movement *inventory.StockMovement
	var events []shared.DomainEvent
	staged := false
	var err error

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationRecordMovement, map[string]string{
		"movement_type": cmd.Type.String(),
	}), func(c context.Context) {
		err = l.txScope.Execute(c, func(repos TransactionalRepositories) error {
			m, event, applyErr := l.ApplyMovement(c, repos, cmd)
			if applyErr != nil {
				return applyErr
			}
			movement = m
			events = []shared.DomainEvent{event}
			var stageErr error
			staged, stageErr = l.events.stage(c, repos, events)
			return stageErr
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	l.events.afterCommit(ctx, staged, events)

	telemetry.AddEvent(span, "movement_recorded",
		"movement_id", movement.ID.String(),
		"balance_after", movement.BalanceAfter,
	)
	l.logger.Info("Stock movement recorded",
		zap.String("movement_id", movement.ID.String()),
		zap.String("item_id", movement.ItemID.String()),
		zap.String("type", movement.Type.String()),
		zap.Int64("quantity", movement.Quantity),
		zap.Int64("balance_after", movement.BalanceAfter),
	)

	response := ToMovementResponse(movement)
	return &response, nil
}

// ApplyMovement performs the movement using repositories bound to the caller's
// transaction. It locks the item row, updates the quantity with a version check,
// appends the ledger row, and returns the event describing the change.
// The caller owns commit and event delivery.
func (l *StockLedger) ApplyMovement(ctx context.Context, repos TransactionalRepositories, cmd MovementCommand) (*inventory.StockMovement, shared.DomainEvent, error) {
	if err := cmd.Validate(); err != nil {
		return nil, nil, err
	}

	if _, err := repos.WarehouseRepo().FindByID(ctx, cmd.WarehouseID); err != nil {
		return nil, nil, err
	}

	item, err := repos.ItemRepo().FindByIDAndWarehouseForUpdate(ctx, cmd.ItemID, cmd.WarehouseID)
	if err != nil {
		return nil, nil, err
	}

	before := item.Snapshot()
	balanceBefore, balanceAfter, err := item.ApplyMovement(cmd.Type, cmd.Quantity)
	if err != nil {
		return nil, nil, err
	}

	movement, err := inventory.NewStockMovement(
		item.ID, item.WarehouseID, cmd.Type, cmd.Quantity,
		cmd.Reference, cmd.PerformedBy, balanceBefore, balanceAfter,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
		return nil, nil, err
	}
	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return nil, nil, err
	}

	return movement, inventory.NewStockMovementRecordedEvent(movement, before, item.Snapshot()), nil
}

// GetItem retrieves an item by ID
func (l *StockLedger) GetItem(ctx context.Context, itemID uuid.UUID) (*ItemResponse, error) {
	item, err := l.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	response := ToItemResponse(item)
	return &response, nil
}

// ListMovements retrieves ledger rows, newest first
func (l *StockLedger) ListMovements(ctx context.Context, filter MovementListFilter) ([]MovementResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	domainFilter := shared.Filter{
		Page:     page,
		PageSize: pageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]any),
	}
	if filter.ItemID != nil {
		domainFilter.Filters[inventory.FilterItemID] = *filter.ItemID
	}
	if filter.WarehouseID != nil {
		domainFilter.Filters[inventory.FilterWarehouseID] = *filter.WarehouseID
	}
	if filter.Reference != "" {
		domainFilter.Filters[inventory.FilterReference] = filter.Reference
	}
	if filter.Type != "" {
		domainFilter.Filters[inventory.FilterMovementType] = inventory.MovementType(filter.Type)
	}
	if filter.From != nil {
		domainFilter.Filters[inventory.FilterFrom] = *filter.From
	}
	if filter.To != nil {
		domainFilter.Filters[inventory.FilterTo] = *filter.To
	}

	movements, total, err := l.movementRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToMovementResponses(movements), total, nil
}

// GetMovementsByReference returns every ledger row with the exact reference,
// e.g. both legs of "TRANSFER:T-1" or all adjustments of "STOCKTAKE:ST-9"
func (l *StockLedger) GetMovementsByReference(ctx context.Context, reference string) ([]MovementResponse, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reference cannot be empty")
	}
	movements, err := l.movementRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return ToMovementResponses(movements), nil
}

// VerifyItemBalance compares the item's quantity on hand with the net sum of its ledger
func (l *StockLedger) VerifyItemBalance(ctx context.Context, itemID uuid.UUID) (*BalanceCheckResponse, error) {
	item, err := l.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sum, err := l.movementRepo.SumByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	consistent := sum == item.QuantityOnHand
	if !consistent {
		l.logger.Warn("Item quantity does not match its ledger",
			zap.String("item_id", itemID.String()),
			zap.Int64("quantity_on_hand", item.QuantityOnHand),
			zap.Int64("ledger_balance", sum),
		)
	}
	return &BalanceCheckResponse{
		ItemID:         item.ID,
		QuantityOnHand: item.QuantityOnHand,
		LedgerBalance:  sum,
		Consistent:     consistent,
	}, nil
}

var _ MovementApplier = (*StockLedger)(nil)
