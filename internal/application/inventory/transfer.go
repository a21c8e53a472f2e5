package inventory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferCommand moves quantity of one item between two warehouses
type TransferCommand struct {
	ItemID          uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	Quantity        int64
	Reference       string
	PerformedBy     uuid.UUID
}

// Validate checks the command before any repository is touched
func (c TransferCommand) Validate() error {
	if c.ItemID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	if c.FromWarehouseID == uuid.Nil || c.ToWarehouseID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Source and destination warehouses are required")
	}
	if c.FromWarehouseID == c.ToWarehouseID {
		return shared.NewDomainError(shared.CodeInvalidInput, "Source and destination warehouses must be different")
	}
	if c.Quantity <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	if strings.TrimSpace(c.Reference) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Reference cannot be empty")
	}
	if utf8.RuneCountInString(c.Reference) > inventory.MaxTransferReferenceLength {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "Transfer reference cannot exceed %d characters", inventory.MaxTransferReferenceLength)
	}
	if c.PerformedBy == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Performer ID cannot be empty")
	}
	return nil
}

// TransferOrchestrator moves stock between warehouses as one OUTBOUND/INBOUND pair
type TransferOrchestrator struct {
	txScope TransactionScope
	events  *eventDispatcher
	logger  *zap.Logger
}

// NewTransferOrchestrator creates a new TransferOrchestrator
func NewTransferOrchestrator(txScope TransactionScope, logger *zap.Logger) *TransferOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferOrchestrator{
		txScope: txScope,
		events:  newEventDispatcher(logger),
		logger:  logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (o *TransferOrchestrator) SetEventPublisher(publisher shared.EventPublisher) {
	o.events.publisher = publisher
}

// Transfer moves stock from one warehouse to another. Both ledger rows and both
// quantity changes commit together or not at all. When the destination has no
// row for the sku, one is created from the source item's catalog attributes.
func (o *TransferOrchestrator) Transfer(ctx context.Context, req TransferRequest, performedBy uuid.UUID) (*TransferResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_transfer", "transfer")
	defer span.End()

	cmd := TransferCommand{
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		Reference:       strings.TrimSpace(req.Reference),
		PerformedBy:     performedBy,
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, cmd.ItemID.String(),
		telemetry.SpanAttrFromWarehouseID, cmd.FromWarehouseID.String(),
		telemetry.SpanAttrToWarehouseID, cmd.ToWarehouseID.String(),
		telemetry.SpanAttrQuantity, cmd.Quantity,
	)
	if err := cmd.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *transferResult
	var events []shared.DomainEvent
	staged := false
	var err error

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationTransfer, nil), func(c context.Context) {
		err = o.txScope.Execute(c, func(repos TransactionalRepositories) error {
			r, txErr := o.execute(c, repos, cmd)
			if txErr != nil {
				return txErr
			}
			result = r
			events = r.events
			var stageErr error
			staged, stageErr = o.events.stage(c, repos, events)
			return stageErr
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	o.events.afterCommit(ctx, staged, events)

	telemetry.AddEvent(span, "stock_transferred",
		"transfer_id", result.transferID.String(),
		"destination_created", result.destinationCreated,
	)
	o.logger.Info("Stock transferred",
		zap.String("transfer_id", result.transferID.String()),
		zap.String("reference", result.outbound.Reference),
		zap.String("from_warehouse_id", cmd.FromWarehouseID.String()),
		zap.String("to_warehouse_id", cmd.ToWarehouseID.String()),
		zap.Int64("quantity", cmd.Quantity),
		zap.Bool("destination_created", result.destinationCreated),
	)

	return &TransferResponse{
		TransferID: result.transferID,
		Outbound:   ToMovementResponse(result.outbound),
		Inbound:    ToMovementResponse(result.inbound),
	}, nil
}

type transferResult struct {
	transferID         uuid.UUID
	outbound           *inventory.StockMovement
	inbound            *inventory.StockMovement
	destinationCreated bool
	events             []shared.DomainEvent
}

func (o *TransferOrchestrator) execute(ctx context.Context, repos TransactionalRepositories, cmd TransferCommand) (*transferResult, error) {
	if _, err := repos.WarehouseRepo().FindByID(ctx, cmd.FromWarehouseID); err != nil {
		return nil, err
	}
	if _, err := repos.WarehouseRepo().FindByID(ctx, cmd.ToWarehouseID); err != nil {
		return nil, err
	}

	// Unlocked read to learn the sku so the destination row can be located.
	peek, err := repos.ItemRepo().FindByIDAndWarehouse(ctx, cmd.ItemID, cmd.FromWarehouseID)
	if err != nil {
		return nil, err
	}

	destinationExists := true
	destPeek, err := repos.ItemRepo().FindBySKUAndWarehouse(ctx, peek.SKU, cmd.ToWarehouseID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		destinationExists = false
	}

	var source, destination *inventory.Item
	var destinationBefore *inventory.ItemSnapshot

	if destinationExists {
		source, destination, err = lockPair(ctx, repos.ItemRepo(), cmd.ItemID, cmd.FromWarehouseID, destPeek.ID, cmd.ToWarehouseID)
		if err != nil {
			return nil, err
		}
		snapshot := destination.Snapshot()
		destinationBefore = &snapshot
	} else {
		source, err = repos.ItemRepo().FindByIDAndWarehouseForUpdate(ctx, cmd.ItemID, cmd.FromWarehouseID)
		if err != nil {
			return nil, err
		}
		destination, err = source.CloneForWarehouse(cmd.ToWarehouseID)
		if err != nil {
			return nil, err
		}
		if err := repos.ItemRepo().Create(ctx, destination); err != nil {
			// A concurrent transfer created the row after our lookup. The insert
			// has aborted this transaction, so the caller retries from scratch.
			if errors.Is(err, shared.ErrAlreadyExists) {
				return nil, shared.NewDomainErrorf(shared.CodeConcurrencyConflict,
					"Item %s was created in the destination warehouse by a concurrent transfer", source.SKU)
			}
			return nil, err
		}
	}

	sourceBefore := source.Snapshot()
	srcBefore, srcAfter, err := source.ApplyMovement(inventory.MovementTypeOutbound, cmd.Quantity)
	if err != nil {
		return nil, err
	}
	dstBefore, dstAfter, err := destination.ApplyMovement(inventory.MovementTypeInbound, cmd.Quantity)
	if err != nil {
		return nil, err
	}

	transferID := uuid.New()
	reference := inventory.TransferReference(cmd.Reference)

	outbound, err := inventory.NewStockMovement(source.ID, source.WarehouseID, inventory.MovementTypeOutbound,
		cmd.Quantity, reference, cmd.PerformedBy, srcBefore, srcAfter)
	if err != nil {
		return nil, err
	}
	outbound.WithTransferID(transferID)

	inbound, err := inventory.NewStockMovement(destination.ID, destination.WarehouseID, inventory.MovementTypeInbound,
		cmd.Quantity, reference, cmd.PerformedBy, dstBefore, dstAfter)
	if err != nil {
		return nil, err
	}
	inbound.WithTransferID(transferID)

	if err := repos.ItemRepo().SaveWithLock(ctx, source); err != nil {
		return nil, err
	}
	if err := repos.ItemRepo().SaveWithLock(ctx, destination); err != nil {
		return nil, err
	}
	if err := repos.MovementRepo().CreateBatch(ctx, []*inventory.StockMovement{outbound, inbound}); err != nil {
		return nil, err
	}

	// A cloned destination row is reported by DestinationCreated, so the whole
	// transfer yields exactly one event.
	events := []shared.DomainEvent{inventory.NewStockTransferredEvent(
		transferID, outbound, inbound,
		sourceBefore, source.Snapshot(),
		destinationBefore, destination.Snapshot(),
	)}

	return &transferResult{
		transferID:         transferID,
		outbound:           outbound,
		inbound:            inbound,
		destinationCreated: !destinationExists,
		events:             events,
	}, nil
}

// lockPair locks two item rows in ascending id order so that opposite transfers
// between the same pair of rows cannot deadlock.
func lockPair(ctx context.Context, repo inventory.ItemRepository, sourceID, sourceWarehouse, destID, destWarehouse uuid.UUID) (*inventory.Item, *inventory.Item, error) {
	if bytes.Compare(sourceID[:], destID[:]) <= 0 {
		source, err := repo.FindByIDAndWarehouseForUpdate(ctx, sourceID, sourceWarehouse)
		if err != nil {
			return nil, nil, err
		}
		dest, err := repo.FindByIDAndWarehouseForUpdate(ctx, destID, destWarehouse)
		if err != nil {
			return nil, nil, err
		}
		return source, dest, nil
	}

	dest, err := repo.FindByIDAndWarehouseForUpdate(ctx, destID, destWarehouse)
	if err != nil {
		return nil, nil, err
	}
	source, err := repo.FindByIDAndWarehouseForUpdate(ctx, sourceID, sourceWarehouse)
	if err != nil {
		return nil, nil, err
	}
	return source, dest, nil
}
