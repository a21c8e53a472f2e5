package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StocktakeService provides application services for stocktake operations.
// Completion applies adjustments through the MovementApplier so the ledger
// remains the only writer of quantities.
type StocktakeService struct {
	txScope       TransactionScope
	stocktakeRepo inventory.StocktakeRepository
	ledger        MovementApplier
	events        *eventDispatcher
	logger        *zap.Logger
}

// NewStocktakeService creates a new StocktakeService
func NewStocktakeService(
	txScope TransactionScope,
	stocktakeRepo inventory.StocktakeRepository,
	ledger MovementApplier,
	logger *zap.Logger,
) *StocktakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StocktakeService{
		txScope:       txScope,
		stocktakeRepo: stocktakeRepo,
		ledger:        ledger,
		events:        newEventDispatcher(logger),
		logger:        logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StocktakeService) SetEventPublisher(publisher shared.EventPublisher) {
	s.events.publisher = publisher
}

// ===================== Query Methods =====================

// GetByID retrieves a stocktake with its lines
func (s *StocktakeService) GetByID(ctx context.Context, id uuid.UUID) (*StocktakeResponse, error) {
	st, err := s.stocktakeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToStocktakeResponse(st)
	return &response, nil
}

// List retrieves a paginated list of stocktakes
func (s *StocktakeService) List(ctx context.Context, filter StocktakeListFilter) ([]StocktakeListResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	if filter.OrderBy == "" {
		filter.OrderBy = "scheduled_date"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     page,
		PageSize: pageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]any),
	}
	if filter.WarehouseID != nil {
		domainFilter.Filters[inventory.FilterWarehouseID] = *filter.WarehouseID
	}
	if filter.Status != "" {
		status := inventory.StocktakeStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainErrorf(shared.CodeInvalidInput, "Invalid stocktake status: %s", filter.Status)
		}
		domainFilter.Filters[inventory.FilterStatus] = status
	}

	sts, total, err := s.stocktakeRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToStocktakeListResponses(sts), total, nil
}

// ===================== Command Methods =====================

// Create plans a stocktake. Every line item must be held in the stocktake's warehouse.
func (s *StocktakeService) Create(ctx context.Context, req CreateStocktakeRequest, actor uuid.UUID) (*StocktakeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktake", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrStocktakeRef, req.Reference,
		telemetry.SpanAttrWarehouseID, req.WarehouseID.String(),
		"line_count", len(req.Lines),
	)

	var st *inventory.Stocktake
	var events []shared.DomainEvent
	staged := false

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.WarehouseRepo().FindByID(ctx, req.WarehouseID); err != nil {
			return err
		}
		exists, err := repos.StocktakeRepo().ExistsByReference(ctx, req.Reference)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Stocktake reference %s already exists", req.Reference)
		}

		lines := make([]inventory.StocktakeLine, 0, len(req.Lines))
		for _, lineReq := range req.Lines {
			item, err := repos.ItemRepo().FindByIDAndWarehouse(ctx, lineReq.ItemID, req.WarehouseID)
			if err != nil {
				return err
			}
			expected := item.QuantityOnHand
			if lineReq.ExpectedQuantity != nil {
				expected = *lineReq.ExpectedQuantity
			}
			line, err := inventory.NewStocktakeLine(item, expected, lineReq.CountedQuantity, lineReq.Notes)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}

		var scheduled time.Time
		if req.ScheduledDate != nil {
			scheduled = *req.ScheduledDate
		}
		st, err = inventory.NewStocktake(req.Reference, req.WarehouseID, scheduled, req.Notes, actor, lines)
		if err != nil {
			return err
		}
		if err := repos.StocktakeRepo().Create(ctx, st); err != nil {
			return err
		}

		events = st.PullDomainEvents()
		staged, err = s.events.stage(ctx, repos, events)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.events.afterCommit(ctx, staged, events)

	response := ToStocktakeResponse(st)
	return &response, nil
}

// Start moves a PLANNED stocktake to IN_PROGRESS
func (s *StocktakeService) Start(ctx context.Context, id, actor uuid.UUID) (*StocktakeResponse, error) {
	return s.mutate(ctx, "start", id, func(st *inventory.Stocktake) error {
		return st.Start(actor)
	})
}

// UpdateCount corrects the counted quantity of one line while the stocktake is open
func (s *StocktakeService) UpdateCount(ctx context.Context, id uuid.UUID, lineNo int, req RecordCountRequest, actor uuid.UUID) (*StocktakeResponse, error) {
	return s.mutate(ctx, "update_count", id, func(st *inventory.Stocktake) error {
		return st.RecordCount(lineNo, req.CountedQuantity, req.Notes, actor)
	})
}

// Cancel abandons a stocktake that has not been completed
func (s *StocktakeService) Cancel(ctx context.Context, id uuid.UUID, req CancelStocktakeRequest, actor uuid.UUID) (*StocktakeResponse, error) {
	return s.mutate(ctx, "cancel", id, func(st *inventory.Stocktake) error {
		return st.Cancel(req.Reason, actor)
	})
}

// Complete closes an IN_PROGRESS stocktake and books one adjustment per line
// with a variance, referenced "STOCKTAKE:"+reference. The status change and
// every adjustment commit in a single transaction; any failure rolls all of
// them back and leaves the stocktake IN_PROGRESS.
func (s *StocktakeService) Complete(ctx context.Context, id, actor uuid.UUID) (*CompleteStocktakeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktake", "complete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrStocktakeID, id.String())

	var st *inventory.Stocktake
	var movements []*inventory.StockMovement
	var events []shared.DomainEvent
	staged := false
	var err error

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationCompleteStocktake, nil), func(c context.Context) {
		err = s.txScope.Execute(c, func(repos TransactionalRepositories) error {
			var txErr error
			st, txErr = repos.StocktakeRepo().FindByIDForUpdate(c, id)
			if txErr != nil {
				return txErr
			}

			adjustments, txErr := st.Complete(actor)
			if txErr != nil {
				return txErr
			}

			movementEvents := make([]shared.DomainEvent, 0, len(adjustments))
			movements = make([]*inventory.StockMovement, 0, len(adjustments))
			for _, adj := range adjustments {
				m, event, applyErr := s.ledger.ApplyMovement(c, repos, MovementCommand{
					ItemID:      adj.ItemID,
					WarehouseID: st.WarehouseID,
					Type:        adj.Type,
					Quantity:    adj.Quantity,
					Reference:   st.LedgerReference(),
					PerformedBy: actor,
				})
				if applyErr != nil {
					s.logger.Info("Stocktake adjustment rejected",
						zap.String("stocktake_id", id.String()),
						zap.Int("line_no", adj.LineNo),
						zap.Error(applyErr),
					)
					return applyErr
				}
				movements = append(movements, m)
				movementEvents = append(movementEvents, event)
			}

			if txErr = repos.StocktakeRepo().SaveWithLock(c, st); txErr != nil {
				return txErr
			}

			events = append(st.PullDomainEvents(), movementEvents...)
			staged, txErr = s.events.stage(c, repos, events)
			return txErr
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.events.afterCommit(ctx, staged, events)

	telemetry.AddEvent(span, "stocktake_completed",
		"adjustment_count", len(movements),
		"total_variance", st.TotalVariance(),
	)
	s.logger.Info("Stocktake completed",
		zap.String("stocktake_id", st.ID.String()),
		zap.String("reference", st.Reference),
		zap.Int("adjustments", len(movements)),
		zap.Int64("total_variance", st.TotalVariance()),
	)

	adjustments := make([]MovementResponse, len(movements))
	for i, m := range movements {
		adjustments[i] = ToMovementResponse(m)
	}
	return &CompleteStocktakeResponse{
		Stocktake:   ToStocktakeResponse(st),
		Adjustments: adjustments,
	}, nil
}

// mutate loads the stocktake under lock, applies fn and saves it with a version check
func (s *StocktakeService) mutate(ctx context.Context, method string, id uuid.UUID, fn func(st *inventory.Stocktake) error) (*StocktakeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktake", method)
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrStocktakeID, id.String())

	var st *inventory.Stocktake
	var events []shared.DomainEvent
	staged := false

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		st, err = repos.StocktakeRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		if err := repos.StocktakeRepo().SaveWithLock(ctx, st); err != nil {
			return err
		}
		events = st.PullDomainEvents()
		staged, err = s.events.stage(ctx, repos, events)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.events.afterCommit(ctx, staged, events)

	response := ToStocktakeResponse(st)
	return &response, nil
}
