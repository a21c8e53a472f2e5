package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpeningBalanceReference is used when a new item is created with stock and no reference is given
const OpeningBalanceReference = "OPENING"

// CatalogService manages warehouses and the items held in them
type CatalogService struct {
	txScope       TransactionScope
	warehouseRepo inventory.WarehouseRepository
	itemRepo      inventory.ItemRepository
	ledger        MovementApplier
	events        *eventDispatcher
	logger        *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	txScope TransactionScope,
	warehouseRepo inventory.WarehouseRepository,
	itemRepo inventory.ItemRepository,
	ledger MovementApplier,
	logger *zap.Logger,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		txScope:       txScope,
		warehouseRepo: warehouseRepo,
		itemRepo:      itemRepo,
		ledger:        ledger,
		events:        newEventDispatcher(logger),
		logger:        logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CatalogService) SetEventPublisher(publisher shared.EventPublisher) {
	s.events.publisher = publisher
}

// CreateWarehouse registers a warehouse with a unique code
func (s *CatalogService) CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*WarehouseResponse, error) {
	warehouse, err := inventory.NewWarehouse(req.Code, req.Name, req.Location, req.Description)
	if err != nil {
		return nil, err
	}

	_, err = s.warehouseRepo.FindByCode(ctx, warehouse.Code)
	if err == nil {
		return nil, shared.NewDomainErrorf(shared.CodeAlreadyExists, "Warehouse code %s already exists", warehouse.Code)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if err := s.warehouseRepo.Create(ctx, warehouse); err != nil {
		return nil, err
	}

	response := ToWarehouseResponse(warehouse)
	return &response, nil
}

// GetWarehouse retrieves a warehouse by ID
func (s *CatalogService) GetWarehouse(ctx context.Context, id uuid.UUID) (*WarehouseResponse, error) {
	warehouse, err := s.warehouseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToWarehouseResponse(warehouse)
	return &response, nil
}

// ListWarehouses retrieves warehouses ordered by code
func (s *CatalogService) ListWarehouses(ctx context.Context, filter WarehouseListFilter) ([]WarehouseResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	warehouses, total, err := s.warehouseRepo.FindAll(ctx, shared.Filter{
		Page:     page,
		PageSize: pageSize,
		OrderBy:  "code",
		OrderDir: "asc",
		Search:   filter.Search,
	})
	if err != nil {
		return nil, 0, err
	}

	responses := make([]WarehouseResponse, len(warehouses))
	for i := range warehouses {
		responses[i] = ToWarehouseResponse(&warehouses[i])
	}
	return responses, total, nil
}

// CreateItem registers a sku in a warehouse. An opening quantity is booked
// through the ledger as an INBOUND movement in the same transaction.
func (s *CatalogService) CreateItem(ctx context.Context, req CreateItemRequest, actor uuid.UUID) (*ItemResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "create_item")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSKU, req.SKU,
		telemetry.SpanAttrWarehouseID, req.WarehouseID.String(),
		telemetry.SpanAttrQuantity, req.OpeningQuantity,
	)

	if req.OpeningQuantity < 0 {
		err := shared.NewDomainError(shared.CodeInvalidInput, "Opening quantity cannot be negative")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var item *inventory.Item
	var events []shared.DomainEvent
	staged := false

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.WarehouseRepo().FindByID(ctx, req.WarehouseID); err != nil {
			return err
		}

		var err error
		item, err = inventory.NewItem(req.SKU, req.Name, req.Description, req.WarehouseID, req.ReorderLevel, req.UnitCost)
		if err != nil {
			return err
		}

		_, err = repos.ItemRepo().FindBySKUAndWarehouse(ctx, item.SKU, item.WarehouseID)
		if err == nil {
			return shared.NewDomainErrorf(shared.CodeAlreadyExists, "Item %s already exists in this warehouse", item.SKU)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		if err := repos.ItemRepo().Create(ctx, item); err != nil {
			return err
		}
		events = append(events, inventory.NewItemCreatedEvent(item, actor))

		if req.OpeningQuantity > 0 {
			reference := strings.TrimSpace(req.OpeningReference)
			if reference == "" {
				reference = OpeningBalanceReference
			}
			_, event, err := s.ledger.ApplyMovement(ctx, repos, MovementCommand{
				ItemID:      item.ID,
				WarehouseID: item.WarehouseID,
				Type:        inventory.MovementTypeInbound,
				Quantity:    req.OpeningQuantity,
				Reference:   reference,
				PerformedBy: actor,
			})
			if err != nil {
				return err
			}
			events = append(events, event)

			// Reload so the response carries the post-movement version.
			item, err = repos.ItemRepo().FindByID(ctx, item.ID)
			if err != nil {
				return err
			}
		}

		staged, err = s.events.stage(ctx, repos, events)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.events.afterCommit(ctx, staged, events)

	s.logger.Info("Item created",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
		zap.String("warehouse_id", item.WarehouseID.String()),
		zap.Int64("opening_quantity", req.OpeningQuantity),
	)

	response := ToItemResponse(item)
	return &response, nil
}

// ListItems retrieves items with filtering and pagination
func (s *CatalogService) ListItems(ctx context.Context, filter ItemListFilter) ([]ItemResponse, int64, error) {
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	if filter.OrderBy == "" {
		filter.OrderBy = "sku"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "asc"
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
	if filter.SKU != "" {
		domainFilter.Filters[inventory.FilterSKU] = filter.SKU
	}
	if filter.BelowReorder {
		domainFilter.Filters[inventory.FilterBelowReorder] = true
	}

	items, total, err := s.itemRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ItemResponse, len(items))
	for i := range items {
		responses[i] = ToItemResponse(&items[i])
	}
	return responses, total, nil
}
