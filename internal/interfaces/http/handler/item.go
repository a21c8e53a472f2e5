package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// ItemHandler serves the item catalog and per-item balance checks
type ItemHandler struct {
	BaseHandler
	catalog *inventoryapp.CatalogService
	ledger  *inventoryapp.StockLedger
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(catalog *inventoryapp.CatalogService, ledger *inventoryapp.StockLedger) *ItemHandler {
	return &ItemHandler{catalog: catalog, ledger: ledger}
}

// Create handles POST /items. A positive opening quantity is booked as an
// INBOUND movement in the same transaction.
func (h *ItemHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req inventoryapp.CreateItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	item, err := h.catalog.CreateItem(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// GetByID handles GET /items/:id
func (h *ItemHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	item, err := h.ledger.GetItem(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// List handles GET /items
func (h *ItemHandler) List(c *gin.Context) {
	var filter inventoryapp.ItemListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	warehouseID, ok := h.queryUUID(c, "warehouse_id")
	if !ok {
		return
	}
	filter.WarehouseID = warehouseID

	items, total, err := h.catalog.ListItems(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// VerifyBalance handles GET /items/:id/balance. It compares the stored
// quantity with the sum of the item's movements.
func (h *ItemHandler) VerifyBalance(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	check, err := h.ledger.VerifyItemBalance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}
