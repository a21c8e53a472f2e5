package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// WarehouseHandler serves the warehouse registry
type WarehouseHandler struct {
	BaseHandler
	catalog *inventoryapp.CatalogService
}

// NewWarehouseHandler creates a new WarehouseHandler
func NewWarehouseHandler(catalog *inventoryapp.CatalogService) *WarehouseHandler {
	return &WarehouseHandler{catalog: catalog}
}

// Create handles POST /warehouses
func (h *WarehouseHandler) Create(c *gin.Context) {
	if _, ok := h.requireActor(c); !ok {
		return
	}
	var req inventoryapp.CreateWarehouseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	warehouse, err := h.catalog.CreateWarehouse(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, warehouse)
}

// GetByID handles GET /warehouses/:id
func (h *WarehouseHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	warehouse, err := h.catalog.GetWarehouse(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, warehouse)
}

// List handles GET /warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	var filter inventoryapp.WarehouseListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	warehouses, total, err := h.catalog.ListWarehouses(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, warehouses, total, filter.Page, filter.PageSize)
}
