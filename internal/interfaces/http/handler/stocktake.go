package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// StocktakeHandler drives the stocktake lifecycle
type StocktakeHandler struct {
	BaseHandler
	stocktakes *inventoryapp.StocktakeService
}

// NewStocktakeHandler creates a new StocktakeHandler
func NewStocktakeHandler(stocktakes *inventoryapp.StocktakeService) *StocktakeHandler {
	return &StocktakeHandler{stocktakes: stocktakes}
}

// Create handles POST /stocktakes
func (h *StocktakeHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req inventoryapp.CreateStocktakeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	st, err := h.stocktakes.Create(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, st)
}

// GetByID handles GET /stocktakes/:id
func (h *StocktakeHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	st, err := h.stocktakes.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, st)
}

// List handles GET /stocktakes
func (h *StocktakeHandler) List(c *gin.Context) {
	var filter inventoryapp.StocktakeListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	warehouseID, ok := h.queryUUID(c, "warehouse_id")
	if !ok {
		return
	}
	filter.WarehouseID = warehouseID

	list, total, err := h.stocktakes.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, filter.Page, filter.PageSize)
}

// Start handles POST /stocktakes/:id/start
func (h *StocktakeHandler) Start(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	st, err := h.stocktakes.Start(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, st)
}

// RecordCount handles PUT /stocktakes/:id/lines/:lineNo
func (h *StocktakeHandler) RecordCount(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.pathInt(c, "lineNo")
	if !ok {
		return
	}
	var req inventoryapp.RecordCountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	st, err := h.stocktakes.UpdateCount(c.Request.Context(), id, lineNo, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, st)
}

// Complete handles POST /stocktakes/:id/complete. The response carries the
// adjustment movements booked for every non-zero variance.
func (h *StocktakeHandler) Complete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.stocktakes.Complete(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel handles POST /stocktakes/:id/cancel
func (h *StocktakeHandler) Cancel(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelStocktakeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	st, err := h.stocktakes.Cancel(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, st)
}
