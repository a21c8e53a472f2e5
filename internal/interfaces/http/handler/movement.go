package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// MovementHandler records and queries ledger movements
type MovementHandler struct {
	BaseHandler
	ledger    *inventoryapp.StockLedger
	transfers *inventoryapp.TransferOrchestrator
}

// NewMovementHandler creates a new MovementHandler
func NewMovementHandler(ledger *inventoryapp.StockLedger, transfers *inventoryapp.TransferOrchestrator) *MovementHandler {
	return &MovementHandler{ledger: ledger, transfers: transfers}
}

// Record handles POST /movements
func (h *MovementHandler) Record(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req inventoryapp.RecordMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	movement, err := h.ledger.RecordMovement(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// List handles GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	var filter inventoryapp.MovementListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	itemID, ok := h.queryUUID(c, "item_id")
	if !ok {
		return
	}
	warehouseID, ok := h.queryUUID(c, "warehouse_id")
	if !ok {
		return
	}
	filter.ItemID = itemID
	filter.WarehouseID = warehouseID

	movements, total, err := h.ledger.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, movements, total, filter.Page, filter.PageSize)
}

// ByReference handles GET /movements/by-reference/:reference. A transfer
// reference returns both legs, a stocktake reference its adjustments.
func (h *MovementHandler) ByReference(c *gin.Context) {
	movements, err := h.ledger.GetMovementsByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movements)
}

// Transfer handles POST /transfers
func (h *MovementHandler) Transfer(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req inventoryapp.TransferRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
