package handler

import (
	"time"

	"github.com/erp/stockledger/internal/application/event"
	"github.com/gin-gonic/gin"
)

// OutboxHandler exposes dead letter inspection and retry for the event outbox
type OutboxHandler struct {
	BaseHandler
	outboxService *event.OutboxService
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outboxService *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{
		outboxService: outboxService,
	}
}

// ListDead handles GET /system/outbox/dead
func (h *OutboxHandler) ListDead(c *gin.Context) {
	var filter event.OutboxFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	result, err := h.outboxService.ListDeadEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// RetryDead handles POST /system/outbox/:id/retry
func (h *OutboxHandler) RetryDead(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entry, err := h.outboxService.RetryDeadEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllResponse reports how many dead entries were re-queued
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// RetryAllDead handles POST /system/outbox/dead/retry-all
func (h *OutboxHandler) RetryAllDead(c *gin.Context) {
	count, err := h.outboxService.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: count})
}

// PurgeRequest selects the sent entries to delete by age
type PurgeRequest struct {
	OlderThan string `form:"older_than" binding:"required"`
}

// PurgeResponse reports how many sent entries were deleted
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// PurgeSent handles DELETE /system/outbox/sent?older_than=72h
func (h *OutboxHandler) PurgeSent(c *gin.Context) {
	var req PurgeRequest
	if !h.bindQuery(c, &req) {
		return
	}
	retention, err := time.ParseDuration(req.OlderThan)
	if err != nil || retention <= 0 {
		h.BadRequest(c, "older_than must be a positive duration such as 72h")
		return
	}

	deleted, err := h.outboxService.PurgeSent(c.Request.Context(), retention)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PurgeResponse{Deleted: deleted})
}

// Stats handles GET /system/outbox/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outboxService.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
