package router

import (
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// LedgerHandlers groups the handlers served by the stock ledger API
type LedgerHandlers struct {
	Warehouses *handler.WarehouseHandler
	Items      *handler.ItemHandler
	Movements  *handler.MovementHandler
	Stocktakes *handler.StocktakeHandler
	// Outbox nil leaves the operator routes unregistered
	Outbox *handler.OutboxHandler
	Health *handler.HealthHandler
}

// RegisterLedgerRoutes mounts /health and the /api/v1 resource routes
func RegisterLedgerRoutes(engine *gin.Engine, h LedgerHandlers) *Router {
	engine.GET("/health", h.Health.Health)

	warehouses := NewDomainGroup("warehouses", "/warehouses").
		POST("", h.Warehouses.Create).
		GET("", h.Warehouses.List).
		GET("/:id", h.Warehouses.GetByID)

	items := NewDomainGroup("items", "/items").
		POST("", h.Items.Create).
		GET("", h.Items.List).
		GET("/:id", h.Items.GetByID).
		GET("/:id/balance", h.Items.VerifyBalance)

	movements := NewDomainGroup("movements", "/movements").
		POST("", h.Movements.Record).
		GET("", h.Movements.List).
		GET("/by-reference/:reference", h.Movements.ByReference)

	transfers := NewDomainGroup("transfers", "/transfers").
		POST("", h.Movements.Transfer)

	stocktakes := NewDomainGroup("stocktakes", "/stocktakes").
		POST("", h.Stocktakes.Create).
		GET("", h.Stocktakes.List).
		GET("/:id", h.Stocktakes.GetByID).
		POST("/:id/start", h.Stocktakes.Start).
		PUT("/:id/lines/:lineNo", h.Stocktakes.RecordCount).
		POST("/:id/complete", h.Stocktakes.Complete).
		POST("/:id/cancel", h.Stocktakes.Cancel)

	r := NewRouter(engine, WithAPIVersion("v1")).
		Register(warehouses).
		Register(items).
		Register(movements).
		Register(transfers).
		Register(stocktakes)

	if h.Outbox != nil {
		system := NewDomainGroup("system", "/system")
		system.Group("outbox", "/outbox").
			GET("/dead", h.Outbox.ListDead).
			POST("/dead/retry-all", h.Outbox.RetryAllDead).
			POST("/:id/retry", h.Outbox.RetryDead).
			DELETE("/sent", h.Outbox.PurgeSent).
			GET("/stats", h.Outbox.Stats)
		r.Register(system)
	}

	r.Setup()
	return r
}
