package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	eventapp "github.com/erp/stockledger/internal/application/event"
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testAPI serves the ledger handlers over an in-memory sqlite database
type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	db     *gorm.DB
	actor  uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))
	require.NoError(t, middleware.SetupValidator())

	scope := persistence.NewGormTransactionScope(db)
	itemRepo := persistence.NewGormItemRepository(db)
	ledger := inventoryapp.NewStockLedger(scope, itemRepo, persistence.NewGormStockMovementRepository(db), nil)
	catalog := inventoryapp.NewCatalogService(scope, persistence.NewGormWarehouseRepository(db), itemRepo, ledger, nil)
	stocktakes := inventoryapp.NewStocktakeService(scope, persistence.NewGormStocktakeRepository(db), ledger, nil)
	transfers := inventoryapp.NewTransferOrchestrator(scope, nil)
	outbox := eventapp.NewOutboxService(event.NewGormOutboxRepository(db), nil)

	warehouses := NewWarehouseHandler(catalog)
	items := NewItemHandler(catalog, ledger)
	movements := NewMovementHandler(ledger, transfers)
	stocktakeHandler := NewStocktakeHandler(stocktakes)
	outboxHandler := NewOutboxHandler(outbox)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Actor())
	api := engine.Group("/api/v1")
	api.POST("/warehouses", warehouses.Create)
	api.GET("/warehouses", warehouses.List)
	api.GET("/warehouses/:id", warehouses.GetByID)
	api.POST("/items", items.Create)
	api.GET("/items", items.List)
	api.GET("/items/:id", items.GetByID)
	api.GET("/items/:id/balance", items.VerifyBalance)
	api.POST("/movements", movements.Record)
	api.GET("/movements", movements.List)
	api.GET("/movements/by-reference/:reference", movements.ByReference)
	api.POST("/transfers", movements.Transfer)
	api.POST("/stocktakes", stocktakeHandler.Create)
	api.GET("/stocktakes", stocktakeHandler.List)
	api.GET("/stocktakes/:id", stocktakeHandler.GetByID)
	api.POST("/stocktakes/:id/start", stocktakeHandler.Start)
	api.PUT("/stocktakes/:id/lines/:lineNo", stocktakeHandler.RecordCount)
	api.POST("/stocktakes/:id/complete", stocktakeHandler.Complete)
	api.POST("/stocktakes/:id/cancel", stocktakeHandler.Cancel)
	api.GET("/system/outbox/dead", outboxHandler.ListDead)
	api.POST("/system/outbox/dead/retry-all", outboxHandler.RetryAllDead)
	api.POST("/system/outbox/:id/retry", outboxHandler.RetryDead)
	api.DELETE("/system/outbox/sent", outboxHandler.PurgeSent)
	api.GET("/system/outbox/stats", outboxHandler.Stats)

	return &testAPI{t: t, engine: engine, db: db, actor: uuid.New()}
}

// apiResult is a decoded response envelope with the raw data kept for typed decoding
type apiResult struct {
	Code    int
	Success bool
	Data    json.RawMessage
	Error   *dto.ErrorInfo
	Meta    *dto.Meta
}

func (r apiResult) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

func (a *testAPI) do(method, path string, body any, withActor bool) apiResult {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if withActor {
		req.Header.Set(middleware.HeaderActorID, a.actor.String())
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
		Meta    *dto.Meta       `json:"meta"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return apiResult{
		Code:    w.Code,
		Success: envelope.Success,
		Data:    envelope.Data,
		Error:   envelope.Error,
		Meta:    envelope.Meta,
	}
}

func (a *testAPI) get(path string) apiResult {
	return a.do(http.MethodGet, path, nil, false)
}

func (a *testAPI) write(method, path string, body any) apiResult {
	return a.do(method, path, body, true)
}

func (a *testAPI) createWarehouse(code string) inventoryapp.WarehouseResponse {
	a.t.Helper()
	res := a.write(http.MethodPost, "/api/v1/warehouses", inventoryapp.CreateWarehouseRequest{
		Code: code,
		Name: "Warehouse " + code,
	})
	require.Equal(a.t, http.StatusCreated, res.Code, res.Error)
	var wh inventoryapp.WarehouseResponse
	res.decode(a.t, &wh)
	return wh
}

func (a *testAPI) createItem(sku string, warehouseID uuid.UUID, opening int64) inventoryapp.ItemResponse {
	a.t.Helper()
	res := a.write(http.MethodPost, "/api/v1/items", map[string]any{
		"sku":              sku,
		"name":             "Item " + sku,
		"warehouse_id":     warehouseID,
		"reorder_level":    2,
		"unit_cost":        "1.50",
		"opening_quantity": opening,
	})
	require.Equal(a.t, http.StatusCreated, res.Code, res.Error)
	var item inventoryapp.ItemResponse
	res.decode(a.t, &item)
	return item
}
