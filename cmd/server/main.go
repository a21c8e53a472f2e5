package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	auditapp "github.com/erp/stockledger/internal/application/audit"
	eventapp "github.com/erp/stockledger/internal/application/event"
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/resilience"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = telemetry.BridgeLogger(log, lp, cfg.Telemetry.ServiceName)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:            cfg.Profiling.Enabled,
		ServerAddress:      cfg.Profiling.ServerAddress,
		ApplicationName:    cfg.Profiling.ApplicationName,
		BasicAuthUser:      cfg.Profiling.BasicAuthUser,
		BasicAuthPassword:  cfg.Profiling.BasicAuthPassword,
		ContentionProfiles: cfg.Profiling.ContentionProfiles,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		if err := tp.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithSlowThreshold(cfg.Database.SlowThreshold))
	db, err := persistence.NewDatabaseWithGormLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	meter := mp.Meter("stockledger")
	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB); err != nil {
			log.Warn("Failed to register connection pool metrics", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Repositories and ledger services
	warehouseRepo := persistence.NewGormWarehouseRepository(db.DB)
	itemRepo := persistence.NewGormItemRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)
	stocktakeRepo := persistence.NewGormStocktakeRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	ledger := inventoryapp.NewStockLedger(txScope, itemRepo, movementRepo, log)
	catalog := inventoryapp.NewCatalogService(txScope, warehouseRepo, itemRepo, ledger, log)
	stocktakes := inventoryapp.NewStocktakeService(txScope, stocktakeRepo, ledger, log)
	transfers := inventoryapp.NewTransferOrchestrator(txScope, log)

	// Events: audit, reorder alerts and metrics all hang off the bus
	bus := event.NewInMemoryEventBus(log)
	idempotencyStore, err := cache.NewIdempotencyStore(ctx, cfg.Event, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	breakerCfg := resilience.DefaultCircuitBreakerConfig("audit-recorder")
	if cfg.Audit.BreakerMaxFailures > 0 {
		breakerCfg.MaxFailures = cfg.Audit.BreakerMaxFailures
	}
	if cfg.Audit.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.Audit.BreakerTimeout
	}
	auditRecorder := resilience.NewAuditRecorder(
		persistence.NewGormAuditRecorder(db.DB),
		resilience.NewCircuitBreaker(breakerCfg, log),
	)
	idempotency := shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true}
	if idempotency.TTL <= 0 {
		idempotency = shared.DefaultIdempotencyConfig()
	}
	// Every handler is idempotent: an outbox retry after one handler failed
	// redelivers the event to all of them.
	handlers := []shared.EventHandler{
		auditapp.NewHandler(auditRecorder, log),
		inventoryapp.NewReorderAlertHandler(log),
	}
	if ledgerMetrics, err := telemetry.NewLedgerMetrics(meter); err != nil {
		log.Warn("Ledger metrics disabled", zap.Error(err))
	} else {
		handlers = append(handlers, ledgerMetrics)
	}
	for _, h := range event.WrapHandlersWithIdempotency(handlers, idempotencyStore, log, event.WithIdempotencyConfig(idempotency)) {
		bus.Subscribe(h)
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var processor *event.OutboxProcessor
	if cfg.Event.OutboxEnabled {
		serializer := event.NewLedgerEventSerializer()
		txScope.SetOutboxEventSaver(event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries)))

		if cfg.Event.ProcessorEnabled {
			processor = event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
				BatchSize:        cfg.Event.BatchSize,
				PollInterval:     cfg.Event.PollInterval,
				CleanupEnabled:   cfg.Event.CleanupEnabled,
				CleanupRetention: cfg.Event.CleanupRetention,
				CleanupInterval:  cfg.Event.CleanupInterval,
			}, log)
			if err := processor.Start(ctx); err != nil {
				log.Fatal("Failed to start outbox processor", zap.Error(err))
			}
		}
		log.Info("Transactional outbox enabled", zap.Bool("processor", processor != nil))
	} else {
		ledger.SetEventPublisher(bus)
		catalog.SetEventPublisher(bus)
		stocktakes.SetEventPublisher(bus)
		transfers.SetEventPublisher(bus)
		log.Info("Publishing ledger events after commit")
	}

	// HTTP
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, 10*time.Minute)
		go limiter.Run(ctx)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           cors,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TracerProvider: otel.GetTracerProvider(),
		Meter:          meter,
		RateLimiter:    limiter,
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	health := handler.NewHealthHandler(cfg.App.Name, version).
		Register("database", db.Ping)
	if check := cache.HealthCheck(idempotencyStore); check != nil {
		health.Register("redis", check)
	}
	httpHandlers := router.LedgerHandlers{
		Warehouses: handler.NewWarehouseHandler(catalog),
		Items:      handler.NewItemHandler(catalog, ledger),
		Movements:  handler.NewMovementHandler(ledger, transfers),
		Stocktakes: handler.NewStocktakeHandler(stocktakes),
		Health:     health,
	}
	if cfg.Event.OutboxEnabled {
		httpHandlers.Outbox = handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log))
	}
	router.RegisterLedgerRoutes(engine, httpHandlers)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Warn("Outbox processor did not stop in time", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Failed to stop event bus", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logger": lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
