package router

import (
	"fmt"

	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EngineConfig selects the middleware stack of the HTTP engine
type EngineConfig struct {
	ServiceName    string
	TrustedProxies []string
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	// TracerProvider nil uses the global provider
	TracerProvider trace.TracerProvider
	// Meter nil disables HTTP metrics
	Meter metric.Meter
	// RateLimiter nil disables rate limiting
	RateLimiter *middleware.RateLimiter
}

// NewEngine builds a gin engine with the ledger middleware stack:
// recovery, request id, tracing, access log, actor, span attributes,
// metrics, profiling labels, security headers, CORS, body limit and
// rate limiting, in that order.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, fmt.Errorf("setup validator: %w", err)
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, fmt.Errorf("set trusted proxies: %w", err)
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("create http metrics: %w", err)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.TracerProvider),
		logger.GinMiddleware(log),
		middleware.Actor(),
		middleware.SpanAttributes(),
		httpMetrics,
		middleware.Profiling("/health"),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	return engine, nil
}
