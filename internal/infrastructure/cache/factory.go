package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency backends accepted in event.idempotency_backend
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendAuto   = "auto"
)

// redisDialer is replaced in tests
var redisDialer = func(ctx context.Context, cfg config.RedisConfig) (shared.IdempotencyStore, error) {
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
}

// NewIdempotencyStore picks the store named by the event configuration.
// "auto" tries Redis and falls back to memory with a warning; "redis" fails
// when Redis is unreachable.
func NewIdempotencyStore(ctx context.Context, eventCfg config.EventConfig, redisCfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend := strings.ToLower(strings.TrimSpace(eventCfg.IdempotencyBackend))
	switch backend {
	case BackendMemory:
		logger.Info("Using in-memory idempotency store")
		return NewMemoryIdempotencyStore(eventCfg.CleanupInterval), nil
	case BackendRedis:
		store, err := redisDialer(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("redis idempotency store: %w", err)
		}
		logger.Info("Using Redis idempotency store")
		return store, nil
	case BackendAuto, "":
		store, err := redisDialer(ctx, redisCfg)
		if err == nil {
			logger.Info("Using Redis idempotency store")
			return store, nil
		}
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store", zap.Error(err))
		return NewMemoryIdempotencyStore(eventCfg.CleanupInterval), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", eventCfg.IdempotencyBackend)
	}
}

// HealthCheck returns the connectivity check of a networked store, or nil for
// stores that live in process
func HealthCheck(store shared.IdempotencyStore) func(context.Context) error {
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping
	}
	return nil
}
