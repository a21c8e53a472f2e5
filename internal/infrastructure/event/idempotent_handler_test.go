package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// namedHandler gives the wrapped handler a stable idempotency key prefix
type namedHandler struct {
	*testHandler
}

func (namedHandler) Name() string { return "audit" }

func TestIdempotentHandler_FirstDelivery(t *testing.T) {
	ctx := context.Background()
	event := newMovementEvent(t)
	inner := newTestHandler()
	store := new(MockIdempotencyStore)
	key := "*event.testHandler:" + event.EventID().String()

	store.On("IsProcessed", ctx, key).Return(false, nil).Once()
	store.On("MarkProcessed", ctx, key, 24*time.Hour).Return(true, nil).Once()

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, h.Handle(ctx, event))

	assert.Len(t, inner.getHandled(), 1)
	assert.Equal(t, int64(1), h.GetMetrics().Stats().EventsProcessed)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_DuplicateIsSkipped(t *testing.T) {
	ctx := context.Background()
	event := newMovementEvent(t)
	inner := newTestHandler()
	store := new(MockIdempotencyStore)
	store.On("IsProcessed", ctx, "*event.testHandler:"+event.EventID().String()).Return(true, nil)

	h := NewIdempotentHandler(inner, store, nil)
	require.NoError(t, h.Handle(ctx, event))

	assert.Empty(t, inner.getHandled())
	assert.Equal(t, int64(1), h.GetMetrics().Stats().EventsDuplicate)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_FailureIsNotMarked(t *testing.T) {
	ctx := context.Background()
	event := newMovementEvent(t)
	inner := newTestHandler()
	inner.err = errors.New("audit store down")
	store := new(MockIdempotencyStore)
	store.On("IsProcessed", ctx, "*event.testHandler:"+event.EventID().String()).Return(false, nil)

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	err := h.Handle(ctx, event)

	assert.EqualError(t, err, "audit store down")
	assert.Equal(t, int64(1), h.GetMetrics().Stats().EventsFailed)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_StoreErrorStillHandles(t *testing.T) {
	ctx := context.Background()
	event := newMovementEvent(t)
	inner := newTestHandler()
	store := new(MockIdempotencyStore)
	store.On("IsProcessed", ctx, mock.Anything).Return(false, errors.New("redis timeout"))
	store.On("MarkProcessed", ctx, mock.Anything, mock.Anything).Return(false, errors.New("redis timeout"))

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, h.Handle(ctx, event))
	assert.Len(t, inner.getHandled(), 1)
}

func TestIdempotentHandler_KeyUsesHandlerName(t *testing.T) {
	ctx := context.Background()
	event := newMovementEvent(t)
	store := new(MockIdempotencyStore)
	key := "audit:" + event.EventID().String()
	store.On("IsProcessed", ctx, key).Return(false, nil)
	store.On("MarkProcessed", ctx, key, time.Minute).Return(true, nil)

	h := NewIdempotentHandler(namedHandler{newTestHandler()}, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{TTL: time.Minute, Enabled: true}))
	require.NoError(t, h.Handle(ctx, event))
	store.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := newTestHandler()
	store := new(MockIdempotencyStore)

	h := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	require.NoError(t, h.Handle(context.Background(), newMovementEvent(t)))

	assert.Len(t, inner.getHandled(), 1)
	store.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything)
}

func TestWrapHandlersWithIdempotency(t *testing.T) {
	metrics := &IdempotencyMetrics{}
	a := newTestHandler("A")
	b := newTestHandler("B")

	wrapped := WrapHandlersWithIdempotency([]shared.EventHandler{a, b}, new(MockIdempotencyStore), zap.NewNop(),
		WithIdempotencyMetrics(metrics))

	require.Len(t, wrapped, 2)
	assert.Equal(t, []string{"A"}, wrapped[0].EventTypes())
	assert.Same(t, metrics, wrapped[1].(*IdempotentHandler).GetMetrics())
}

// mapIdempotencyStore is a plain map store for end-to-end redelivery tests
type mapIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (s *mapIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *mapIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *mapIdempotencyStore) Close() error { return nil }

// flakyAudit fails its first delivery
type flakyAudit struct {
	*testHandler
	calls int
}

func (h *flakyAudit) Name() string { return "audit" }

func (h *flakyAudit) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.calls++
	if h.calls == 1 {
		return errors.New("audit store down")
	}
	return h.testHandler.Handle(ctx, event)
}

type countingHandler struct{ *testHandler }

func TestWrapHandlersWithIdempotency_RedeliveryReachesOnlyFailedHandler(t *testing.T) {
	ctx := context.Background()
	event := newMovementEvent(t)
	audit := &flakyAudit{testHandler: newTestHandler()}
	alerts := newTestHandler()
	metrics := countingHandler{newTestHandler()}

	bus := NewInMemoryEventBus(zap.NewNop())
	store := &mapIdempotencyStore{keys: map[string]bool{}}
	for _, h := range WrapHandlersWithIdempotency([]shared.EventHandler{audit, alerts, metrics}, store, zap.NewNop()) {
		bus.Subscribe(h)
	}

	require.Error(t, bus.Publish(ctx, event), "first delivery fails in the audit handler")
	require.NoError(t, bus.Publish(ctx, event), "outbox retry")
	require.NoError(t, bus.Publish(ctx, event), "late duplicate")

	assert.Equal(t, 2, audit.calls)
	assert.Len(t, audit.getHandled(), 1)
	assert.Len(t, alerts.getHandled(), 1, "alerts must not repeat on retry")
	assert.Len(t, metrics.getHandled(), 1, "metrics must not double count on retry")
}
