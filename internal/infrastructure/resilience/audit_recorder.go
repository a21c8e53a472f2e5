package resilience

import (
	"context"

	"github.com/erp/stockledger/internal/domain/audit"
)

// AuditRecorder guards an audit.Recorder with a circuit breaker. While the
// breaker is open, Record fails fast and the event stays eligible for redelivery.
type AuditRecorder struct {
	next    audit.Recorder
	breaker *CircuitBreaker
}

// NewAuditRecorder wraps next with breaker
func NewAuditRecorder(next audit.Recorder, breaker *CircuitBreaker) *AuditRecorder {
	return &AuditRecorder{next: next, breaker: breaker}
}

// Record forwards the entry through the breaker
func (r *AuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	return r.breaker.Execute(func() error {
		return r.next.Record(ctx, entry)
	})
}

// Breaker exposes the underlying breaker
func (r *AuditRecorder) Breaker() *CircuitBreaker {
	return r.breaker
}

var _ audit.Recorder = (*AuditRecorder)(nil)
