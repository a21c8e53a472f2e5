package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// eventDispatcher delivers domain events raised inside a transaction.
// With an outbox the events are staged in the same transaction and relayed later;
// without one they are published once the transaction has committed.
// Publishing failures never fail the business operation.
type eventDispatcher struct {
	publisher shared.EventPublisher
	logger    *zap.Logger
}

func newEventDispatcher(logger *zap.Logger) *eventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &eventDispatcher{logger: logger}
}

// stage writes events to the outbox when the transaction has one.
// It reports whether the events were staged.
func (d *eventDispatcher) stage(ctx context.Context, repos TransactionalRepositories, events []shared.DomainEvent) (bool, error) {
	outbox := repos.Outbox()
	if outbox == nil || len(events) == 0 {
		return false, nil
	}
	if err := outbox.StageEvents(ctx, events...); err != nil {
		return false, err
	}
	return true, nil
}

// afterCommit publishes events that were not staged
func (d *eventDispatcher) afterCommit(ctx context.Context, staged bool, events []shared.DomainEvent) {
	if staged || d.publisher == nil || len(events) == 0 {
		return
	}
	if err := d.publisher.Publish(ctx, events...); err != nil {
		d.logger.Warn("Failed to publish domain events after commit",
			zap.Int("event_count", len(events)),
			zap.String("first_event_type", events[0].EventType()),
			zap.Error(err),
		)
	}
}
