package telemetry

import (
	"context"
	"errors"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// LedgerMetrics turns committed ledger events into counters and histograms.
// It is subscribed to the event bus like any other handler, so it only ever
// sees changes that were actually committed.
type LedgerMetrics struct {
	movementsTotal      *Counter
	movementQuantity    *Histogram
	transfersTotal      *Counter
	transferredUnits    *Counter
	stocktakesTotal     *Counter
	stocktakeVariance   *Histogram
	stocktakeAdjustment *Counter
	eventsTotal         *Counter
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &LedgerMetrics{}
	var err error

	if m.movementsTotal, err = NewCounter(meter,
		"stockledger_movements_total", "Stock movements recorded", "{movements}"); err != nil {
		return nil, err
	}
	if m.movementQuantity, err = NewHistogram(meter, HistogramOpts{
		Name:        "stockledger_movement_quantity",
		Description: "Units moved per stock movement",
		Unit:        "{units}",
		Boundaries:  QuantityBuckets,
	}); err != nil {
		return nil, err
	}
	if m.transfersTotal, err = NewCounter(meter,
		"stockledger_transfers_total", "Inter-warehouse transfers completed", "{transfers}"); err != nil {
		return nil, err
	}
	if m.transferredUnits, err = NewCounter(meter,
		"stockledger_transferred_units_total", "Units moved between warehouses", "{units}"); err != nil {
		return nil, err
	}
	if m.stocktakesTotal, err = NewCounter(meter,
		"stockledger_stocktakes_total", "Stocktakes reaching a terminal state", "{stocktakes}"); err != nil {
		return nil, err
	}
	if m.stocktakeVariance, err = NewHistogram(meter, HistogramOpts{
		Name:        "stockledger_stocktake_variance",
		Description: "Absolute net variance of a completed stocktake",
		Unit:        "{units}",
		Boundaries:  QuantityBuckets,
	}); err != nil {
		return nil, err
	}
	if m.stocktakeAdjustment, err = NewCounter(meter,
		"stockledger_stocktake_adjustments_total", "Adjusting movements posted by stocktakes", "{movements}"); err != nil {
		return nil, err
	}
	if m.eventsTotal, err = NewCounter(meter,
		"stockledger_events_total", "Ledger events observed", "{events}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Name keys this handler in the idempotency store
func (m *LedgerMetrics) Name() string { return "metrics" }

// EventTypes subscribes to every ledger event
func (m *LedgerMetrics) EventTypes() []string {
	return inventory.AllEventTypes()
}

// Handle records the event. It never fails.
func (m *LedgerMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	m.eventsTotal.Inc(ctx, AttrEventType.String(event.EventType()))

	switch e := event.(type) {
	case *inventory.StockMovementRecordedEvent:
		attrs := []attribute.KeyValue{
			AttrMovementType.String(e.Type.String()),
			AttrWarehouseID.String(e.WarehouseID.String()),
		}
		m.movementsTotal.Inc(ctx, attrs...)
		m.movementQuantity.Record(ctx, float64(e.Quantity), attrs...)
	case *inventory.StockTransferredEvent:
		m.transfersTotal.Inc(ctx)
		m.transferredUnits.Add(ctx, e.Quantity)
	case *inventory.StocktakeCompletedEvent:
		m.stocktakesTotal.Inc(ctx, AttrOutcome.String("completed"))
		m.stocktakeAdjustment.Add(ctx, int64(e.AdjustmentCount))
		variance := e.TotalVariance
		if variance < 0 {
			variance = -variance
		}
		m.stocktakeVariance.Record(ctx, float64(variance))
	case *inventory.StocktakeCancelledEvent:
		m.stocktakesTotal.Inc(ctx, AttrOutcome.String("cancelled"))
	}
	return nil
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)
