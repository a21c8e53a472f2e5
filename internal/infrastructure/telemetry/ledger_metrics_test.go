package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data map[string]metricdata.Aggregation, name string) int64 {
	t.Helper()
	sum, ok := data[name].(metricdata.Sum[int64])
	require.True(t, ok, "metric %s missing or not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewLedgerMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestLedgerMetrics_Handle(t *testing.T) {
	reader, mp := newManualMeter(t)
	metrics, err := telemetry.NewLedgerMetrics(mp.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "metrics", metrics.Name())
	assert.ElementsMatch(t, inventory.AllEventTypes(), metrics.EventTypes())

	warehouse := uuid.New()
	events := []shared.DomainEvent{
		&inventory.StockMovementRecordedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(inventory.EventTypeStockMovementRecorded, inventory.AggregateTypeItem, uuid.New()),
			WarehouseID:     warehouse,
			Type:            inventory.MovementTypeInbound,
			Quantity:        40,
		},
		&inventory.StockMovementRecordedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(inventory.EventTypeStockMovementRecorded, inventory.AggregateTypeItem, uuid.New()),
			WarehouseID:     warehouse,
			Type:            inventory.MovementTypeOutbound,
			Quantity:        15,
		},
		&inventory.StockTransferredEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(inventory.EventTypeStockTransferred, inventory.AggregateTypeItem, uuid.New()),
			Quantity:        7,
		},
		&inventory.StocktakeCompletedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(inventory.EventTypeStocktakeCompleted, inventory.AggregateTypeStocktake, uuid.New()),
			AdjustmentCount: 2,
			TotalVariance:   -5,
		},
		&inventory.StocktakeCancelledEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(inventory.EventTypeStocktakeCancelled, inventory.AggregateTypeStocktake, uuid.New()),
		},
	}
	for _, e := range events {
		require.NoError(t, metrics.Handle(ctx, e))
	}

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data, "stockledger_movements_total"))
	assert.Equal(t, int64(1), sumOf(t, data, "stockledger_transfers_total"))
	assert.Equal(t, int64(7), sumOf(t, data, "stockledger_transferred_units_total"))
	assert.Equal(t, int64(2), sumOf(t, data, "stockledger_stocktakes_total"))
	assert.Equal(t, int64(2), sumOf(t, data, "stockledger_stocktake_adjustments_total"))
	assert.Equal(t, int64(5), sumOf(t, data, "stockledger_events_total"))

	movements := data["stockledger_movements_total"].(metricdata.Sum[int64])
	assert.Len(t, movements.DataPoints, 2, "one series per movement type")

	quantity, ok := data["stockledger_movement_quantity"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var total float64
	for _, dp := range quantity.DataPoints {
		total += dp.Sum
	}
	assert.Equal(t, float64(55), total)

	variance, ok := data["stockledger_stocktake_variance"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, variance.DataPoints, 1)
	assert.Equal(t, float64(5), variance.DataPoints[0].Sum)
}
