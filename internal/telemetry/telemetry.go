// Package telemetry wires opt-in OpenTelemetry metrics. Disabled it costs
// nothing: the nil *Metrics receiver is valid and every record call is a
// no-op.
package telemetry

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/types"
)

// envEnabled gates the whole subsystem.
const envEnabled = "BIMATLAS_OTEL_ENABLED"

// Metrics holds the engine's instruments.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	ingestions      metric.Int64Counter
	productsWritten metric.Int64Counter
	edgesCreated    metric.Int64Counter
	ingestDuration  metric.Float64Histogram
	queryDuration   metric.Float64Histogram
	streamProducts  metric.Int64Counter
}

// Enabled reports whether metrics are switched on by the environment.
func Enabled() bool {
	v := os.Getenv(envEnabled)
	return v == "1" || v == "true"
}

// Init builds the metrics pipeline with a periodic stdout exporter. Returns
// nil when disabled; callers hold a possibly-nil *Metrics and never check.
func Init(log *zap.Logger) (*Metrics, error) {
	if !Enabled() {
		return nil, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	meter := provider.Meter("bimatlas")

	m := &Metrics{provider: provider}
	if m.ingestions, err = meter.Int64Counter("bimatlas.ingestions",
		metric.WithDescription("completed ingestion runs")); err != nil {
		return nil, err
	}
	if m.productsWritten, err = meter.Int64Counter("bimatlas.products_written",
		metric.WithDescription("product rows inserted (added + modified)")); err != nil {
		return nil, err
	}
	if m.edgesCreated, err = meter.Int64Counter("bimatlas.graph_edges_created",
		metric.WithDescription("graph edges created by the mirror")); err != nil {
		return nil, err
	}
	if m.ingestDuration, err = meter.Float64Histogram("bimatlas.ingest_duration_seconds",
		metric.WithDescription("end-to-end ingestion duration")); err != nil {
		return nil, err
	}
	if m.queryDuration, err = meter.Float64Histogram("bimatlas.query_duration_seconds",
		metric.WithDescription("read query duration by operation")); err != nil {
		return nil, err
	}
	if m.streamProducts, err = meter.Int64Counter("bimatlas.stream_products",
		metric.WithDescription("products delivered over SSE")); err != nil {
		return nil, err
	}

	log.Info("telemetry enabled")
	return m, nil
}

// Shutdown flushes and stops the pipeline.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordIngestion records one completed ingestion run.
func (m *Metrics) RecordIngestion(ctx context.Context, result *types.IngestionResult, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestions.Add(ctx, 1)
	m.productsWritten.Add(ctx, int64(result.Added+result.Modified))
	m.edgesCreated.Add(ctx, int64(result.EdgesCreated))
	m.ingestDuration.Record(ctx, d.Seconds())
}

// RecordQuery records the duration of one read operation.
func (m *Metrics) RecordQuery(ctx context.Context, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}

// RecordStream records one finished SSE product stream.
func (m *Metrics) RecordStream(ctx context.Context, products int, d time.Duration) {
	if m == nil {
		return
	}
	m.streamProducts.Add(ctx, int64(products))
	m.queryDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("operation", "stream_products")))
}
