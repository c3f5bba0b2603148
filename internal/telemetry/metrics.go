package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	DocumentsSaved      metric.Int64Counter
	EntriesIndexed      metric.Int64Counter
	IngestDuration      metric.Float64Histogram
	QueriesExecuted     metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-capture-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsSaved, err := meter.Int64Counter(
		"capture.documents.saved",
		metric.WithDescription("Total documents accepted for ingestion"),
	)
	if err != nil {
		return nil, err
	}

	entriesIndexed, err := meter.Int64Counter(
		"capture.entries.indexed",
		metric.WithDescription("Total index entries written"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"capture.ingest.duration",
		metric.WithDescription("Background ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queriesExecuted, err := meter.Int64Counter(
		"capture.queries.total",
		metric.WithDescription("Total retrieval queries executed"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		DocumentsSaved:      documentsSaved,
		EntriesIndexed:      entriesIndexed,
		IngestDuration:      ingestDuration,
		QueriesExecuted:     queriesExecuted,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordDocumentSaved records an accepted capture request
func (m *Metrics) RecordDocumentSaved(hasText bool, imageCount int) {
	attrs := []attribute.KeyValue{
		attribute.Bool("capture.has_text", hasText),
		attribute.Int("capture.image_count", imageCount),
	}

	m.DocumentsSaved.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIngest records the outcome of one background ingestion run
func (m *Metrics) RecordIngest(entries int64, duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("ingest.status", status),
	}

	m.EntriesIndexed.Add(context.Background(), entries, metric.WithAttributes(attrs...))
	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQuery records retrieval query metrics
func (m *Metrics) RecordQuery(fusion bool, decay bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("query.bm25_fusion", fusion),
		attribute.Bool("query.temporal_decay", decay),
	}

	m.QueriesExecuted.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
