package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumeflow/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// Metrics holds all custom metrics for resumeflow
type Metrics struct {
	// Workflow engine client metrics
	RequestDuration metric.Float64Histogram
	RequestCount    metric.Int64Counter
	RequestErrors   metric.Int64Counter
	RateLimitHits   metric.Int64Counter

	// Status polling metrics
	PollCount    metric.Int64Counter
	PollFailures metric.Int64Counter

	// Local session storage metrics
	StorageOps      metric.Int64Counter
	StorageErrors   metric.Int64Counter
	StorageDuration metric.Float64Histogram

	// Business metrics
	StageOperations     metric.Int64Counter
	DiscoveryExchanges  metric.Int64Counter
	SuggestionsResolved metric.Int64Counter
	Downloads           metric.Int64Counter
	SessionsRecovered   metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config // Store full config for access to nested settings
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	if !obsConfig.Enabled {
		return &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}, nil
	}

	om := &ObservabilityManager{
		config:        obsConfig,
		fullConfig:    fullConfig,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	res, err := om.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// createResource creates the OpenTelemetry resource shared by traces and metrics
func (om *ObservabilityManager) createResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.getServiceInstanceID()),
		),
	)
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing(res *resource.Resource) error {
	var exporter trace.SpanExporter
	var err error

	if om.config.ConsoleOutput {
		// Console exporter for development
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	} else if om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled {
		exporter, err = om.createOTLPExporter()
	} else {
		exporter = &noOpSpanExporter{}
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics(res *resource.Resource) error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	meterProviderOptions := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}
	for _, reader := range readers {
		meterProviderOptions = append(meterProviderOptions, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(meterProviderOptions...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	om.metrics, err = NewMetrics(mp.Meter(om.config.ServiceName))
	return err
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if err := om.setupConsoleReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupOTLPReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupPrometheusReader(&readers); err != nil {
		return nil, err
	}

	// If no readers configured, use manual reader as fallback
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

// setupConsoleReader sets up console metric reader if enabled
func (om *ObservabilityManager) setupConsoleReader(readers *[]sdkmetric.Reader) error {
	if !om.config.ConsoleOutput {
		return nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create console metric exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	*readers = append(*readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	return nil
}

// setupOTLPReader sets up OTLP metric reader if enabled
func (om *ObservabilityManager) setupOTLPReader(readers *[]sdkmetric.Reader) error {
	if om.fullConfig == nil || !om.fullConfig.Observability.OTLP.Enabled {
		return nil
	}

	otlpReader, err := om.createOTLPMetricsReader()
	if err != nil {
		return fmt.Errorf("failed to create OTLP metrics reader: %w", err)
	}
	if otlpReader != nil {
		*readers = append(*readers, otlpReader)
	}
	return nil
}

// setupPrometheusReader sets up the Prometheus reader. The scrape endpoint is
// only served once StartPrometheus is called.
func (om *ObservabilityManager) setupPrometheusReader(readers *[]sdkmetric.Reader) error {
	if !om.config.Prometheus.Enabled {
		return nil
	}

	prometheusReader, prometheusMux, err := SetupPrometheusExporter(om.config.Prometheus)
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	if prometheusReader != nil {
		*readers = append(*readers, prometheusReader)
		om.prometheusServer = NewPrometheusServer(prometheusMux, om.config.Prometheus.Port)
	}
	return nil
}

// StartPrometheus serves the metrics endpoint until Shutdown. It is a no-op
// when Prometheus is disabled.
func (om *ObservabilityManager) StartPrometheus() error {
	if om.prometheusServer == nil {
		return nil
	}
	if err := StartPrometheusServer(om.prometheusServer); err != nil {
		return fmt.Errorf("failed to start Prometheus server: %w", err)
	}
	om.shutdownFuncs = append(om.shutdownFuncs, om.prometheusServer.Shutdown)
	return nil
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	if err := m.createWorkflowMetrics(meter); err != nil {
		return nil, err
	}

	if err := m.createStorageMetrics(meter); err != nil {
		return nil, err
	}

	if err := m.createBusinessMetrics(meter); err != nil {
		return nil, err
	}

	return m, nil
}

// createWorkflowMetrics creates engine client and polling metrics
func (m *Metrics) createWorkflowMetrics(meter metric.Meter) error {
	var err error

	m.RequestDuration, err = meter.Float64Histogram(
		"resumeflow_workflow_request_duration_seconds",
		metric.WithDescription("Time spent on workflow engine requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request duration metric: %w", err)
	}

	m.RequestCount, err = meter.Int64Counter(
		"resumeflow_workflow_requests_total",
		metric.WithDescription("Total number of workflow engine requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request count metric: %w", err)
	}

	m.RequestErrors, err = meter.Int64Counter(
		"resumeflow_workflow_request_errors_total",
		metric.WithDescription("Total number of failed workflow engine requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request error metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"resumeflow_rate_limit_hits_total",
		metric.WithDescription("Total number of 429 responses from the workflow engine"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.PollCount, err = meter.Int64Counter(
		"resumeflow_status_polls_total",
		metric.WithDescription("Total number of status polls"),
	)
	if err != nil {
		return fmt.Errorf("failed to create poll count metric: %w", err)
	}

	m.PollFailures, err = meter.Int64Counter(
		"resumeflow_status_poll_failures_total",
		metric.WithDescription("Total number of failed status polls"),
	)
	if err != nil {
		return fmt.Errorf("failed to create poll failure metric: %w", err)
	}

	return nil
}

// createStorageMetrics creates local session storage metrics
func (m *Metrics) createStorageMetrics(meter metric.Meter) error {
	var err error

	m.StorageOps, err = meter.Int64Counter(
		"resumeflow_storage_operations_total",
		metric.WithDescription("Total number of session storage operations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create storage operations metric: %w", err)
	}

	m.StorageErrors, err = meter.Int64Counter(
		"resumeflow_storage_errors_total",
		metric.WithDescription("Total number of failed session storage operations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create storage errors metric: %w", err)
	}

	m.StorageDuration, err = meter.Float64Histogram(
		"resumeflow_storage_operation_duration_seconds",
		metric.WithDescription("Time spent on session storage operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create storage duration metric: %w", err)
	}

	return nil
}

// createBusinessMetrics creates wizard-level metrics
func (m *Metrics) createBusinessMetrics(meter metric.Meter) error {
	var err error

	m.StageOperations, err = meter.Int64Counter(
		"resumeflow_stage_operations_total",
		metric.WithDescription("Total number of wizard stage operations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage operations metric: %w", err)
	}

	m.DiscoveryExchanges, err = meter.Int64Counter(
		"resumeflow_discovery_exchanges_total",
		metric.WithDescription("Total number of discovery answers submitted"),
	)
	if err != nil {
		return fmt.Errorf("failed to create discovery exchanges metric: %w", err)
	}

	m.SuggestionsResolved, err = meter.Int64Counter(
		"resumeflow_suggestions_resolved_total",
		metric.WithDescription("Total number of drafting suggestions accepted or declined"),
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestions resolved metric: %w", err)
	}

	m.Downloads, err = meter.Int64Counter(
		"resumeflow_downloads_total",
		metric.WithDescription("Total number of exported files downloaded"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads metric: %w", err)
	}

	m.SessionsRecovered, err = meter.Int64Counter(
		"resumeflow_sessions_recovered_total",
		metric.WithDescription("Total number of recovery prompts answered"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions recovered metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{} // Return empty metrics if not initialized
	}
	return om.metrics
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TrackStageOperation wraps a wizard operation in a span and counts it.
func (m *Metrics) TrackStageOperation(ctx context.Context, stage, operation string, fn func(context.Context) error) error {
	tracer := otel.Tracer("resumeflow.wizard")
	ctx, span := tracer.Start(ctx, stage+"."+operation)
	defer span.End()

	err := fn(ctx)

	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	if m.StageOperations != nil {
		m.StageOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
	return err
}

// RecordRequest implements the workflow client recorder.
func (m *Metrics) RecordRequest(ctx context.Context, endpoint string, status int, duration time.Duration, err error) {
	if m.RequestCount == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", routeTemplate(endpoint)),
		attribute.Int("status", status),
		attribute.Bool("success", err == nil && status < 400),
	)
	m.RequestCount.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil || status >= 400 {
		m.RequestErrors.Add(ctx, 1, attrs)
	}
}

// RecordRateLimit implements the workflow client recorder.
func (m *Metrics) RecordRateLimit(ctx context.Context, endpoint string) {
	if m.RateLimitHits != nil {
		m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", routeTemplate(endpoint))))
	}
}

// RecordPoll implements the tracker's poll recorder.
func (m *Metrics) RecordPoll(ctx context.Context, _ string, _ time.Duration, err error) {
	if m.PollCount == nil {
		return
	}
	m.PollCount.Add(ctx, 1)
	if err != nil {
		m.PollFailures.Add(ctx, 1)
	}
}

// RecordStorageOp implements the kvstore recorder.
func (m *Metrics) RecordStorageOp(op string, d time.Duration, err error) {
	if m.StorageOps == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.Bool("success", err == nil))
	m.StorageOps.Add(ctx, 1, attrs)
	m.StorageDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.StorageErrors.Add(ctx, 1, attrs)
	}
}

// RecordBusinessMetric records business-specific metrics
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, attributes ...attribute.KeyValue) {
	var counter metric.Int64Counter
	switch metricType {
	case "discovery_exchange":
		counter = m.DiscoveryExchanges
	case "suggestion_resolved":
		counter = m.SuggestionsResolved
	case "download":
		counter = m.Downloads
	case "session_recovered":
		counter = m.SessionsRecovered
	}
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attributes...))
	}
}

// No-op exporters for when console output is disabled
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}

	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}

	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// getServiceInstanceID returns the service instance ID from config or a default
func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "resumeflow-1"
}

// getMetricsCollectionInterval returns the configured metrics collection interval
func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
