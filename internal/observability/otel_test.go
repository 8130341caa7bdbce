package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"resumeflow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestMetricsRecorders(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "/api/optimize/t1/answer", 200, 10*time.Millisecond, nil)
	m.RecordRequest(ctx, "/api/optimize/t1/answer", 502, 10*time.Millisecond, nil)
	m.RecordRequest(ctx, "/api/optimize/start", 0, time.Millisecond, errors.New("dial"))
	m.RecordRateLimit(ctx, "/api/optimize/start")
	m.RecordPoll(ctx, "t1", time.Millisecond, nil)
	m.RecordPoll(ctx, "t1", time.Millisecond, errors.New("timeout"))
	m.RecordStorageOp("set", time.Millisecond, nil)
	m.RecordBusinessMetric(ctx, "download", attribute.String("format", "pdf"))
	m.RecordBusinessMetric(ctx, "unknown")

	sums := collect(t, reader)
	assert.EqualValues(t, 3, sums["resumeflow_workflow_requests_total"])
	assert.EqualValues(t, 2, sums["resumeflow_workflow_request_errors_total"])
	assert.EqualValues(t, 1, sums["resumeflow_rate_limit_hits_total"])
	assert.EqualValues(t, 2, sums["resumeflow_status_polls_total"])
	assert.EqualValues(t, 1, sums["resumeflow_status_poll_failures_total"])
	assert.EqualValues(t, 1, sums["resumeflow_storage_operations_total"])
	assert.EqualValues(t, 1, sums["resumeflow_downloads_total"])
}

func TestTrackStageOperation(t *testing.T) {
	m, reader := newTestMetrics(t)

	boom := errors.New("boom")
	err := m.TrackStageOperation(context.Background(), "discovery", "confirm", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, m.TrackStageOperation(context.Background(), "drafting", "approve", func(context.Context) error { return nil }))

	assert.EqualValues(t, 2, collect(t, reader)["resumeflow_stage_operations_total"])
}

func TestEmptyMetricsAreSafe(t *testing.T) {
	m := (&ObservabilityManager{}).GetMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordRequest(ctx, "/x", 200, time.Second, nil)
		m.RecordRateLimit(ctx, "/x")
		m.RecordPoll(ctx, "t", time.Second, nil)
		m.RecordStorageOp("get", time.Second, nil)
		m.RecordBusinessMetric(ctx, "download")
		_ = m.TrackStageOperation(ctx, "s", "o", func(context.Context) error { return nil })
	})
}

func TestRouteTemplate(t *testing.T) {
	tests := map[string]string{
		"/api/optimize/start":                            "/api/optimize/start",
		"/api/optimize/status/abc":                       "/api/optimize/status/{thread}",
		"/api/optimize/abc/answer":                       "/api/optimize/{thread}/answer",
		"/api/optimize/abc/drafting/suggestion/s9/accept": "/api/optimize/{thread}/drafting/suggestion/{id}/accept",
		"/healthz": "/healthz",
	}
	for in, want := range tests {
		assert.Equal(t, want, routeTemplate(in), in)
	}
}

func TestDisabledManager(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "resumeflow"

	om, err := NewObservabilityManager(GetObservabilityConfig(cfg, "1.2.3"), cfg)
	require.NoError(t, err)
	assert.NotNil(t, om.Tracer("x"))
	require.NoError(t, om.StartPrometheus())
	require.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfigUsesAppVersion(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "resumeflow"
	cfg.Observability.Prometheus.Port = "9191"

	got := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "1.2.3", got.ServiceVersion)
	assert.Equal(t, "9191", got.Prometheus.Port)
}
