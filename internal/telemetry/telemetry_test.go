package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/yairfalse/ephemera/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	cfg := config.OTELConfig{
		ServiceName: "test-ephemera",
		Traces:      config.TracesConfig{Enabled: false},
		Metrics:     config.MetricsConfig{Enabled: false},
	}

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotNil(t, p.Meter())
	assert.Nil(t, p.MetricsHandler())

	err = p.Shutdown(context.Background())
	require.NoError(t, err)
}

func TestNewProvider_WithEndpoint(t *testing.T) {
	cfg := config.OTELConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "test-ephemera",
		Traces:      config.TracesConfig{Enabled: true, SampleRate: 1.0},
		Metrics:     config.MetricsConfig{Enabled: true},
	}

	// Setup succeeds without a collector; exporters connect lazily.
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestNewProvider_InstallsGlobalTracer(t *testing.T) {
	p, err := NewProvider(context.Background(), config.OTELConfig{ServiceName: "test-ephemera"})
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	assert.Same(t, p.traces, otel.GetTracerProvider())

	_, span := otel.Tracer("ephemera.guard").Start(context.Background(), "guard.evaluate")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestProvider_PrometheusHandler(t *testing.T) {
	cfg := config.OTELConfig{
		ServiceName: "test-ephemera",
		Metrics:     config.MetricsConfig{Prometheus: true},
	}

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	m, err := NewMetrics(p.Meter())
	require.NoError(t, err)
	m.RecordScan(context.Background(), "container", 3)

	handler := p.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ephemera_scan_resources")
}
