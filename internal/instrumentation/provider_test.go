package instrumentation

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "mailbot-test",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.NotNil(t, provider.Metrics(), "metrics must be usable even when disabled")
	assert.Nil(t, provider.Handler())
	assert.NotNil(t, provider.Tracer("test"))
	assert.NoError(t, provider.Shutdown(context.Background()))

	// Zero-value recorder must not panic.
	provider.Metrics().RecordHTTPRequest(context.Background(), "GET", "/api/labels", 200, time.Millisecond)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, MetricsExporter: "statsd"})
	assert.Error(t, err)
}

func TestNewProvider_PrometheusHandlerServesMetrics(t *testing.T) {
	provider := newTestProvider(t)
	require.True(t, provider.Enabled())

	ctx := context.Background()
	m := provider.Metrics()
	m.RecordHTTPRequest(ctx, "GET", "/api/labels", 200, 20*time.Millisecond)
	m.RecordUpstreamOperation(ctx, ServiceGmail, OperationListLabels, StatusSuccess, 10*time.Millisecond)
	m.RecordTokenResolution(ctx, "bearer", TokenResultFound)
	m.RecordEmailsFetched(ctx, 5)
	m.RecordToolInvocation(ctx, "gmail_list_labels", StatusSuccess, time.Millisecond)

	handler := provider.Handler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "http_requests_total")
	assert.Contains(t, out, "upstream_operations_total")
	assert.Contains(t, out, `operation="labels.list"`)
	assert.Contains(t, out, "token_resolutions_total")
	assert.Contains(t, out, "mcp_tool_invocations_total")
}

func TestNewProvider_TwoProvidersCoexist(t *testing.T) {
	a := newTestProvider(t)
	b := newTestProvider(t)
	assert.NotNil(t, a.Handler())
	assert.NotNil(t, b.Handler())
}
