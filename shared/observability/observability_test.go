package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsExposeOtelInstruments(t *testing.T) {
	m, err := SetupPrometheusMetrics("companion-test")
	require.NoError(t, err)
	defer func() { _ = m.Provider.Shutdown(context.Background()) }()

	counter, err := m.Provider.Meter(InstrumentationName).Int64Counter("companion_test_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	w := httptest.NewRecorder()
	m.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "companion_test_events")
}
