package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/kindbridge/backend-giving/internal/obs"
)

func TestHTTPObsRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("giving_test", nil, reg)

	r := chi.NewRouter()
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/payment/success/{id}/{totalAmount}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/payment/success/i9/37.50", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	count := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/payment/success/{id}/{totalAmount}", "200"))
	require.Equal(t, float64(1), count)
}

func TestNewHTTPMetricsReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("giving_test", nil, reg)
	second := obs.NewHTTPMetrics("giving_test", nil, reg)

	require.NotNil(t, first)
	require.NotNil(t, second)
	second.ReqTotal.WithLabelValues(http.MethodGet, "/x", "200").Inc()
}

func TestStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	recorder := obs.NewStatusRecorder(rr)
	recorder.WriteHeader(http.StatusAccepted)
	n, err := recorder.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, http.StatusAccepted, recorder.Status())
	require.Equal(t, int64(5), recorder.BytesWritten())
}
