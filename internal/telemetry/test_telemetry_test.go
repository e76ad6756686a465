package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/cache"
)

type fixedSnapshot cache.MetricsSnapshot

func (f fixedSnapshot) Metrics() cache.MetricsSnapshot { return cache.MetricsSnapshot(f) }

func TestCacheCountersReadSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterCacheMetrics(reg, fixedSnapshot{Hits: 3, Misses: 2, Corrupt: 1}))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 9)
	values := map[string]float64{}
	for _, mf := range mfs {
		values[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, 3.0, values["socialcore_cache_hits_total"])
	assert.Equal(t, 2.0, values["socialcore_cache_misses_total"])
	assert.Equal(t, 1.0, values["socialcore_cache_corrupt_total"])

	assert.Error(t, RegisterCacheMetrics(reg, fixedSnapshot{}), "duplicate registration")
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterCacheMetrics(reg, fixedSnapshot{Writes: 4}))
	srv := httptest.NewServer(NewRouter(reg, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "socialcore_cache_writes_total 4")
}

func TestHealthzReportsFailure(t *testing.T) {
	h := NewRouter(prometheus.NewRegistry(), func(context.Context) error { return errors.New("db down") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}
