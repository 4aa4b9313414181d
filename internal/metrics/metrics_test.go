package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryProcessed(t *testing.T) {
	m := New()

	m.QueryProcessed(true, 2)
	m.QueryProcessed(true, 0)
	m.QueryProcessed(false, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("false")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.resourcesMatched))
}

func TestStoreFailure(t *testing.T) {
	m := New()

	m.StoreFailure("save_query")
	m.StoreFailure("save_query")
	m.StoreFailure("get_history")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeFailures.WithLabelValues("save_query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFailures.WithLabelValues("get_history")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/api/v1/ask-jiji", 200, 15*time.Millisecond)
	m.RateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `jiji_http_requests_total{code="200",method="POST",route="/api/v1/ask-jiji"} 1`)
	assert.Contains(t, string(body), "jiji_http_rate_limited_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
