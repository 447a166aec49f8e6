package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.RecordCache("feed", true, nil)
	m.RecordCache("feed", false, nil)
	m.RecordCache("feed", false, nil)
	m.RecordSummarizer("gemini", errors.New("timeout"))
	m.RecordSync("hackernews", 12, nil)
	m.RecordAward("streak-3")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("feed", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("feed", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummarizerCalls.WithLabelValues("gemini", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SyncedItems.WithLabelValues("hackernews", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AchievementsAwarded.WithLabelValues("streak-3")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTP("GET", "/api/feed", "200", 0.1)
		m.RecordCache("pack", true, nil)
		m.RecordActivity("quiz")
		m.RecordPack(map[string]int{"research": 6})
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.RecordHTTP("GET", "/api/feed", "200", 0.02)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `social_learning_http_requests_total{method="GET",route="/api/feed",status="200"} 1`)
}
