package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 应用自定义的 Prometheus 指标。
// 所有 Record* 方法对 nil 接收者安全，未启用指标时直接传 nil。
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPLatency         *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	SummarizerCalls     *prometheus.CounterVec
	SyncedItems         *prometheus.CounterVec
	ActivitiesTracked   *prometheus.CounterVec
	AchievementsAwarded *prometheus.CounterVec
	PackItems           *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New 在给定 registry 上注册指标；测试中每次传入新的 registry
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "social_learning_http_requests_total",
			Help: "Total HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "social_learning_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"route"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "social_learning_cache_lookups_total",
			Help: "Cache lookups by artifact and result (hit/miss/error)",
		}, []string{"artifact", "result"}),

		SummarizerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "social_learning_summarizer_calls_total",
			Help: "Summarization provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),

		SyncedItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "social_learning_synced_items_total",
			Help: "Items fetched from upstream sources",
		}, []string{"fetcher", "outcome"}),

		ActivitiesTracked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "social_learning_activities_tracked_total",
			Help: "Learning activities tracked by type",
		}, []string{"type"}),

		AchievementsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "social_learning_achievements_awarded_total",
			Help: "Achievements awarded by achievement id",
		}, []string{"achievement"}),

		PackItems: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "social_learning_pack_items",
			Help:    "Items per composed daily pack by source",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}, []string{"source"}),

		gatherer: reg,
	}
}

// Handler /metrics 端点
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) RecordCache(artifact string, hit bool, err error) {
	if m == nil {
		return
	}
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(artifact, result).Inc()
}

func (m *Metrics) RecordSummarizer(provider string, err error) {
	if m == nil {
		return
	}
	m.SummarizerCalls.WithLabelValues(provider, outcome(err)).Inc()
}

func (m *Metrics) RecordSync(fetcher string, n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SyncedItems.WithLabelValues(fetcher, "error").Inc()
		return
	}
	m.SyncedItems.WithLabelValues(fetcher, "ok").Add(float64(n))
}

func (m *Metrics) RecordActivity(activityType string) {
	if m == nil {
		return
	}
	m.ActivitiesTracked.WithLabelValues(activityType).Inc()
}

func (m *Metrics) RecordAward(achievementID string) {
	if m == nil {
		return
	}
	m.AchievementsAwarded.WithLabelValues(achievementID).Inc()
}

func (m *Metrics) RecordPack(counts map[string]int) {
	if m == nil {
		return
	}
	for source, n := range counts {
		m.PackItems.WithLabelValues(source).Observe(float64(n))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
