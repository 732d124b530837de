// metrics - Prometheus-коллекторы шлюза.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты refresh для метки result.
const (
	RefreshOK     = "ok"
	RefreshFailed = "failed"
	RefreshReused = "reused"
)

// Metrics агрегирует коллекторы. Нулевой *Metrics безопасен: все методы no-op.
type Metrics struct {
	refresh         *prometheus.CounterVec
	upstream        *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	sessions        *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quest_gateway",
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quest_gateway",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the backend API by method and status code.",
		}, []string{"method", "code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quest_gateway",
			Name:      "upstream_request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quest_gateway",
			Name:      "session_events_total",
			Help:      "Session lifecycle events (login, logout, expired).",
		}, []string{"event"}),
	}

	reg.MustRegister(m.refresh, m.upstream, m.upstreamLatency, m.sessions)
	return m
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refresh.WithLabelValues(result).Inc()
}

// Upstream фиксирует один вызов бэкенда; code=0 означает сетевую ошибку.
func (m *Metrics) Upstream(method string, code int, dur time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.upstream.WithLabelValues(method, label).Inc()
	m.upstreamLatency.WithLabelValues(method).Observe(dur.Seconds())
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}
