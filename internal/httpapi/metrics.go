package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts submission outcomes.
type Metrics struct {
	submissions *prometheus.CounterVec
	duration    prometheus.Histogram
	published   *prometheus.CounterVec
}

// NewMetrics registers the API collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_submissions_total",
			Help: "Check-in submissions by outcome reason (ok for recorded).",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_submit_duration_seconds",
			Help:    "Time spent validating and recording a check-in.",
			Buckets: prometheus.DefBuckets,
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_events_published_total",
			Help: "Check-in events handed to the queue, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.submissions, m.duration, m.published)
	return m
}

func (m *Metrics) observe(reason string, started time.Time) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(reason).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) publish(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(result).Inc()
}
