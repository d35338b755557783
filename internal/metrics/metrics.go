package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "formbuilder"

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	DroppedAnswers  *prometheus.CounterVec
	ScoreRatio      prometheus.Histogram
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses a private registry,
// which keeps tests from colliding on the global one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Form submissions by outcome",
			},
			[]string{"status"},
		),
		DroppedAnswers: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_answers_total",
				Help:      "Answers ignored or zeroed while scoring",
			},
			[]string{"reason"},
		),
		ScoreRatio: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_score_ratio",
				Help:      "Total score divided by max score per submission",
				Buckets:   []float64{0.2, 0.4, 0.6, 0.8, 1},
			},
		),
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveSubmission records the outcome of one scored submission.
func (m *Metrics) ObserveSubmission(status string, total, max float64) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(status).Inc()
	if status == "ok" && max > 0 {
		m.ScoreRatio.Observe(total / max)
	}
}

// ObserveDropped counts one dropped or zeroed answer.
func (m *Metrics) ObserveDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedAnswers.WithLabelValues(reason).Inc()
}
