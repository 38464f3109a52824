package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the request pipeline.
type Metrics struct {
	Messages       *prometheus.CounterVec // by category
	RateLimited    prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	AIRequests     *prometheus.CounterVec // by outcome
	AILatency      prometheus.Histogram
	DeliveryErrors prometheus.Counter
	QueueLength    prometheus.Gauge
	QueueActive    prometheus.Gauge
	Sessions       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilebot_messages_total",
			Help: "Inbound text messages accepted by the validator, by category",
		}, []string{"category"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilebot_rate_limited_total",
			Help: "Messages rejected by the per-user rate limiter",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilebot_cache_hits_total",
			Help: "Replies served from the response cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilebot_cache_misses_total",
			Help: "Prompts not found in the response cache",
		}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilebot_ai_requests_total",
			Help: "Completion provider calls by outcome",
		}, []string{"outcome"}), // ok | timeout | quota | error
		AILatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "profilebot_ai_request_duration_seconds",
			Help:    "Completion provider latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 12, 20},
		}),
		DeliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilebot_delivery_errors_total",
			Help: "Best-effort transport sends that failed",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profilebot_queue_length",
			Help: "Requests waiting in the admission queue",
		}),
		QueueActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profilebot_queue_active",
			Help: "Requests currently being processed by queue workers",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profilebot_sessions",
			Help: "Tracked user sessions",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Messages, m.RateLimited, m.CacheHits, m.CacheMisses,
			m.AIRequests, m.AILatency, m.DeliveryErrors,
			m.QueueLength, m.QueueActive, m.Sessions,
		)
	}
	return m
}
