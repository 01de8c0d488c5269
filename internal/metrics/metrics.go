package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_callbacks_total",
			Help: "Count of processed PBX callbacks",
		},
		[]string{"flow", "result"}, // prompt, retry, stale, completed, transferred, locked, failed
	)
	CallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ivr_callback_duration_seconds",
			Help:    "Time taken to answer a PBX callback",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"flow"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ivr_active_sessions",
			Help: "Current number of live call sessions",
		},
	)
	SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ivr_sessions_swept_total",
			Help: "Count of idle sessions evicted by the sweep job",
		},
	)
	RepositoryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_repository_failures_total",
			Help: "Count of failed repository operations",
		},
		[]string{"op"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_notifications_total",
			Help: "Count of receipt notifications",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(
		CallbacksTotal,
		CallbackDuration,
		ActiveSessions,
		SessionsSwept,
		RepositoryFailures,
		NotificationsSent,
	)
}
