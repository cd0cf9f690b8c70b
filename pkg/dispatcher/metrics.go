package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_requests_total",
		Help: "Total dispatched requests by queue and outcome",
	}, []string{"queue", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetchkit_request_duration_seconds",
		Help:    "Adapter invocation duration in seconds by queue",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"queue"})

	inFlightGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fetchkit_requests_in_flight",
		Help: "Currently running requests by queue",
	}, []string{"queue"})

	dedupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_deduplicated_requests_total",
		Help: "Requests collapsed onto an in-flight equivalent by queue",
	}, []string{"queue"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_retries_total",
		Help: "Retry attempts by queue and error class",
	}, []string{"queue", "error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_retry_exhausted_total",
		Help: "Requests that exhausted their retry budget by queue",
	}, []string{"queue"})

	abortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_aborts_total",
		Help: "Aborted requests by queue",
	}, []string{"queue"})
)
