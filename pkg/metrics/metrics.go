package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admission metrics
	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_admissions_total",
			Help: "Admission decisions by result and rejection reason",
		},
		[]string{"result", "reason"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_scheduling_latency_seconds",
			Help:    "Time taken to predict, check and enqueue a task in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Queue and ledger gauges
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_queue_depth",
			Help: "Number of admitted tasks waiting in the priority queue",
		},
	)

	RunningTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_running_tasks",
			Help: "Number of live reservations (worker slots in use)",
		},
	)

	MemoryReservedMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_memory_reserved_mb",
			Help: "Memory reserved by live allocations in MB",
		},
	)

	TokensUsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_tokens_used",
			Help: "Committed tokens in the current budget window",
		},
		[]string{"window"},
	)

	RebalanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_rebalance_duration_seconds",
			Help:    "Time taken to rescore and resort the queue in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReservationsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_reservations_reaped_total",
			Help: "Reservations released by the TTL reaper",
		},
	)

	// Predictor metrics
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_predictions_total",
			Help: "Resource predictions by method",
		},
		[]string{"method"},
	)

	PredictionAccuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_prediction_accuracy",
			Help: "Rolling prediction accuracy per resource dimension",
		},
		[]string{"resource"},
	)

	ModelUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_model_updates_total",
			Help: "Online learning updates applied to the resource models",
		},
	)

	PersistErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_persist_errors_total",
			Help: "Persistence jobs dropped after exhausting retries",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(AdmissionsTotal)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RunningTasks)
	prometheus.MustRegister(MemoryReservedMB)
	prometheus.MustRegister(TokensUsed)
	prometheus.MustRegister(RebalanceDuration)
	prometheus.MustRegister(ReservationsReaped)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(PredictionAccuracy)
	prometheus.MustRegister(ModelUpdates)
	prometheus.MustRegister(PersistErrors)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
