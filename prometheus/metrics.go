package prometheus

import (
	"time"

	"tableorder-service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics stay nil until InitMetrics runs; every recorder below is a no-op in that case.
var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthFailuresCounter *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Order metrics
	OrdersCreatedCounter        *prometheus.CounterVec
	OrderTransitionsCounter     *prometheus.CounterVec
	OrderNumberRetriesCounter   prometheus.Counter
	OrderNumberExhaustedCounter prometheus.Counter

	// Session metrics
	SessionsCreatedCounter prometheus.Counter
	SessionsClosedCounter  *prometheus.CounterVec

	// Aggregator metrics
	AggregatorOrdersCounter *prometheus.CounterVec
	BridgeCallsCounter      *prometheus.CounterVec
	SyncRunDuration         prometheus.Histogram
)

// InitMetrics registers all metrics with the default registry
func InitMetrics(cfg *config.Config) {
	Register(prometheus.DefaultRegisterer, cfg.Metrics.Prefix)
}

// Register registers all metrics with reg under the given name prefix
func Register(reg prometheus.Registerer, prefix string) {
	factory := promauto.With(reg)

	HttpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthFailuresCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_failures_total",
			Help: "Total number of rejected staff or bridge requests",
		},
		[]string{"reason"},
	)

	DbOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	OrdersCreatedCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_orders_created_total",
			Help: "Total number of orders created by order type",
		},
		[]string{"order_type"},
	)

	OrderTransitionsCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_transitions_total",
			Help: "Total number of order and payment status transitions",
		},
		[]string{"kind", "to", "result"},
	)

	OrderNumberRetriesCounter = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_order_number_retries_total",
			Help: "Total number of order number collisions that were retried",
		},
	)

	OrderNumberExhaustedCounter = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_order_number_exhausted_total",
			Help: "Total number of inserts that ran out of order number attempts",
		},
	)

	SessionsCreatedCounter = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_sessions_created_total",
			Help: "Total number of table sessions opened",
		},
	)

	SessionsClosedCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_sessions_closed_total",
			Help: "Total number of table sessions closed by reason",
		},
		[]string{"reason"},
	)

	AggregatorOrdersCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_aggregator_orders_total",
			Help: "Total number of aggregator orders processed by outcome",
		},
		[]string{"platform", "outcome"},
	)

	BridgeCallsCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_bridge_calls_total",
			Help: "Total number of outbound bridge calls",
		},
		[]string{"action", "result"},
	)

	SyncRunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_aggregator_sync_duration_seconds",
			Help:    "Duration of aggregator sync runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if HttpRequestsTotal == nil {
		return
	}
	HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordAuthFailure(reason string) {
	if AuthFailuresCounter != nil {
		AuthFailuresCounter.WithLabelValues(reason).Inc()
	}
}

func RecordOrderCreated(orderType string) {
	if OrdersCreatedCounter != nil {
		OrdersCreatedCounter.WithLabelValues(orderType).Inc()
	}
}

// RecordTransition counts a status ("order") or payment ("payment") transition attempt
func RecordTransition(kind, to string, ok bool) {
	if OrderTransitionsCounter == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	OrderTransitionsCounter.WithLabelValues(kind, to, result).Inc()
}

func RecordOrderNumberRetry() {
	if OrderNumberRetriesCounter != nil {
		OrderNumberRetriesCounter.Inc()
	}
}

func RecordOrderNumberExhausted() {
	if OrderNumberExhaustedCounter != nil {
		OrderNumberExhaustedCounter.Inc()
	}
}

func RecordSessionCreated() {
	if SessionsCreatedCounter != nil {
		SessionsCreatedCounter.Inc()
	}
}

func RecordSessionClosed(reason string) {
	if SessionsClosedCounter != nil {
		SessionsClosedCounter.WithLabelValues(reason).Inc()
	}
}

// RecordAggregatorOrder counts one processed external order: created, updated, unchanged, unmatched or failed
func RecordAggregatorOrder(platform, outcome string) {
	if AggregatorOrdersCounter != nil {
		AggregatorOrdersCounter.WithLabelValues(platform, outcome).Inc()
	}
}

func RecordBridgeCall(action string, err error) {
	if BridgeCallsCounter == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	BridgeCallsCounter.WithLabelValues(action, result).Inc()
}

func ObserveSyncRun(start time.Time) {
	if SyncRunDuration != nil {
		SyncRunDuration.Observe(time.Since(start).Seconds())
	}
}
