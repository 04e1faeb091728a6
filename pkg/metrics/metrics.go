package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all cabinet service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Message bus metrics
	BusEventsPublished *prometheus.CounterVec
	BusEventsConsumed  *prometheus.CounterVec
	BusPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	MongoDBConnectionsOpen   prometheus.Gauge

	// Transaction metrics
	TransactionsStarted   *prometheus.CounterVec
	TransactionsCompleted *prometheus.CounterVec
	TransactionDuration   *prometheus.HistogramVec
	ActiveTransactions    prometheus.Gauge

	// Step metrics
	StepsExecuted *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	StateTransitions *prometheus.CounterVec

	// Hardware metrics
	BinOpenAttempts       *prometheus.CounterVec
	BinsMarkedFailed      *prometheus.CounterVec
	DiscrepanciesDetected *prometheus.CounterVec
	LockResponseDuration  *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending         prometheus.Gauge
	OutboxPublished       *prometheus.CounterVec
	OutboxRetries         *prometheus.CounterVec
	OutboxPublishDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
	Subsystem   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "smartcab",
		Subsystem:   serviceName,
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	// HTTP metrics
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Message bus metrics
	m.BusEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "bus_events_published_total",
			Help:      "Total number of bus events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.BusEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "bus_events_consumed_total",
			Help:      "Total number of bus events consumed",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.BusPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "bus_publish_duration_seconds",
			Help:      "Bus publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	// MongoDB metrics
	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.MongoDBConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "mongodb_connections_open",
			Help:        "Number of open MongoDB connections",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Transaction metrics
	m.TransactionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "transactions_started_total",
			Help:      "Total number of cabinet transactions started",
		},
		[]string{"service", "transaction_type"},
	)

	m.TransactionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "transactions_completed_total",
			Help:      "Total number of cabinet transactions completed",
		},
		[]string{"service", "transaction_type", "status"},
	)

	m.TransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Cabinet transaction duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "transaction_type"},
	)

	m.ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "transactions_active",
			Help:        "Number of transactions currently executing",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Step metrics
	m.StepsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "steps_executed_total",
			Help:      "Total number of execution steps processed",
		},
		[]string{"service", "transaction_type", "status"},
	)

	m.StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "step_duration_seconds",
			Help:      "Execution step duration in seconds",
			Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "transaction_type"},
	)

	m.StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of orchestrator state transitions",
		},
		[]string{"service", "from_state", "to_state", "event"},
	)

	// Hardware metrics
	m.BinOpenAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "bin_open_attempts_total",
			Help:      "Total number of bin open attempts",
		},
		[]string{"service", "status"},
	)

	m.BinsMarkedFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "bins_marked_failed_total",
			Help:      "Total number of bins marked as failed hardware",
		},
		[]string{"service"},
	)

	m.DiscrepanciesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "discrepancies_detected_total",
			Help:      "Total number of weight discrepancies detected",
		},
		[]string{"service", "transaction_type"},
	)

	m.LockResponseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "lock_response_duration_seconds",
			Help:      "Time between lock command and controller response",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "command"},
	)

	// Outbox metrics
	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_events_pending",
			Help:        "Number of unpublished events in the outbox",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_events_published_total",
			Help:      "Total number of outbox events published",
		},
		[]string{"service", "event_type", "status"},
	)

	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_retries_total",
			Help:      "Total number of outbox publish retries",
		},
		[]string{"service", "event_type"},
	)

	m.OutboxPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "outbox_publish_duration_seconds",
			Help:      "Outbox publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "event_type"},
	)

	// Circuit breaker metrics
	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BusEventsPublished,
		m.BusEventsConsumed,
		m.BusPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.MongoDBConnectionsOpen,
		m.TransactionsStarted,
		m.TransactionsCompleted,
		m.TransactionDuration,
		m.ActiveTransactions,
		m.StepsExecuted,
		m.StepDuration,
		m.StateTransitions,
		m.BinOpenAttempts,
		m.BinsMarkedFailed,
		m.DiscrepanciesDetected,
		m.LockResponseDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.OutboxPublishDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordBusPublish records a bus publish event
func (m *Metrics) RecordBusPublish(topic, eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.BusEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status).Inc()
	m.BusPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordBusConsume records a bus consume event
func (m *Metrics) RecordBusConsume(topic, eventType string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.BusEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, status).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetMongoDBConnections sets the number of open MongoDB connections
func (m *Metrics) SetMongoDBConnections(count int) {
	m.MongoDBConnectionsOpen.Set(float64(count))
}

// RecordTransactionStarted records a transaction start
func (m *Metrics) RecordTransactionStarted(transactionType string) {
	m.TransactionsStarted.WithLabelValues(m.serviceName, transactionType).Inc()
	m.ActiveTransactions.Inc()
}

// RecordTransactionCompleted records a transaction reaching a terminal status
func (m *Metrics) RecordTransactionCompleted(transactionType, status string, duration time.Duration) {
	m.TransactionsCompleted.WithLabelValues(m.serviceName, transactionType, status).Inc()
	m.TransactionDuration.WithLabelValues(m.serviceName, transactionType).Observe(duration.Seconds())
	m.ActiveTransactions.Dec()
}

// RecordStepExecuted records an execution step outcome
func (m *Metrics) RecordStepExecuted(transactionType, status string, duration time.Duration) {
	m.StepsExecuted.WithLabelValues(m.serviceName, transactionType, status).Inc()
	m.StepDuration.WithLabelValues(m.serviceName, transactionType).Observe(duration.Seconds())
}

// RecordStateTransition records an orchestrator state transition
func (m *Metrics) RecordStateTransition(from, to, event string) {
	m.StateTransitions.WithLabelValues(m.serviceName, from, to, event).Inc()
}

// RecordBinOpenAttempt records a bin open attempt
func (m *Metrics) RecordBinOpenAttempt(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.BinOpenAttempts.WithLabelValues(m.serviceName, status).Inc()
}

// RecordBinMarkedFailed records a bin being flagged as failed hardware
func (m *Metrics) RecordBinMarkedFailed() {
	m.BinsMarkedFailed.WithLabelValues(m.serviceName).Inc()
}

// RecordDiscrepancyDetected records a weight discrepancy
func (m *Metrics) RecordDiscrepancyDetected(transactionType string) {
	m.DiscrepanciesDetected.WithLabelValues(m.serviceName, transactionType).Inc()
}

// RecordLockResponse records the round trip time for a lock command
func (m *Metrics) RecordLockResponse(command string, duration time.Duration) {
	m.LockResponseDuration.WithLabelValues(m.serviceName, command).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox publish attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, status).Inc()
	m.OutboxPublishDuration.WithLabelValues(m.serviceName, eventType).Observe(duration.Seconds())
}

// RecordOutboxRetry records an outbox publish retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
