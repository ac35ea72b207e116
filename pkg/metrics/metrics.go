package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_total",
			Help: "Total number of deliveries handled by the worker, by transport and outcome (count)",
		},
		[]string{"transport", "outcome"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_processing_duration_ms",
			Help:    "End-to-end handling duration of one delivery in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"outcome"},
	)

	InflightMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_inflight_messages",
			Help: "Number of deliveries currently holding a worker slot (count)",
		},
	)

	SlotWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_slot_wait_duration_ms",
			Help:    "Duration deliveries wait for a free worker slot in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)

	RedactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_redactions_total",
			Help: "Total number of PII matches replaced, by pattern (count)",
		},
		[]string{"pattern"},
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of record store operations (count)",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_ms",
			Help:    "Duration of record store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"backend", "operation"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to the dead-letter sink (count)",
		},
		[]string{"sink", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaCommittedOffset = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_committed_offset",
			Help: "Last offset committed by the worker per partition (offset)",
		},
		[]string{"topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)

	StreamMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_stream_messages_read_total",
			Help: "Total number of entries read from a Redis stream, by origin (count)",
		},
		[]string{"stream", "origin"},
	)
)

var registerOnce sync.Once

// Register adds every worker collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesTotal,
			ProcessingDuration,
			InflightMessages,
			SlotWaitDuration,
			RedactionsTotal,
			StoreOperationsTotal,
			StoreOperationDuration,
			RetryAttemptsTotal,
			DLQMessagesTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
			KafkaCommittedOffset,
			KafkaReadDuration,
			StreamMessagesReadTotal,
		)
	})
}

func IncMessage(transport, outcome string) {
	MessagesTotal.WithLabelValues(transport, outcome).Inc()
}

func ObserveProcessingDuration(duration time.Duration, outcome string) {
	ProcessingDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveSlotWait(duration time.Duration) {
	SlotWaitDuration.Observe(float64(duration.Milliseconds()))
}

func AddRedactions(counts map[string]int) {
	for pattern, n := range counts {
		if n > 0 {
			RedactionsTotal.WithLabelValues(pattern).Add(float64(n))
		}
	}
}

func ObserveStoreOperation(backend, operation, status string, duration time.Duration) {
	StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(float64(duration.Milliseconds()))
}

func IncDeadLetter(sink, reason string) {
	DLQMessagesTotal.WithLabelValues(sink, reason).Inc()
}

func IncKafkaMessagesRead(topic string) {
	KafkaMessagesReadTotal.WithLabelValues(topic).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}

func SetKafkaCommittedOffset(topic string, partition int, offset int64) {
	KafkaCommittedOffset.WithLabelValues(topic, strconv.Itoa(partition)).Set(float64(offset))
}

func ObserveKafkaReadDuration(topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}

func IncStreamMessagesRead(stream, origin string, n int) {
	StreamMessagesReadTotal.WithLabelValues(stream, origin).Add(float64(n))
}
