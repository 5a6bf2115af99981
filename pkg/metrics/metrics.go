package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	Registry *prometheus.Registry

	// Storage Metrics
	StorageOpsTotal    *prometheus.CounterVec
	StorageOpDuration  *prometheus.HistogramVec
	StorageCorruptRead prometheus.Counter

	// Alert Metrics
	AlertsEvaluatedTotal prometheus.Counter
	AlertsTriggeredTotal *prometheus.CounterVec

	// Weather Provider Metrics
	WeatherRequestsTotal *prometheus.CounterVec
	WeatherCacheHits     prometheus.Counter
	WeatherCacheMisses   prometheus.Counter
}

// NewCollector creates a new metrics collector on its own registry, so
// several collectors can coexist in one process (tests, embedded use).
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		Registry: reg,

		StorageOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of persistent store operations by operation and result",
			},
			[]string{"operation", "result"},
		),

		StorageOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_operation_duration_seconds",
				Help:      "Persistent store operation duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"operation"},
		),

		StorageCorruptRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_corrupt_reads_total",
				Help:      "Stored values that could not be parsed and were treated as absent",
			},
		),

		AlertsEvaluatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_evaluated_total",
				Help:      "Total number of active alerts evaluated against readings",
			},
		),

		AlertsTriggeredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_triggered_total",
				Help:      "Total number of triggered alerts by alert type",
			},
			[]string{"alert_type"},
		),

		WeatherRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_requests_total",
				Help:      "Weather provider requests by kind and result",
			},
			[]string{"kind", "result"},
		),

		WeatherCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_cache_hits_total",
				Help:      "Weather responses served from the time-window cache",
			},
		),

		WeatherCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_cache_misses_total",
				Help:      "Weather responses fetched from the provider",
			},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordStorageOp records a store operation. A nil collector is a no-op.
func (c *Collector) RecordStorageOp(operation string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.StorageOpsTotal.WithLabelValues(operation, result).Inc()
	c.StorageOpDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordCorruptRead counts a value that was discarded on read
func (c *Collector) RecordCorruptRead() {
	if c == nil {
		return
	}
	c.StorageCorruptRead.Inc()
}

// RecordAlertsEvaluated adds n to the evaluated alerts counter
func (c *Collector) RecordAlertsEvaluated(n int) {
	if c == nil {
		return
	}
	c.AlertsEvaluatedTotal.Add(float64(n))
}

// RecordAlertTriggered increments the triggered counter for an alert type
func (c *Collector) RecordAlertTriggered(alertType string) {
	if c == nil {
		return
	}
	c.AlertsTriggeredTotal.WithLabelValues(alertType).Inc()
}

// RecordWeatherRequest increments the provider request counter
func (c *Collector) RecordWeatherRequest(kind string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.WeatherRequestsTotal.WithLabelValues(kind, result).Inc()
}

// RecordCacheLookup increments the hit or miss counter
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.WeatherCacheHits.Inc()
		return
	}
	c.WeatherCacheMisses.Inc()
}
