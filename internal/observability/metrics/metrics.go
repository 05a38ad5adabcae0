package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "platform_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"
)

var (
	registerOnce sync.Once

	deviceOperations       *prometheus.CounterVec
	deviceOperationLatency *prometheus.HistogramVec
	deviceCache            *prometheus.CounterVec
	deviceChanges          *prometheus.CounterVec
	exportTotal            *prometheus.CounterVec
	exportLatency          *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges. db may be nil.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		deviceOperations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_operations_total",
				Help: "Total device access operations by operation and result",
			},
			[]string{"op", "result"},
		)
		deviceOperationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "device_operation_latency_seconds",
				Help:    "Device access operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)
		deviceCache = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_cache_total",
				Help: "Device read cache lookups by operation and outcome",
			},
			[]string{"op", "outcome"},
		)
		deviceChanges = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_changes_total",
				Help: "Published device change events by action",
			},
			[]string{"action"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_exports_total",
				Help: "Total device exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "device_export_latency_seconds",
				Help:    "Device export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			deviceOperations,
			deviceOperationLatency,
			deviceCache,
			deviceChanges,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveDeviceOperation records access layer latency and result.
func ObserveDeviceOperation(op, result string, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if deviceOperations != nil {
		deviceOperations.WithLabelValues(op, result).Inc()
	}
	if deviceOperationLatency != nil {
		deviceOperationLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// IncCacheLookup counts a cache hit or miss.
func IncCacheLookup(op string, hit bool) {
	if op == "" {
		op = "unknown"
	}
	outcome := cacheMiss
	if hit {
		outcome = cacheHit
	}
	if deviceCache != nil {
		deviceCache.WithLabelValues(op, outcome).Inc()
	}
}

// IncDeviceChange counts a published change event.
func IncDeviceChange(action string) {
	if action == "" {
		action = "unknown"
	}
	if deviceChanges != nil {
		deviceChanges.WithLabelValues(action).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
