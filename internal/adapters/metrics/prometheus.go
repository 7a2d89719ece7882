// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus. It also
// serves as the HTTP server's request recorder.
type Collector struct {
	conversions         *prometheus.CounterVec
	conversionDuration  *prometheus.HistogramVec
	mapLoads            *prometheus.CounterVec
	loadDuration        *prometheus.HistogramVec
	mapsLoaded          prometheus.Gauge
	mapsReady           prometheus.Gauge
	regions             *prometheus.GaugeVec
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector whose metrics are registered with reg.
// A nil reg uses the default Prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "geoview"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of coordinate conversions",
			},
			[]string{"map_id", "direction", "result"},
		),

		conversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Conversion duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"map_id", "direction"},
		),

		mapLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "map_loads_total",
				Help:      "Total number of map loads",
			},
			[]string{"map_id", "status"},
		),

		loadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "map_load_duration_seconds",
				Help:      "Map load duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"map_id"},
		),

		mapsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maps_loaded",
				Help:      "Number of registered maps",
			},
		),

		mapsReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maps_ready",
				Help:      "Number of maps ready for conversion",
			},
		),

		regions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "map_regions",
				Help:      "Number of indexed regions per map",
			},
			[]string{"map_id"},
		),

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
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

// IncConversionCount counts a conversion and whether it found a result.
func (c *Collector) IncConversionCount(mapID, direction string, found bool) {
	result := "found"
	if !found {
		result = "not_found"
	}
	c.conversions.WithLabelValues(mapID, direction, result).Inc()
}

// ObserveConversionDuration records conversion duration.
func (c *Collector) ObserveConversionDuration(mapID, direction string, duration time.Duration) {
	c.conversionDuration.WithLabelValues(mapID, direction).Observe(duration.Seconds())
}

// IncMapLoads counts a map load attempt.
func (c *Collector) IncMapLoads(mapID string, success bool) {
	c.mapLoads.WithLabelValues(mapID, successLabel(success)).Inc()
}

// ObserveLoadDuration records map load duration.
func (c *Collector) ObserveLoadDuration(mapID string, duration time.Duration) {
	c.loadDuration.WithLabelValues(mapID).Observe(duration.Seconds())
}

// SetMapsLoaded sets the number of registered maps.
func (c *Collector) SetMapsLoaded(count int) {
	c.mapsLoaded.Set(float64(count))
}

// SetMapsReady sets the number of ready maps.
func (c *Collector) SetMapsReady(count int) {
	c.mapsReady.Set(float64(count))
}

// SetRegions sets the region count of a map.
func (c *Collector) SetRegions(mapID string, count int) {
	c.regions.WithLabelValues(mapID).Set(float64(count))
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, successLabel(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveRequest records one HTTP request. route is the matched route
// template, which keeps label cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, status int, seconds float64) {
	c.httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Handler returns the HTTP handler exposing the metrics of g. A nil g uses
// the default Prometheus gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func successLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusClass converts an HTTP status code to its class, e.g. "4xx".
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
