package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncConversionCount increments the conversion counter.
	IncConversionCount(mapID, direction string, found bool)

	// ObserveConversionDuration records conversion duration.
	ObserveConversionDuration(mapID, direction string, duration time.Duration)

	// IncMapLoads increments the map load counter.
	IncMapLoads(mapID string, success bool)

	// ObserveLoadDuration records how long building a map took.
	ObserveLoadDuration(mapID string, duration time.Duration)

	// SetMapsLoaded sets the number of registered maps.
	SetMapsLoaded(count int)

	// SetMapsReady sets the number of ready maps.
	SetMapsReady(count int)

	// SetRegions sets the number of indexed regions of a map.
	SetRegions(mapID string, count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncConversionCount implements MetricsCollector.
func (n *NoOpMetrics) IncConversionCount(_, _ string, _ bool) {}

// ObserveConversionDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveConversionDuration(_, _ string, _ time.Duration) {}

// IncMapLoads implements MetricsCollector.
func (n *NoOpMetrics) IncMapLoads(_ string, _ bool) {}

// ObserveLoadDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveLoadDuration(_ string, _ time.Duration) {}

// SetMapsLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetMapsLoaded(_ int) {}

// SetMapsReady implements MetricsCollector.
func (n *NoOpMetrics) SetMapsReady(_ int) {}

// SetRegions implements MetricsCollector.
func (n *NoOpMetrics) SetRegions(_ string, _ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
