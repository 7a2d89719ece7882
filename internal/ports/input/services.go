// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/geoview/internal/domain"
)

// MapCatalog defines the primary port for map management.
type MapCatalog interface {
	// ListMaps returns all registered maps.
	ListMaps(ctx context.Context) ([]domain.Map, error)

	// GetMap returns a specific map by ID.
	GetMap(ctx context.Context, id string) (*domain.Map, error)

	// GetMapStatus returns the status of a map.
	GetMapStatus(ctx context.Context, id string) (domain.MapStatus, error)
}

// ConversionService defines the primary port for coordinate conversion and
// region queries.
type ConversionService interface {
	// ToPixel converts a name or longitude/latitude to output space.
	ToPixel(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error)

	// FromPixel converts an output point to longitude/latitude.
	FromPixel(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error)

	// Regions lists the regions of a map in document order.
	Regions(ctx context.Context, mapID string) ([]domain.RegionInfo, error)

	// Region returns one region by its resolved name.
	Region(ctx context.Context, mapID, name string) (*domain.RegionInfo, error)

	// RegionAt returns the first region containing the coordinate.
	RegionAt(ctx context.Context, mapID string, lng, lat float64) (*domain.RegionInfo, error)

	// GeoCoord returns the label coordinate registered for a name.
	GeoCoord(ctx context.Context, mapID, name string) ([2]float64, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy    bool              // Overall health status
	Ready      bool              // Ready to accept requests
	MapsLoaded int               // Number of registered maps
	MapsReady  int               // Number of ready maps
	Components map[string]string // Component statuses
}
