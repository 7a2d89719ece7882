package output

import (
	"context"

	"github.com/jobrunner/geoview/internal/domain"
)

// ExportOptions selects what a BoundaryExporter reads.
type ExportOptions struct {
	Layer      string // Feature table; empty selects the first polygon layer
	NameColumn string // Attribute written as the feature name property
}

// BoundaryExporter defines the secondary port for reading boundary
// documents out of non-GeoJSON sources.
type BoundaryExporter interface {
	// Layers returns the feature layers of the source at path.
	Layers(ctx context.Context, path string) ([]domain.Layer, error)

	// Export returns the selected layer as a GeoJSON FeatureCollection in
	// EPSG:4326.
	Export(ctx context.Context, path string, opts ExportOptions) ([]byte, error)
}
