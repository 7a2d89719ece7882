package domain

import "time"

// Map represents a registered boundary map.
type Map struct {
	ID          string    // Unique identifier (derived from filename)
	Name        string    // Map type name used for presets and display
	Source      string    // Storage key of the boundary document
	Format      Format    // Document format
	Size        int64     // Document size in bytes
	RegionCount int       // Number of indexed regions
	Bounds      Rect      // Geographic bounding rect of all regions
	Corrections []string  // Names of the applied correction steps
	License     License   // License information
	LoadedAt    time.Time // Load timestamp
}

// Format identifies how a boundary document is encoded.
type Format string

// Boundary document formats.
const (
	FormatGeoJSON    Format = "geojson"
	FormatGeoPackage Format = "geopackage"
)

// MapStatus represents the lifecycle state of a map.
type MapStatus string

const (
	StatusLoading   MapStatus = "loading"
	StatusReady     MapStatus = "ready"
	StatusError     MapStatus = "error"
	StatusUnloading MapStatus = "unloading"
)

// SpecialArea is a geographic frame a named region is moved onto after
// loading, for example to draw a distant territory as an inset. A zero
// Width or Height is derived from the region's aspect ratio.
type SpecialArea struct {
	Left   float64 `yaml:"left" json:"left"`
	Top    float64 `yaml:"top" json:"top"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// License contains license information for a boundary dataset.
type License struct {
	Name        string `yaml:"name"`        // License name (e.g., "CC BY 4.0")
	URL         string `yaml:"url"`         // Link to the license text
	Attribution string `yaml:"attribution"` // Attribution text to display
}

// IsEmpty returns true if no license information is set.
func (l *License) IsEmpty() bool {
	return l.Name == "" && l.URL == "" && l.Attribution == ""
}

// String returns the attribution text or license name.
func (l *License) String() string {
	if l.Attribution != "" {
		return l.Attribution
	}
	return l.Name
}

// RegionInfo is a read-only snapshot of one region.
type RegionInfo struct {
	Name         string     // Region name after aliasing
	Center       [2]float64 // Label coordinate (lng, lat)
	BoundingRect Rect       // Geographic bounding rect
	Polygons     int        // Number of polygons
}

// Layer describes a GeoPackage feature table usable as a boundary source.
type Layer struct {
	Name           string // Layer name from gpkg_contents.table_name
	GeometryColumn string // Name of the geometry column
	GeometryType   string // Geometry type (POLYGON, MULTIPOLYGON, ...)
	SRID           int    // Spatial Reference ID
	FeatureCount   int64  // Number of features
}

// IsPolygonLayer returns true if the layer contains polygon geometries.
func (l *Layer) IsPolygonLayer() bool {
	return l.GeometryType == "POLYGON" || l.GeometryType == "MULTIPOLYGON" ||
		l.GeometryType == "GEOMETRY"
}

// SRIDWGS84 is the SRID boundary documents are expected in.
const SRIDWGS84 = 4326
