package domain

import "time"

// Finder addresses a coordinate system either through the map (geo
// component) that owns it or through a data series bound to a map.
// GeoID takes precedence when both are set.
type Finder struct {
	GeoID    string `json:"geo_id,omitempty"`
	SeriesID string `json:"series_id,omitempty"`
}

// IsZero returns true if the finder addresses nothing.
func (f Finder) IsZero() bool {
	return f.GeoID == "" && f.SeriesID == ""
}

// Roam describes a pan and zoom applied on top of the fitted view.
type Roam struct {
	Center *[2]float64 // Geographic center; nil keeps the map center
	Zoom   float64     // Zoom factor; 0 means 1
}

// ConversionRequest converts a value between geographic and output space.
type ConversionRequest struct {
	Finder Finder     // Addressed coordinate system
	View   Rect       // Output rectangle the map is fitted into
	Roam   Roam       // Optional pan and zoom
	Name   string     // Named location (to-pixel only)
	Coord  [2]float64 // Coordinate: lng/lat for to-pixel, x/y for from-pixel
	NoRoam bool       // Ignore roam when converting to pixel
}

// ConversionResult is the outcome of a conversion. Found is false when the
// name, finder, or coordinate system could not be resolved.
type ConversionResult struct {
	MapID          string
	Found          bool
	Point          [2]float64
	ProcessingTime time.Duration
}
