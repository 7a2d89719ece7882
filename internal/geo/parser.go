package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoview/internal/domain"
)

// Default feature property names.
const (
	DefaultNameProperty   = "name"
	DefaultCenterProperty = "cp"
)

var (
	errNotCollection = errors.New("not a feature collection")
	errNoCoordinates = errors.New("geometry without coordinates")
)

// ParseOptions controls how features are turned into regions.
type ParseOptions struct {
	NameProperty   string // Property holding the region name, default "name"
	CenterProperty string // Property holding [lng, lat] of the label, default "cp"
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.NameProperty == "" {
		o.NameProperty = DefaultNameProperty
	}
	if o.CenterProperty == "" {
		o.CenterProperty = DefaultCenterProperty
	}
	return o
}

type rawFeature struct {
	Properties geojson.Properties
	Geometry   orb.Geometry
}

// Parse decodes a GeoJSON FeatureCollection, plain or compressed, into
// regions in document order. Features without properties, without
// geometry, with empty coordinates, or with a geometry other than Polygon
// and MultiPolygon are skipped. Any other problem is returned as a
// *domain.FormatError.
func Parse(doc []byte, opts ParseOptions) ([]*Region, error) {
	opts = opts.withDefaults()

	features, err := decode(doc)
	if err != nil {
		return nil, &domain.FormatError{Err: err}
	}

	regions := make([]*Region, 0, len(features))
	for _, f := range features {
		if f.Properties == nil || f.Geometry == nil {
			continue
		}

		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = dropEmpty(orb.MultiPolygon{g})
		case orb.MultiPolygon:
			mp = dropEmpty(g)
		default:
			continue
		}
		if len(mp) == 0 {
			continue
		}

		regions = append(regions, NewRegion(
			propertyString(f.Properties, opts.NameProperty),
			mp,
			propertyPoint(f.Properties, opts.CenterProperty),
		))
	}
	return regions, nil
}

// dropEmpty removes polygons whose outer ring has no points.
func dropEmpty(mp orb.MultiPolygon) orb.MultiPolygon {
	kept := mp[:0:0]
	for _, poly := range mp {
		if len(poly) > 0 && len(poly[0]) > 0 {
			kept = append(kept, poly)
		}
	}
	return kept
}

func decode(doc []byte) ([]rawFeature, error) {
	var header compressedHeader
	if err := json.Unmarshal(doc, &header); err != nil {
		return nil, err
	}

	if header.UTF8Encoding {
		scale := float64(DefaultCompressedScale)
		if header.UTF8Scale != nil && *header.UTF8Scale != 0 {
			scale = *header.UTF8Scale
		}
		return decodeCompressed(doc, scale)
	}

	if err := checkCoordinates(doc); err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(doc)
	if err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, errNotCollection
	}

	features := make([]rawFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		features = append(features, rawFeature{Properties: f.Properties, Geometry: f.Geometry})
	}
	return features, nil
}

// checkCoordinates rejects geometries that lack a coordinates member.
func checkCoordinates(doc []byte) error {
	var shape struct {
		Features []struct {
			Geometry *struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(doc, &shape); err != nil {
		return err
	}
	for i, f := range shape.Features {
		if f.Geometry == nil || f.Geometry.Type == "GeometryCollection" {
			continue
		}
		if len(f.Geometry.Coordinates) == 0 || string(f.Geometry.Coordinates) == "null" {
			return fmt.Errorf("feature %d: %w", i, errNoCoordinates)
		}
	}
	return nil
}

func propertyString(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func propertyPoint(p geojson.Properties, key string) *orb.Point {
	values, ok := p[key].([]interface{})
	if !ok || len(values) < 2 {
		return nil
	}
	x, okX := values[0].(float64)
	y, okY := values[1].(float64)
	if !okX || !okY {
		return nil
	}
	return &orb.Point{x, y}
}
