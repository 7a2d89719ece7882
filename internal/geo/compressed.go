package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/paulmach/orb"
)

// DefaultCompressedScale divides decoded integers when a compressed
// document does not declare UTF8Scale.
const DefaultCompressedScale = 1024

// compressedHeader is the part of a document needed to detect compression.
type compressedHeader struct {
	UTF8Encoding bool     `json:"UTF8Encoding"`
	UTF8Scale    *float64 `json:"UTF8Scale"`
}

type compressedCollection struct {
	Type     string              `json:"type"`
	Features []compressedFeature `json:"features"`
}

type compressedFeature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *compressedGeometry    `json:"geometry"`
}

type compressedGeometry struct {
	Type          string          `json:"type"`
	Coordinates   json.RawMessage `json:"coordinates"`
	EncodeOffsets json.RawMessage `json:"encodeOffsets"`
}

var errOddRing = errors.New("compressed ring has an odd number of code units")

// decodeRing expands one compressed ring. Every coordinate is a pair of
// UTF-16 code units holding zig-zag encoded deltas offset by 64; the first
// delta is relative to offset.
func decodeRing(encoded string, offset [2]float64, scale float64) (orb.Ring, error) {
	units := utf16.Encode([]rune(encoded))
	if len(units)%2 != 0 {
		return nil, errOddRing
	}

	ring := make(orb.Ring, 0, len(units)/2)
	prevX, prevY := int64(offset[0]), int64(offset[1])
	for i := 0; i < len(units); i += 2 {
		x := int64(units[i]) - 64
		y := int64(units[i+1]) - 64
		x = (x >> 1) ^ -(x & 1)
		y = (y >> 1) ^ -(y & 1)
		x += prevX
		y += prevY
		prevX, prevY = x, y
		ring = append(ring, orb.Point{float64(x) / scale, float64(y) / scale})
	}
	return ring, nil
}

// decodeCompressed turns a compressed collection into raw features.
func decodeCompressed(doc []byte, scale float64) ([]rawFeature, error) {
	var fc compressedCollection
	if err := json.Unmarshal(doc, &fc); err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, errNotCollection
	}

	features := make([]rawFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		rf := rawFeature{Properties: f.Properties}
		if f.Geometry == nil {
			features = append(features, rf)
			continue
		}
		if len(f.Geometry.Coordinates) == 0 || string(f.Geometry.Coordinates) == "null" {
			return nil, fmt.Errorf("feature %d: %w", i, errNoCoordinates)
		}

		geom, err := decodeCompressedGeometry(f.Geometry, scale)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		rf.Geometry = geom
		features = append(features, rf)
	}
	return features, nil
}

func decodeCompressedGeometry(g *compressedGeometry, scale float64) (orb.Geometry, error) {
	switch g.Type {
	case "Polygon":
		var rings []string
		var offsets [][2]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		if err := json.Unmarshal(g.EncodeOffsets, &offsets); err != nil {
			return nil, fmt.Errorf("polygon encodeOffsets: %w", err)
		}
		return decodePolygon(rings, offsets, scale)

	case "MultiPolygon":
		var polys [][]string
		var offsets [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		if err := json.Unmarshal(g.EncodeOffsets, &offsets); err != nil {
			return nil, fmt.Errorf("multipolygon encodeOffsets: %w", err)
		}
		if len(offsets) < len(polys) {
			return nil, fmt.Errorf("multipolygon has %d polygons but %d offsets", len(polys), len(offsets))
		}
		mp := make(orb.MultiPolygon, 0, len(polys))
		for i, rings := range polys {
			p, err := decodePolygon(rings, offsets[i], scale)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil

	default:
		// other geometry types are not decoded and get skipped
		return nil, nil
	}
}

func decodePolygon(rings []string, offsets [][2]float64, scale float64) (orb.Polygon, error) {
	if len(offsets) < len(rings) {
		return nil, fmt.Errorf("polygon has %d rings but %d offsets", len(rings), len(offsets))
	}
	poly := make(orb.Polygon, 0, len(rings))
	for i, s := range rings {
		ring, err := decodeRing(s, offsets[i], scale)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	return poly, nil
}
