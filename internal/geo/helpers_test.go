package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geoview/internal/domain"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) <= eps
}

func pointApprox(p orb.Point, x, y float64) bool {
	return approx(p.X(), x) && approx(p.Y(), y)
}

// rectFeature returns a GeoJSON feature with a rectangular polygon.
func rectFeature(name string, x, y, w, h float64, props ...string) string {
	allProps := append([]string{fmt.Sprintf(`"name": %q`, name)}, props...)
	return fmt.Sprintf(`{
		"type": "Feature",
		"properties": {%s},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[%g, %g], [%g, %g], [%g, %g], [%g, %g], [%g, %g]]]
		}
	}`, strings.Join(allProps, ", "),
		x, y, x+w, y, x+w, y+h, x, y+h, x, y)
}

func collection(features ...string) []byte {
	return []byte(`{"type": "FeatureCollection", "features": [` + strings.Join(features, ",") + `]}`)
}

// encodeRing is the inverse of decodeRing for integer coordinates.
func encodeRing(points [][2]int64, offset [2]int64) string {
	var sb strings.Builder
	prev := offset
	for _, p := range points {
		for axis := 0; axis < 2; axis++ {
			delta := p[axis] - prev[axis]
			zig := (delta << 1) ^ (delta >> 63)
			sb.WriteRune(rune(zig + 64))
		}
		prev = p
	}
	return sb.String()
}

type mapLocator map[string]*CoordSys

func (l mapLocator) Locate(f domain.Finder) (*CoordSys, bool) {
	key := f.GeoID
	if key == "" {
		key = "series:" + f.SeriesID
	}
	cs, ok := l[key]
	return cs, ok
}
