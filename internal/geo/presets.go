package geo

import (
	"sort"

	"github.com/paulmach/orb"
)

// Preset names.
const (
	PresetChina = "china"
	PresetWorld = "world"
)

// Label offsets on the china map are given in pixels of the reference
// rendering, where one degree spans 10.5 px horizontally and 14 px
// vertically.
const (
	chinaPixelsPerLng = 10.5
	chinaPixelsPerLat = 10.5 / 0.75
)

var chinaLabelOffsets = []struct {
	region string
	dx, dy float64
}{
	{"南海诸岛", 32, 80},
	{"广东", 0, -10},
	{"香港", 10, 5},
	{"澳门", -10, 10},
	{"天津", 5, 5},
}

// South China Sea inset, drawn in pixels of the reference rendering with
// the origin at its top-left corner.
var nanhaiOrigin = orb.Point{126, 25}

var nanhaiPixels = [][][2]float64{
	{{0, 3.5}, {7, 11.2}, {15, 11.9}, {30, 7}, {42, 0.7}, {52, 0.7}, {56, 7.7}, {59, 0.7}, {64, 0.7}, {64, 0}, {5, 0}, {0, 3.5}},
	{{13, 16.1}, {19, 14.7}, {16, 21.7}, {11, 23.1}, {13, 16.1}},
	{{12, 32.2}, {14, 38.5}, {15, 38.5}, {13, 32.2}, {12, 32.2}},
	{{16, 47.6}, {12, 53.2}, {13, 53.2}, {18, 47.6}, {16, 47.6}},
	{{6, 64.4}, {8, 70}, {9, 70}, {8, 64.4}, {6, 64.4}},
	{{23, 82.6}, {29, 79.8}, {30, 79.8}, {25, 82.6}, {23, 82.6}},
	{{37, 70.7}, {43, 62.3}, {44, 62.3}, {39, 70.7}, {37, 70.7}},
	{{48, 51.1}, {51, 45.5}, {53, 45.5}, {50, 51.1}, {48, 51.1}},
	{{51, 35}, {51, 28.7}, {53, 28.7}, {53, 35}, {51, 35}},
	{{52, 22.4}, {55, 17.5}, {56, 17.5}, {53, 22.4}, {52, 22.4}},
	{{58, 12.6}, {62, 7}, {63, 7}, {60, 12.6}, {58, 12.6}},
	{{0, 3.5}, {0, 93.1}, {64, 93.1}, {64, 0}, {63, 0}, {63, 92.4}, {1, 92.4}, {1, 3.5}, {0, 3.5}},
}

var diaoyuIsland = orb.Polygon{orb.Ring{
	{123.45165252685547, 25.73527164402261},
	{123.49731445312499, 25.73527164402261},
	{123.49731445312499, 25.750734064600884},
	{123.45165252685547, 25.750734064600884},
	{123.45165252685547, 25.73527164402261},
}}

func nanhaiGeometry() orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(nanhaiPixels))
	for _, pixels := range nanhaiPixels {
		ring := make(orb.Ring, 0, len(pixels))
		for _, p := range pixels {
			ring = append(ring, orb.Point{
				p[0]/chinaPixelsPerLng + nanhaiOrigin.X(),
				-p[1]/chinaPixelsPerLat + nanhaiOrigin.Y(),
			})
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp
}

func chinaPreset() []Correction {
	center := nanhaiOrigin
	steps := []Correction{
		InsertRegion{Region: "南海诸岛", Geometry: nanhaiGeometry(), Center: &center},
	}
	for _, o := range chinaLabelOffsets {
		steps = append(steps, OffsetGeoCoord{
			Region: o.region,
			Delta:  orb.Point{o.dx / chinaPixelsPerLng, -o.dy / chinaPixelsPerLat},
		})
	}
	return append(steps, AppendPolygon{Region: "台湾", Polygon: diaoyuIsland})
}

func worldPreset() []Correction {
	return []Correction{
		SetGeoCoord{Region: "Russia", Coord: orb.Point{100, 60}},
	}
}

var presets = map[string]func() []Correction{
	PresetChina: chinaPreset,
	PresetWorld: worldPreset,
}

// Preset returns a fresh copy of the named correction list.
func Preset(name string) ([]Correction, bool) {
	build, ok := presets[name]
	if !ok {
		return nil, false
	}
	return build(), true
}

// PresetNames returns the known preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultPresets returns the presets applied to a map that does not list
// its own: the preset named like the map, if any.
func DefaultPresets(mapName string) []string {
	if _, ok := presets[mapName]; ok {
		return []string{mapName}
	}
	return nil
}
