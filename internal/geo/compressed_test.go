package geo

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestDecodeRing(t *testing.T) {
	ring, err := decodeRing("BBAA", [2]float64{10, 20}, 1)
	if err != nil {
		t.Fatalf("decodeRing() error = %v", err)
	}
	if len(ring) != 2 {
		t.Fatalf("len(ring) = %d, want 2", len(ring))
	}
	if !pointApprox(ring[0], 11, 21) {
		t.Errorf("ring[0] = %v, want (11, 21)", ring[0])
	}
	if !pointApprox(ring[1], 10, 20) {
		t.Errorf("ring[1] = %v, want (10, 20)", ring[1])
	}
}

func TestDecodeRingOdd(t *testing.T) {
	if _, err := decodeRing("ABC", [2]float64{}, 1024); err == nil {
		t.Error("decodeRing() error = nil, want error for odd length")
	}
}

func TestParseCompressed(t *testing.T) {
	// a 4x2 degree rectangle at (100, 30), scaled by 1024
	pts := [][2]int64{
		{102400, 30720}, {106496, 30720}, {106496, 32768}, {102400, 32768}, {102400, 30720},
	}
	offset := [2]int64{102300, 30700}
	ring := encodeRing(pts, offset)

	polygon, _ := json.Marshal([]string{ring})
	multi, _ := json.Marshal([][]string{{ring}, {ring}})

	tests := []struct {
		name     string
		doc      string
		wantRect [4]float64
		polygons int
	}{
		{
			name: "polygon default scale",
			doc: fmt.Sprintf(`{"type": "FeatureCollection", "UTF8Encoding": true, "features": [
				{"type": "Feature", "properties": {"name": "R"},
				 "geometry": {"type": "Polygon", "coordinates": %s, "encodeOffsets": [[%d, %d]]}}]}`,
				polygon, offset[0], offset[1]),
			wantRect: [4]float64{100, 30, 4, 2},
			polygons: 1,
		},
		{
			name: "multipolygon explicit scale",
			doc: fmt.Sprintf(`{"type": "FeatureCollection", "UTF8Encoding": true, "UTF8Scale": 2048, "features": [
				{"type": "Feature", "properties": {"name": "R"},
				 "geometry": {"type": "MultiPolygon", "coordinates": %s, "encodeOffsets": [[[%d, %d]], [[%d, %d]]]}}]}`,
				multi, offset[0], offset[1], offset[0], offset[1]),
			wantRect: [4]float64{50, 15, 2, 1},
			polygons: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regions, err := Parse([]byte(tt.doc), ParseOptions{})
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(regions) != 1 {
				t.Fatalf("len(regions) = %d, want 1", len(regions))
			}

			r := regions[0]
			if len(r.Geometry) != tt.polygons {
				t.Errorf("polygons = %d, want %d", len(r.Geometry), tt.polygons)
			}
			got := r.BoundingRect()
			want := tt.wantRect
			if !approx(got.X, want[0]) || !approx(got.Y, want[1]) ||
				!approx(got.Width, want[2]) || !approx(got.Height, want[3]) {
				t.Errorf("BoundingRect() = %v, want %v", got, want)
			}
		})
	}
}
