package geo

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geoview/internal/domain"
)

// Correction is one post-load fix applied to a coordinate system. Steps
// run in order after special-area repositioning. A step whose target
// region does not exist does nothing. Steps that change geometry must
// leave the bounds cache invalidated.
type Correction interface {
	Name() string
	Apply(c *CoordSys)
}

// RelocateRegion moves a region's geometry onto a new frame.
type RelocateRegion struct {
	Region string
	Frame  domain.SpecialArea
}

func (s RelocateRegion) Name() string { return "relocate:" + s.Region }

func (s RelocateRegion) Apply(c *CoordSys) {
	r, ok := c.Region(s.Region)
	if !ok {
		return
	}
	r.TransformTo(s.Frame.Left, s.Frame.Top, s.Frame.Width, s.Frame.Height)
	c.AddGeoCoord(r.Name, r.Center)
	c.InvalidateBounds()
}

// OffsetGeoCoord shifts a region's label coordinate by Delta, in degrees.
type OffsetGeoCoord struct {
	Region string
	Delta  orb.Point
}

func (s OffsetGeoCoord) Name() string { return "offset-coord:" + s.Region }

func (s OffsetGeoCoord) Apply(c *CoordSys) {
	r, ok := c.Region(s.Region)
	if !ok {
		return
	}
	r.SetCenter(orb.Point{r.Center.X() + s.Delta.X(), r.Center.Y() + s.Delta.Y()})
	c.AddGeoCoord(r.Name, r.Center)
}

// SetGeoCoord replaces a region's label coordinate.
type SetGeoCoord struct {
	Region string
	Coord  orb.Point
}

func (s SetGeoCoord) Name() string { return "set-coord:" + s.Region }

func (s SetGeoCoord) Apply(c *CoordSys) {
	r, ok := c.Region(s.Region)
	if !ok {
		return
	}
	r.SetCenter(s.Coord)
	c.AddGeoCoord(r.Name, r.Center)
}

// AppendPolygon adds a polygon to an existing region.
type AppendPolygon struct {
	Region  string
	Polygon orb.Polygon
}

func (s AppendPolygon) Name() string { return "append-polygon:" + s.Region }

func (s AppendPolygon) Apply(c *CoordSys) {
	r, ok := c.Region(s.Region)
	if !ok {
		return
	}
	r.AppendPolygon(s.Polygon.Clone())
	c.InvalidateBounds()
}

// InsertRegion adds a region that the boundary document lacks. Nothing
// happens when a region of that name already exists.
type InsertRegion struct {
	Region   string
	Geometry orb.MultiPolygon
	Center   *orb.Point
}

func (s InsertRegion) Name() string { return "insert-region:" + s.Region }

func (s InsertRegion) Apply(c *CoordSys) {
	if _, ok := c.Region(s.Region); ok {
		return
	}
	c.AddRegion(NewRegion(s.Region, s.Geometry.Clone(), s.Center))
}

// CorrectionSpec is the declarative form of a correction step, as found in
// map sidecar files.
type CorrectionSpec struct {
	Type     string              `yaml:"type"`
	Region   string              `yaml:"region"`
	Frame    *domain.SpecialArea `yaml:"frame,omitempty"`
	Delta    []float64           `yaml:"delta,omitempty"`
	Coord    []float64           `yaml:"coord,omitempty"`
	Polygons [][][][]float64     `yaml:"polygons,omitempty"`
}

// Correction step types accepted by Build.
const (
	CorrectionRelocate      = "relocate"
	CorrectionOffsetCoord   = "offset_coord"
	CorrectionSetCoord      = "set_coord"
	CorrectionAppendPolygon = "append_polygon"
	CorrectionInsertRegion  = "insert_region"
)

// Build turns a spec into a correction step.
func (s CorrectionSpec) Build() (Correction, error) {
	if s.Region == "" {
		return nil, invalidSpec(s, "region", "region is required")
	}

	switch s.Type {
	case CorrectionRelocate:
		if s.Frame == nil {
			return nil, invalidSpec(s, "frame", "frame is required")
		}
		return RelocateRegion{Region: s.Region, Frame: *s.Frame}, nil

	case CorrectionOffsetCoord:
		pt, err := specPoint(s, "delta", s.Delta)
		if err != nil {
			return nil, err
		}
		return OffsetGeoCoord{Region: s.Region, Delta: pt}, nil

	case CorrectionSetCoord:
		pt, err := specPoint(s, "coord", s.Coord)
		if err != nil {
			return nil, err
		}
		return SetGeoCoord{Region: s.Region, Coord: pt}, nil

	case CorrectionAppendPolygon:
		mp, err := specPolygons(s)
		if err != nil {
			return nil, err
		}
		if len(mp) != 1 {
			return nil, invalidSpec(s, "polygons", "exactly one polygon is required")
		}
		return AppendPolygon{Region: s.Region, Polygon: mp[0]}, nil

	case CorrectionInsertRegion:
		mp, err := specPolygons(s)
		if err != nil {
			return nil, err
		}
		step := InsertRegion{Region: s.Region, Geometry: mp}
		if s.Coord != nil {
			pt, err := specPoint(s, "coord", s.Coord)
			if err != nil {
				return nil, err
			}
			step.Center = &pt
		}
		return step, nil

	default:
		return nil, invalidSpec(s, "type", fmt.Sprintf("unknown correction type %q", s.Type))
	}
}

func specPoint(s CorrectionSpec, field string, v []float64) (orb.Point, error) {
	if len(v) != 2 {
		return orb.Point{}, invalidSpec(s, field, "expected [x, y]")
	}
	return orb.Point{v[0], v[1]}, nil
}

func specPolygons(s CorrectionSpec) (orb.MultiPolygon, error) {
	if len(s.Polygons) == 0 {
		return nil, invalidSpec(s, "polygons", "at least one polygon is required")
	}
	mp := make(orb.MultiPolygon, 0, len(s.Polygons))
	for _, rings := range s.Polygons {
		poly := make(orb.Polygon, 0, len(rings))
		for _, coords := range rings {
			ring := make(orb.Ring, 0, len(coords))
			for _, c := range coords {
				if len(c) < 2 {
					return nil, invalidSpec(s, "polygons", "coordinates need two values")
				}
				ring = append(ring, orb.Point{c[0], c[1]})
			}
			poly = append(poly, ring)
		}
		mp = append(mp, poly)
	}
	return mp, nil
}

func invalidSpec(s CorrectionSpec, field, msg string) error {
	return &domain.ValidationError{
		Field:      "corrections." + field,
		Value:      s.Region,
		Constraint: s.Type,
		Message:    msg,
	}
}
