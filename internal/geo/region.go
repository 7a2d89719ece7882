package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/jobrunner/geoview/internal/domain"
)

// Region is a named area made of one or more polygons. The first ring of
// every polygon is its exterior, the rest are holes.
type Region struct {
	Name     string
	Geometry orb.MultiPolygon
	Center   orb.Point

	rect *domain.Rect
}

// NewRegion creates a region. A nil center is replaced by the center of
// the region's bounding rect.
func NewRegion(name string, geometry orb.MultiPolygon, center *orb.Point) *Region {
	r := &Region{Name: name, Geometry: geometry}
	if center != nil {
		r.Center = *center
	} else {
		cx, cy := r.BoundingRect().Center()
		r.Center = orb.Point{cx, cy}
	}
	return r
}

// BoundingRect returns the smallest rect enclosing all polygon exteriors.
// A region without coordinates has a zero rect.
func (r *Region) BoundingRect() domain.Rect {
	if r.rect != nil {
		return *r.rect
	}

	var (
		bound orb.Bound
		seen  bool
	)
	for _, poly := range r.Geometry {
		if len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		b := poly[0].Bound()
		if !seen {
			bound, seen = b, true
			continue
		}
		bound = bound.Union(b)
	}

	rect := domain.Rect{}
	if seen {
		rect = domain.RectFromPoints(bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y())
	}
	r.rect = &rect
	return rect
}

// Contains reports whether pt lies inside one of the region's polygons and
// outside that polygon's holes.
func (r *Region) Contains(pt orb.Point) bool {
	if !r.BoundingRect().Contains(pt.X(), pt.Y()) {
		return false
	}
	return planar.MultiPolygonContains(r.Geometry, pt)
}

// TransformTo moves and scales the region so that its bounding rect
// becomes the given frame. When exactly one of width and height is zero it
// is derived from the current aspect ratio. A source without area has no
// aspect ratio, so the zero side keeps the source extent instead. A
// zero-extent source axis stays zero and is placed at the frame origin.
func (r *Region) TransformTo(x, y, width, height float64) {
	rect := r.BoundingRect()
	degenerate := rect.Width == 0 || rect.Height == 0
	switch {
	case width == 0 && height != 0:
		if degenerate {
			width = rect.Width
		} else {
			width = rect.Width / rect.Height * height
		}
	case height == 0 && width != 0:
		if degenerate {
			height = rect.Height
		} else {
			height = rect.Height / rect.Width * width
		}
	}

	target := domain.NewRect(x, y, width, height)
	m := rect.CalculateTransform(target)

	for _, poly := range r.Geometry {
		for _, ring := range poly {
			for i, p := range ring {
				px, py := m.Apply(p.X(), p.Y())
				ring[i] = orb.Point{px, py}
			}
		}
	}
	cx, cy := m.Apply(r.Center.X(), r.Center.Y())
	r.Center = orb.Point{cx, cy}

	if degenerate {
		// the zero-extent axis does not reach the frame size
		r.rect = nil
		return
	}
	r.rect = &target
}

// AppendPolygon adds a polygon to the region.
func (r *Region) AppendPolygon(p orb.Polygon) {
	r.Geometry = append(r.Geometry, p)
	r.rect = nil
}

// SetCenter replaces the region's label coordinate.
func (r *Region) SetCenter(pt orb.Point) {
	r.Center = pt
}

// Invalidate drops the cached bounding rect. Call it after changing
// Geometry directly.
func (r *Region) Invalidate() {
	r.rect = nil
}

// Clone returns a deep copy carrying the given name.
func (r *Region) Clone(name string) *Region {
	c := &Region{
		Name:     name,
		Geometry: r.Geometry.Clone(),
		Center:   r.Center,
	}
	if r.rect != nil {
		rect := *r.rect
		c.rect = &rect
	}
	return c
}

// Info returns a read-only snapshot.
func (r *Region) Info() domain.RegionInfo {
	return domain.RegionInfo{
		Name:         r.Name,
		Center:       [2]float64{r.Center.X(), r.Center.Y()},
		BoundingRect: r.BoundingRect(),
		Polygons:     len(r.Geometry),
	}
}
