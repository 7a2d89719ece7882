// Package geo models a map of named regions as a coordinate system. It
// parses boundary documents, indexes regions by name, applies special-area
// repositioning and a correction pipeline, and converts between
// longitude/latitude and an output rectangle.
package geo

import (
	"github.com/paulmach/orb"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/view"
)

// Dimensions are the data dimensions of a geographic coordinate system.
var Dimensions = []string{"lng", "lat"}

// CoordSys is a geographic coordinate system built from one boundary
// document. It is not safe for concurrent use; callers serialise access.
type CoordSys struct {
	name        string
	regions     []*Region
	regionIndex map[string]*Region
	nameCoords  map[string]orb.Point
	bounds      *domain.Rect
	corrections []Correction
	view        *view.View
}

// Option configures a CoordSys.
type Option func(*CoordSys)

// WithCorrections sets the correction steps run after every Load.
func WithCorrections(steps ...Correction) Option {
	return func(c *CoordSys) {
		c.corrections = append(c.corrections, steps...)
	}
}

// WithZoomLimit bounds the zoom factor of the view.
func WithZoomLimit(limit view.ZoomLimit) Option {
	return func(c *CoordSys) {
		c.view.ZoomLimit = limit
	}
}

// New creates an empty coordinate system.
func New(name string, opts ...Option) *CoordSys {
	c := &CoordSys{
		name:        name,
		regionIndex: make(map[string]*Region),
		nameCoords:  make(map[string]orb.Point),
		view:        view.New(true),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadOptions holds the per-load inputs besides the document itself.
type LoadOptions struct {
	Parse        ParseOptions
	Aliases      map[string]string             // raw name -> resolved name
	SpecialAreas map[string]domain.SpecialArea // resolved name -> frame
}

// Load replaces the region set with the regions of doc. Raw names found in
// Aliases are renamed once; on duplicate names the later region wins the
// index. Special areas are applied in document order, then the correction
// steps run. On error the previous state is kept.
func (c *CoordSys) Load(doc []byte, opts LoadOptions) error {
	parsed, err := Parse(doc, opts.Parse)
	if err != nil {
		return err
	}

	regions := make([]*Region, 0, len(parsed))
	index := make(map[string]*Region, len(parsed))
	coords := make(map[string]orb.Point, len(parsed))
	for _, r := range parsed {
		if alias, ok := opts.Aliases[r.Name]; ok {
			r.Name = alias
		}
		regions = append(regions, r)
		index[r.Name] = r
		coords[r.Name] = r.Center
	}

	for _, r := range regions {
		area, ok := opts.SpecialAreas[r.Name]
		if !ok {
			continue
		}
		r.TransformTo(area.Left, area.Top, area.Width, area.Height)
		if index[r.Name] == r {
			coords[r.Name] = r.Center
		}
	}

	c.regions = regions
	c.regionIndex = index
	c.nameCoords = coords
	c.bounds = nil

	for _, step := range c.corrections {
		step.Apply(c)
	}
	c.bounds = nil
	return nil
}

// Name returns the map name.
func (c *CoordSys) Name() string {
	return c.name
}

// Corrections returns the names of the configured correction steps.
func (c *CoordSys) Corrections() []string {
	names := make([]string, 0, len(c.corrections))
	for _, step := range c.corrections {
		names = append(names, step.Name())
	}
	return names
}

// Regions returns all regions in document order, inserted regions last.
func (c *CoordSys) Regions() []*Region {
	out := make([]*Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// RegionCount returns the number of regions.
func (c *CoordSys) RegionCount() int {
	return len(c.regions)
}

// Region looks up a region by its resolved name.
func (c *CoordSys) Region(name string) (*Region, bool) {
	r, ok := c.regionIndex[name]
	return r, ok
}

// AddRegion appends r and indexes it under its name, replacing any
// indexed region of the same name.
func (c *CoordSys) AddRegion(r *Region) {
	c.regions = append(c.regions, r)
	c.regionIndex[r.Name] = r
	c.nameCoords[r.Name] = r.Center
	c.bounds = nil
}

// RegionAt returns the first region in document order containing pt.
func (c *CoordSys) RegionAt(pt orb.Point) (*Region, bool) {
	for _, r := range c.regions {
		if r.Contains(pt) {
			return r, true
		}
	}
	return nil, false
}

// ContainsPoint reports whether any region contains pt.
func (c *CoordSys) ContainsPoint(pt orb.Point) bool {
	_, ok := c.RegionAt(pt)
	return ok
}

// GeoCoord returns the coordinate registered for name.
func (c *CoordSys) GeoCoord(name string) (orb.Point, bool) {
	pt, ok := c.nameCoords[name]
	return pt, ok
}

// AddGeoCoord registers or replaces the coordinate for name.
func (c *CoordSys) AddGeoCoord(name string, pt orb.Point) {
	c.nameCoords[name] = pt
}

// BoundingRect returns the union of all region rects. The result is
// cached until the next Load or InvalidateBounds. No regions yield a zero
// rect at the origin.
func (c *CoordSys) BoundingRect() domain.Rect {
	if c.bounds != nil {
		return *c.bounds
	}

	var rect domain.Rect
	for i, r := range c.regions {
		if i == 0 {
			rect = r.BoundingRect()
			continue
		}
		rect = rect.Union(r.BoundingRect())
	}
	c.bounds = &rect
	return rect
}

// InvalidateBounds drops the cached bounding rect.
func (c *CoordSys) InvalidateBounds() {
	c.bounds = nil
}

// View returns the view used for conversion, e.g. to set center and zoom.
func (c *CoordSys) View() *view.View {
	return c.view
}

// FitTo derives the transform that maps the bounding rect into the output
// rect (x, y, width, height). North ends up at smaller output Y.
func (c *CoordSys) FitTo(x, y, width, height float64) {
	c.view.SetBoundingRect(c.BoundingRect())
	c.view.SetViewRect(domain.NewRect(x, y, width, height))
}

// DataToPoint converts in to output space. A name without a registered
// coordinate yields no result.
func (c *CoordSys) DataToPoint(in Input) (orb.Point, bool) {
	return c.dataToPoint(in, false)
}

// DataToPointNoRoam converts in to output space ignoring pan and zoom.
func (c *CoordSys) DataToPointNoRoam(in Input) (orb.Point, bool) {
	return c.dataToPoint(in, true)
}

func (c *CoordSys) dataToPoint(in Input, noRoam bool) (orb.Point, bool) {
	pt, ok := in.Point()
	if name, named := in.Name(); named {
		pt, ok = c.GeoCoord(name)
	}
	if !ok {
		return orb.Point{}, false
	}
	x, y := c.view.DataToPoint(pt.X(), pt.Y(), noRoam)
	return orb.Point{x, y}, true
}

// PointToData converts an output point to longitude/latitude.
func (c *CoordSys) PointToData(pt orb.Point) orb.Point {
	x, y := c.view.PointToData(pt.X(), pt.Y())
	return orb.Point{x, y}
}
