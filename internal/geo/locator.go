package geo

import (
	"github.com/paulmach/orb"

	"github.com/jobrunner/geoview/internal/domain"
)

// Locator resolves the coordinate system a finder addresses. The host
// application implements it over its map and series registry.
type Locator interface {
	Locate(f domain.Finder) (*CoordSys, bool)
}

// ConvertToPixel converts in to output space when the coordinate system
// that f resolves to is c. Otherwise the result is absent.
func (c *CoordSys) ConvertToPixel(loc Locator, f domain.Finder, in Input) (orb.Point, bool) {
	if !c.owns(loc, f) {
		return orb.Point{}, false
	}
	return c.DataToPoint(in)
}

// ConvertFromPixel converts pt to geographic space when the coordinate
// system that f resolves to is c. Otherwise the result is absent.
func (c *CoordSys) ConvertFromPixel(loc Locator, f domain.Finder, pt orb.Point) (orb.Point, bool) {
	if !c.owns(loc, f) {
		return orb.Point{}, false
	}
	return c.PointToData(pt), true
}

func (c *CoordSys) owns(loc Locator, f domain.Finder) bool {
	if loc == nil || f.IsZero() {
		return false
	}
	resolved, ok := loc.Locate(f)
	return ok && resolved == c
}
