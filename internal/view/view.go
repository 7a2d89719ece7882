// Package view maps a rectangular data space onto an output rectangle,
// with an optional pan and zoom applied on top of the fit.
package view

import (
	"github.com/jobrunner/geoview/internal/domain"
)

// ZoomLimit bounds the zoom factor. Zero disables a bound.
type ZoomLimit struct {
	Min float64
	Max float64
}

// View converts between data space and output space. The raw transform
// fits the data bounding rect into the view rect; the roam transform
// applies pan and zoom around the current center.
//
// A View is not safe for concurrent use.
type View struct {
	ZoomLimit ZoomLimit

	rect     domain.Rect
	viewRect domain.Rect
	invertY  bool

	raw    Transformable
	roam   Transformable
	center *[2]float64
	zoom   float64

	transform    domain.Matrix
	rawTransform domain.Matrix
	invTransform domain.Matrix
	invertible   bool
}

// New creates a view with identity transforms. With invertY set, larger
// data Y values map to smaller output Y values, which is what geographic
// latitude needs in a Y-down output space.
func New(invertY bool) *View {
	v := &View{
		invertY: invertY,
		raw:     NewTransformable(),
		roam:    NewTransformable(),
		zoom:    1,
	}
	v.updateTransform()
	return v
}

// SetBoundingRect sets the data-space rect used for fitting.
func (v *View) SetBoundingRect(r domain.Rect) {
	v.rect = r
}

// BoundingRect returns the data-space rect used for fitting.
func (v *View) BoundingRect() domain.Rect {
	return v.rect
}

// SetViewRect fits the data rect into r and remembers r.
func (v *View) SetViewRect(r domain.Rect) {
	v.TransformTo(r)
	v.viewRect = r
}

// ViewRect returns the last rect passed to SetViewRect.
func (v *View) ViewRect() domain.Rect {
	return v.viewRect
}

// TransformTo derives the raw transform that maps the data rect onto
// target. Each axis is scaled independently.
func (v *View) TransformTo(target domain.Rect) {
	src := v.rect
	if v.invertY {
		src.Y = -src.Y - src.Height
	}

	v.raw.Decompose(src.CalculateTransform(target))
	if v.invertY {
		v.raw.Scale[1] = -v.raw.Scale[1]
	}
	v.updateCenterAndZoom()
}

// SetCenter pans so that the data coordinate (x, y) is drawn where the
// center of the data rect would be.
func (v *View) SetCenter(x, y float64) {
	v.center = &[2]float64{x, y}
	v.updateCenterAndZoom()
}

// ResetCenter drops a center set with SetCenter.
func (v *View) ResetCenter() {
	v.center = nil
	v.updateCenterAndZoom()
}

// Center returns the roam center in data space.
func (v *View) Center() (float64, float64) {
	if v.center != nil {
		return v.center[0], v.center[1]
	}
	return v.rect.Center()
}

// SetZoom sets the zoom factor, clamped to ZoomLimit. Zero means 1.
func (v *View) SetZoom(zoom float64) {
	if zoom == 0 {
		zoom = 1
	}
	if v.ZoomLimit.Max != 0 && zoom > v.ZoomLimit.Max {
		zoom = v.ZoomLimit.Max
	}
	if v.ZoomLimit.Min != 0 && zoom < v.ZoomLimit.Min {
		zoom = v.ZoomLimit.Min
	}
	v.zoom = zoom
	v.updateCenterAndZoom()
}

// Zoom returns the zoom factor.
func (v *View) Zoom() float64 {
	return v.zoom
}

// Transform returns the full data-to-output transform.
func (v *View) Transform() domain.Matrix {
	return v.transform
}

// RawTransform returns the data-to-output transform without roam.
func (v *View) RawTransform() domain.Matrix {
	return v.rawTransform
}

// RoamTransform returns the pan and zoom transform in output space.
func (v *View) RoamTransform() domain.Matrix {
	return v.roam.LocalTransform()
}

// ViewRectAfterRoam returns the output-space rect covered by the data rect
// with roam applied.
func (v *View) ViewRectAfterRoam() domain.Rect {
	return v.rect.ApplyTransform(v.transform)
}

// DataToPoint converts a data coordinate to output space. With noRoam set
// the pan and zoom are ignored.
func (v *View) DataToPoint(x, y float64, noRoam bool) (float64, float64) {
	if noRoam {
		return v.rawTransform.Apply(x, y)
	}
	return v.transform.Apply(x, y)
}

// PointToData converts an output point back to data space. A singular
// transform leaves the point unchanged.
func (v *View) PointToData(x, y float64) (float64, float64) {
	if !v.invertible {
		return x, y
	}
	return v.invTransform.Apply(x, y)
}

func (v *View) updateCenterAndZoom() {
	raw := v.raw.LocalTransform()

	dcx, dcy := raw.Apply(v.rect.Center())
	cx, cy := raw.Apply(v.Center())

	v.roam.Origin = [2]float64{cx, cy}
	v.roam.Position = [2]float64{dcx - cx, dcy - cy}
	v.roam.Scale = [2]float64{v.zoom, v.zoom}
	v.updateTransform()
}

func (v *View) updateTransform() {
	v.rawTransform = v.raw.LocalTransform()
	if v.roam.NeedsTransform() {
		v.transform = v.roam.LocalTransform().Mul(v.rawTransform)
	} else {
		v.transform = v.rawTransform
	}
	v.invTransform, v.invertible = v.transform.Invert()
}
