// Package domain contains the core value types shared by the geographic
// model and the service layers.
package domain

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle anchored at its minimum corner.
// In geographic space X is longitude and Y is latitude; in output space
// Y grows downwards.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a rectangle.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromPoints returns the smallest rectangle enclosing both corners.
func RectFromPoints(x1, y1, x2, y2 float64) Rect {
	minX, maxX := math.Min(x1, x2), math.Max(x1, x2)
	minY, maxY := math.Min(y1, y2), math.Max(y1, y2)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Center returns the center point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// IsValid returns true if all components are finite and the size is not
// negative.
func (r Rect) IsValid() bool {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Width >= 0 && r.Height >= 0
}

// Validate checks the rectangle as an output frame.
func (r Rect) Validate() error {
	if !r.IsValid() {
		return &ValidationError{
			Field:      "rect",
			Value:      r,
			Constraint: "finite, width >= 0, height >= 0",
			Message:    "rectangle must be finite with non-negative size",
		}
	}
	return nil
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.MaxX() && y >= r.Y && y <= r.MaxY()
}

// Union returns the smallest rectangle enclosing r and o.
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(r.MaxX(), o.MaxX()) - x,
		Height: math.Max(r.MaxY(), o.MaxY()) - y,
	}
}

// ApplyTransform returns the bounding rectangle of r's corners under m.
func (r Rect) ApplyTransform(m Matrix) Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.Apply(r.X, r.Y)
	xs[1], ys[1] = m.Apply(r.MaxX(), r.Y)
	xs[2], ys[2] = m.Apply(r.X, r.MaxY())
	xs[3], ys[3] = m.Apply(r.MaxX(), r.MaxY())

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < 4; i++ {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// CalculateTransform returns the translate-scale-translate transform that
// maps r onto target. An axis on which r has no extent keeps scale 1 so
// the result stays invertible.
func (r Rect) CalculateTransform(target Rect) Matrix {
	sx, sy := 1.0, 1.0
	if r.Width != 0 {
		sx = target.Width / r.Width
	}
	if r.Height != 0 {
		sy = target.Height / r.Height
	}
	return Identity().
		Translate(-r.X, -r.Y).
		Scale(sx, sy).
		Translate(target.X, target.Y)
}

// Equal reports whether r and o differ by at most eps in every component.
func (r Rect) Equal(o Rect, eps float64) bool {
	return math.Abs(r.X-o.X) <= eps &&
		math.Abs(r.Y-o.Y) <= eps &&
		math.Abs(r.Width-o.Width) <= eps &&
		math.Abs(r.Height-o.Height) <= eps
}

// String returns a string representation of the rectangle.
func (r Rect) String() string {
	return fmt.Sprintf("RECT(%g %g %g %g)", r.X, r.Y, r.Width, r.Height)
}
