package view

import (
	"math"

	"github.com/jobrunner/geoview/internal/domain"
)

const epsilon = 5e-5

func isAroundZero(v float64) bool {
	return v > -epsilon && v < epsilon
}

// Transformable holds an affine transform in decomposed form. The local
// transform is built as: move to origin, scale, rotate, move back, translate
// by position.
type Transformable struct {
	Position [2]float64
	Scale    [2]float64
	Rotation float64
	Origin   [2]float64
}

// NewTransformable returns a transformable with unit scale.
func NewTransformable() Transformable {
	return Transformable{Scale: [2]float64{1, 1}}
}

// NeedsTransform reports whether the local transform differs from identity.
func (t *Transformable) NeedsTransform() bool {
	return !isAroundZero(t.Rotation) ||
		!isAroundZero(t.Position[0]) || !isAroundZero(t.Position[1]) ||
		!isAroundZero(t.Scale[0]-1) || !isAroundZero(t.Scale[1]-1)
}

// LocalTransform composes the matrix described by the decomposed fields.
func (t *Transformable) LocalTransform() domain.Matrix {
	m := domain.Identity().Translate(-t.Origin[0], -t.Origin[1])
	m = m.Scale(t.Scale[0], t.Scale[1])
	if t.Rotation != 0 {
		m = m.Rotate(t.Rotation)
	}
	return m.Translate(t.Origin[0]+t.Position[0], t.Origin[1]+t.Position[1])
}

// Decompose sets position, scale and rotation from m. Origin is reset.
func (t *Transformable) Decompose(m domain.Matrix) {
	sx := m[0]*m[0] + m[1]*m[1]
	sy := m[2]*m[2] + m[3]*m[3]
	if !isAroundZero(sx - 1) {
		sx = math.Sqrt(sx)
	}
	if !isAroundZero(sy - 1) {
		sy = math.Sqrt(sy)
	}
	if m[0] < 0 {
		sx = -sx
	}
	if m[3] < 0 {
		sy = -sy
	}

	t.Position = [2]float64{m[4], m[5]}
	t.Scale = [2]float64{sx, sy}
	t.Origin = [2]float64{}
	t.Rotation = 0
	if sx != 0 {
		t.Rotation = math.Atan2(-m[1]/sx, m[0]/sx)
	}
}
