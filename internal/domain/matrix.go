package domain

import "math"

// Matrix is a 2D affine transform stored as [a, b, c, d, tx, ty]:
//
//	x' = a*x + c*y + tx
//	y' = b*x + d*y + ty
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// IsIdentity reports whether m is exactly the identity transform.
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// Mul returns m * n, the transform that applies n first and m second.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

// Translate returns m followed by a translation of (tx, ty).
func (m Matrix) Translate(tx, ty float64) Matrix {
	m[4] += tx
	m[5] += ty
	return m
}

// Scale returns m followed by a scaling of (sx, sy).
func (m Matrix) Scale(sx, sy float64) Matrix {
	return Matrix{
		m[0] * sx,
		m[1] * sy,
		m[2] * sx,
		m[3] * sy,
		m[4] * sx,
		m[5] * sy,
	}
}

// Rotate returns m followed by a rotation of rad radians. Positive angles
// rotate counter-clockwise in a Y-down output space.
func (m Matrix) Rotate(rad float64) Matrix {
	st, ct := math.Sin(rad), math.Cos(rad)
	return Matrix{
		m[0]*ct + m[1]*st,
		-m[0]*st + m[1]*ct,
		m[2]*ct + m[3]*st,
		-m[2]*st + m[3]*ct,
		ct*m[4] + st*m[5],
		ct*m[5] - st*m[4],
	}
}

// Invert returns the inverse transform. ok is false when m is singular.
func (m Matrix) Invert() (inv Matrix, ok bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 || math.IsNaN(det) {
		return Matrix{}, false
	}
	det = 1 / det
	return Matrix{
		m[3] * det,
		-m[1] * det,
		-m[2] * det,
		m[0] * det,
		(m[2]*m[5] - m[3]*m[4]) * det,
		(m[1]*m[4] - m[0]*m[5]) * det,
	}, true
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}
