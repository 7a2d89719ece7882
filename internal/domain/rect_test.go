package domain

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) <= eps
}

func TestRectUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{
			name: "disjoint",
			a:    NewRect(0, 0, 1, 1),
			b:    NewRect(2, 3, 1, 1),
			want: NewRect(0, 0, 3, 4),
		},
		{
			name: "nested",
			a:    NewRect(0, 0, 10, 10),
			b:    NewRect(2, 2, 1, 1),
			want: NewRect(0, 0, 10, 10),
		},
		{
			name: "negative coordinates",
			a:    NewRect(-10, -5, 5, 5),
			b:    NewRect(0, 0, 5, 5),
			want: NewRect(-10, -5, 15, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Union(tt.b); !got.Equal(tt.want, eps) {
				t.Errorf("Union() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Union(tt.a); !got.Equal(tt.want, eps) {
				t.Errorf("Union() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectContains(t *testing.T) {
	r := NewRect(0, 0, 10, 5)

	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"inside", 5, 2, true},
		{"on edge", 10, 5, true},
		{"left of rect", -0.1, 2, false},
		{"below rect", 5, 5.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.x, tt.y); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestRectCalculateTransform(t *testing.T) {
	src := NewRect(0, 0, 10, 20)
	dst := NewRect(100, 200, 50, 40)
	m := src.CalculateTransform(dst)

	x, y := m.Apply(0, 0)
	if !approx(x, 100) || !approx(y, 200) {
		t.Errorf("Apply(0, 0) = (%v, %v), want (100, 200)", x, y)
	}

	x, y = m.Apply(10, 20)
	if !approx(x, 150) || !approx(y, 240) {
		t.Errorf("Apply(10, 20) = (%v, %v), want (150, 240)", x, y)
	}

	if got := src.ApplyTransform(m); !got.Equal(dst, eps) {
		t.Errorf("ApplyTransform() = %v, want %v", got, dst)
	}
}

func TestRectCalculateTransformDegenerate(t *testing.T) {
	src := NewRect(5, 0, 0, 10)
	m := src.CalculateTransform(NewRect(0, 0, 100, 100))

	if _, ok := m.Invert(); !ok {
		t.Fatal("transform of a zero-width rect should stay invertible")
	}

	x, y := m.Apply(5, 10)
	if !approx(x, 0) || !approx(y, 100) {
		t.Errorf("Apply(5, 10) = (%v, %v), want (0, 100)", x, y)
	}
}

func TestRectApplyTransformFlip(t *testing.T) {
	r := NewRect(1, 1, 2, 2)
	got := r.ApplyTransform(Identity().Scale(-1, 1))
	want := NewRect(-3, 1, 2, 2)

	if !got.Equal(want, eps) {
		t.Errorf("ApplyTransform() = %v, want %v", got, want)
	}
}

func TestRectValidate(t *testing.T) {
	tests := []struct {
		name    string
		rect    Rect
		wantErr bool
	}{
		{"valid", NewRect(0, 0, 800, 600), false},
		{"empty", NewRect(0, 0, 0, 0), false},
		{"negative width", NewRect(0, 0, -1, 600), true},
		{"nan", NewRect(math.NaN(), 0, 1, 1), true},
		{"infinite height", NewRect(0, 0, 1, math.Inf(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rect.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRectFromPoints(t *testing.T) {
	got := RectFromPoints(10, -5, -10, 5)
	want := NewRect(-10, -5, 20, 10)

	if !got.Equal(want, eps) {
		t.Errorf("RectFromPoints() = %v, want %v", got, want)
	}
}
