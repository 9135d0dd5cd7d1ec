package stage

import "github.com/chewxy/math32"

// Affine is a 2D affine transformation matrix in row-major form:
//
//	| A  C  E |
//	| B  D  F |
//	| 0  0  1 |
//
// Affine values are small and passed by value throughout.
type Affine struct {
	A, B, C, D, E, F float32
}

// IdentityAffine returns the identity transformation.
func IdentityAffine() Affine {
	return Affine{A: 1, D: 1}
}

// TranslateAffine returns a translation by (tx, ty).
func TranslateAffine(tx, ty float32) Affine {
	return Affine{A: 1, D: 1, E: tx, F: ty}
}

// ScaleAffine returns a scale by (sx, sy) about the origin.
func ScaleAffine(sx, sy float32) Affine {
	return Affine{A: sx, D: sy}
}

// RotateAffine returns a rotation by theta radians about the origin.
func RotateAffine(theta float32) Affine {
	s := math32.Sin(theta)
	c := math32.Cos(theta)
	return Affine{A: c, B: s, C: -s, D: c}
}

// Mul returns the matrix product m * n, the transform that applies n
// first and then m.
func (m Affine) Mul(n Affine) Affine {
	return Affine{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// TransformPoint maps the point (x, y) through m.
func (m Affine) TransformPoint(x, y float32) (float32, float32) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// Invert returns the inverse of m. The second result is false when m
// is singular, in which case the identity is returned.
func (m Affine) Invert() (Affine, bool) {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return IdentityAffine(), false
	}
	inv := 1 / det
	return Affine{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}, true
}

// RectF is an axis-aligned rectangle in float32 coordinates.
// Min is inclusive, Max exclusive. A rectangle with MaxX <= MinX or
// MaxY <= MinY is empty.
type RectF struct {
	MinX, MinY, MaxX, MaxY float32
}

// Width returns the horizontal extent of r.
func (r RectF) Width() float32 { return r.MaxX - r.MinX }

// Height returns the vertical extent of r.
func (r RectF) Height() float32 { return r.MaxY - r.MinY }

// Empty reports whether r contains no points.
func (r RectF) Empty() bool {
	return r.MaxX <= r.MinX || r.MaxY <= r.MinY
}

// Intersects reports whether r and s share any point.
func (r RectF) Intersects(s RectF) bool {
	if r.Empty() || s.Empty() {
		return false
	}
	return r.MinX < s.MaxX && s.MinX < r.MaxX &&
		r.MinY < s.MaxY && s.MinY < r.MaxY
}

// Union returns the smallest rectangle containing both r and s.
func (r RectF) Union(s RectF) RectF {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return RectF{
		MinX: math32.Min(r.MinX, s.MinX),
		MinY: math32.Min(r.MinY, s.MinY),
		MaxX: math32.Max(r.MaxX, s.MaxX),
		MaxY: math32.Max(r.MaxY, s.MaxY),
	}
}
