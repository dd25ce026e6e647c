package geometry

// Transformation is the affine map (a*x + b, c*y + d) from projected coordinates
// to pixel coordinates at scale 1.
type Transformation struct {
	A, B, C, D float64
}

func NewTransformation(a, b, c, d float64) Transformation {
	return Transformation{A: a, B: b, C: c, D: d}
}

// Transform returns the transformed point multiplied by scale. A zero scale counts as 1.
func (t Transformation) Transform(p Point, scale float64) Point {
	if scale == 0 {
		scale = 1
	}
	// explicit conversions prevent fused multiply-adds, keeping results bit-identical across platforms
	x := scale * float64(float64(t.A*p.X)+t.B)
	y := scale * float64(float64(t.C*p.Y)+t.D)
	return Point{x, y}
}

// Untransform is the inverse of Transform.
func (t Transformation) Untransform(p Point, scale float64) Point {
	if scale == 0 {
		scale = 1
	}
	return Point{
		(p.X/scale - t.B) / t.A,
		(p.Y/scale - t.D) / t.C,
	}
}
