package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

func BetweenInc[T constraints.Integer | constraints.Float](f, p, q T) bool {
	if p <= q {
		return p <= f && f <= q
	}
	return q <= f && f <= p
}

func Pow2(n uint) uint {
	return 1 << n
}

func Bool2int(b bool) int {
	if b {
		return 1
	}
	return 0
}

func EuclidianMod(d, m int) int {
	r := d % m
	if (r < 0 && m > 0) || (r > 0 && m < 0) {
		return r + m
	}
	return r
}

// WrapNum returns x wrapped so it lies within the half-open range [min, max).
// With includeMax, x == max is returned as is instead of collapsing onto min.
func WrapNum[T constraints.Float](x T, bounds [2]T, includeMax bool) T {
	lo, hi := bounds[0], bounds[1]
	if x == hi && includeMax {
		return x
	}
	d := hi - lo
	return T(math.Mod(math.Mod(float64(x-lo), float64(d))+float64(d), float64(d))) + lo
}

// WrapInt is WrapNum for tile indices.
func WrapInt(x int, bounds [2]int) int {
	return EuclidianMod(x-bounds[0], bounds[1]-bounds[0]) + bounds[0]
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds halves towards +Inf (so -0.5 becomes 0), unlike math.Round.
func Round(f float64) float64 {
	return math.Floor(f + 0.5)
}
