// Package geometry holds the pixel-space primitives of the map: points, axis-aligned bounds
// and the affine transformation between projected and pixel coordinates.
//
// All types are values. Operations never modify their receiver but return a new value.
package geometry

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"

	"github.com/pdok/tilepyramid/mathhelp"
)

// Point is a position or vector in (pixel) space
type Point struct {
	X float64
	Y float64
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func FromGeomPoint(p geom.Point) Point {
	return Point{X: p[0], Y: p[1]}
}

func (p Point) ToGeomPoint() geom.Point {
	return geom.Point{p.X, p.Y}
}

// XY returns an array of 2D coordinates
func (p Point) XY() [2]float64 {
	return [2]float64{p.X, p.Y}
}

func (p Point) Add(o Point) Point {
	return Point{p.X + o.X, p.Y + o.Y}
}

func (p Point) Subtract(o Point) Point {
	return Point{p.X - o.X, p.Y - o.Y}
}

func (p Point) MultiplyBy(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

func (p Point) DivideBy(s float64) Point {
	return Point{p.X / s, p.Y / s}
}

// ScaleBy multiplies each coordinate with the corresponding coordinate of s.
func (p Point) ScaleBy(s Point) Point {
	return Point{p.X * s.X, p.Y * s.Y}
}

// UnscaleBy is the inverse of ScaleBy.
func (p Point) UnscaleBy(s Point) Point {
	return Point{p.X / s.X, p.Y / s.Y}
}

func (p Point) Floor() Point {
	return Point{math.Floor(p.X), math.Floor(p.Y)}
}

func (p Point) Ceil() Point {
	return Point{math.Ceil(p.X), math.Ceil(p.Y)}
}

// Round rounds both coordinates, halves towards +Inf.
func (p Point) Round() Point {
	return Point{mathhelp.Round(p.X), mathhelp.Round(p.Y)}
}

// Trunc truncates both coordinates towards zero.
func (p Point) Trunc() Point {
	return Point{math.Trunc(p.X), math.Trunc(p.Y)}
}

// DistanceTo is the Euclidean distance between p and o.
func (p Point) DistanceTo(o Point) float64 {
	dx := o.X - p.X
	dy := o.Y - p.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func (p Point) Equals(o Point) bool {
	return p.X == o.X && p.Y == o.Y
}

// Contains reports whether both absolute coordinates of o are smaller than or equal to those of p.
func (p Point) Contains(o Point) bool {
	return math.Abs(o.X) <= math.Abs(p.X) && math.Abs(o.Y) <= math.Abs(p.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("Point(%v, %v)", p.X, p.Y)
}
