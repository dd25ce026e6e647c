// Package intgeom resembles github.com/go-spatial/geom but for the integer space of tile indices.
//
// A tile index is a column (x) and row (y) in the grid of a pyramid level.
// Extents are inclusive on both ends: Extent{0, 0, 1, 1} covers four tiles.
// Indices may be negative or beyond the grid of a level when the world wraps.
package intgeom

import (
	"github.com/go-spatial/geom"
)

// Point is a tile index
type Point [2]int

// X is the column
func (p Point) X() int { return p[0] }

// Y is the row
func (p Point) Y() int { return p[1] }

// XY returns an array of 2D coordinates
func (p Point) XY() [2]int {
	return p
}

func (p Point) ToGeomPoint() geom.Point {
	return geom.Point{float64(p[0]), float64(p[1])}
}

// DistanceSq is the squared euclidean distance from p to (x, y).
func (p Point) DistanceSq(x, y float64) float64 {
	dx := float64(p[0]) - x
	dy := float64(p[1]) - y
	return dx*dx + dy*dy
}
