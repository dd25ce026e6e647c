package intgeom

import (
	"github.com/go-spatial/geom"
)

// Extent represents the minx, miny, maxx and maxy of a tile range, all inclusive
type Extent [4]int

func NewExtent(min, max Point) Extent {
	return Extent{min[0], min[1], max[0], max[1]}
}

// ToGeomExtent returns the area covered by the tiles of e, in tile units.
func (e Extent) ToGeomExtent() geom.Extent {
	return geom.Extent{
		float64(e.MinX()),
		float64(e.MinY()),
		float64(e.MaxX() + 1),
		float64(e.MaxY() + 1),
	}
}

// Vertices return the corner tiles of the Extent. The vertices are ordered in the following manner.
// (minx,miny), (maxx,miny), (maxx,maxy), (minx,maxy)
func (e Extent) Vertices() []Point {
	return []Point{
		{e.MinX(), e.MinY()},
		{e.MaxX(), e.MinY()},
		{e.MaxX(), e.MaxY()},
		{e.MinX(), e.MaxY()},
	}
}

// MaxX is the larger of the x values.
func (e Extent) MaxX() int {
	return e[2]
}

// MinX  is the smaller of the x values.
func (e Extent) MinX() int {
	return e[0]
}

// MaxY is the larger of the y values.
func (e Extent) MaxY() int {
	return e[3]
}

// MinY is the smaller of the y values.
func (e Extent) MinY() int {
	return e[1]
}

// XSpan is the number of columns in the Extent
func (e Extent) XSpan() int {
	return e[2] - e[0] + 1
}

// YSpan is the number of rows in the Extent
func (e Extent) YSpan() int {
	return e[3] - e[1] + 1
}

// IsEmpty is true when the Extent contains no tiles.
func (e Extent) IsEmpty() bool {
	return e.XSpan() <= 0 || e.YSpan() <= 0
}

// Len is the number of tiles in the Extent.
func (e Extent) Len() int {
	if e.IsEmpty() {
		return 0
	}
	return e.XSpan() * e.YSpan()
}

// Center is the midpoint between the min and max tile.
func (e Extent) Center() [2]float64 {
	return [2]float64{
		float64(e.MinX()+e.MaxX()) / 2,
		float64(e.MinY()+e.MaxY()) / 2,
	}
}

func (e Extent) Contains(p Point) bool {
	return p.X() >= e.MinX() && p.X() <= e.MaxX() && p.Y() >= e.MinY() && p.Y() <= e.MaxY()
}

// Points returns all tiles in the Extent, row by row.
func (e Extent) Points() []Point {
	points := make([]Point, 0, e.Len())
	for y := e.MinY(); y <= e.MaxY(); y++ {
		for x := e.MinX(); x <= e.MaxX(); x++ {
			points = append(points, Point{x, y})
		}
	}
	return points
}

// Intersect returns the tiles both in e and o. The result may be empty.
func (e Extent) Intersect(o Extent) Extent {
	return Extent{
		max(e.MinX(), o.MinX()),
		max(e.MinY(), o.MinY()),
		min(e.MaxX(), o.MaxX()),
		min(e.MaxY(), o.MaxY()),
	}
}
