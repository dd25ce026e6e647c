package geometry

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
)

// Bounds is an axis-aligned rectangle in pixel space.
// The zero value is empty and becomes valid with the first Extend.
type Bounds struct {
	Min   Point
	Max   Point
	valid bool
}

// NewBounds returns the smallest Bounds containing all points.
func NewBounds(points ...Point) Bounds {
	var b Bounds
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

func FromGeomExtent(e geom.Extent) Bounds {
	return NewBounds(Point{e.MinX(), e.MinY()}, Point{e.MaxX(), e.MaxY()})
}

func (b Bounds) ToGeomExtent() geom.Extent {
	return geom.Extent{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
}

// Extend returns bounds grown to include p.
func (b Bounds) Extend(p Point) Bounds {
	if !b.valid {
		return Bounds{Min: p, Max: p, valid: true}
	}
	return Bounds{
		Min:   Point{math.Min(p.X, b.Min.X), math.Min(p.Y, b.Min.Y)},
		Max:   Point{math.Max(p.X, b.Max.X), math.Max(p.Y, b.Max.Y)},
		valid: true,
	}
}

// ExtendBounds returns bounds grown to include o. Empty bounds are ignored.
func (b Bounds) ExtendBounds(o Bounds) Bounds {
	if !o.valid {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

func (b Bounds) IsValid() bool {
	return b.valid
}

func (b Bounds) Center() Point {
	return Point{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2}
}

func (b Bounds) BottomLeft() Point {
	return Point{b.Min.X, b.Max.Y}
}

func (b Bounds) TopRight() Point {
	return Point{b.Max.X, b.Min.Y}
}

func (b Bounds) TopLeft() Point {
	return b.Min
}

func (b Bounds) BottomRight() Point {
	return b.Max
}

func (b Bounds) Size() Point {
	return b.Max.Subtract(b.Min)
}

// Contains reports whether p lies inside or on the edge of b.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// ContainsBounds reports whether o lies completely inside b.
func (b Bounds) ContainsBounds(o Bounds) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// Intersects reports whether b and o have at least one point in common (touching edges count).
func (b Bounds) Intersects(o Bounds) bool {
	xIntersects := o.Max.X >= b.Min.X && o.Min.X <= b.Max.X
	yIntersects := o.Max.Y >= b.Min.Y && o.Min.Y <= b.Max.Y
	return xIntersects && yIntersects
}

// Overlaps reports whether b and o share an area (touching edges do not count).
func (b Bounds) Overlaps(o Bounds) bool {
	xOverlaps := o.Max.X > b.Min.X && o.Min.X < b.Max.X
	yOverlaps := o.Max.Y > b.Min.Y && o.Min.Y < b.Max.Y
	return xOverlaps && yOverlaps
}

// Pad grows b on every side by ratio times its size.
func (b Bounds) Pad(ratio float64) Bounds {
	d := b.Size().MultiplyBy(ratio)
	return NewBounds(b.Min.Subtract(d), b.Max.Add(d))
}

func (b Bounds) Equals(o Bounds) bool {
	return b.valid == o.valid && b.Min.Equals(o.Min) && b.Max.Equals(o.Max)
}

func (b Bounds) String() string {
	if !b.valid {
		return "Bounds[]"
	}
	return fmt.Sprintf("Bounds[%v, %v]", b.Min, b.Max)
}
