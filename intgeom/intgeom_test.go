package intgeom

import (
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
)

func TestExtent(t *testing.T) {
	e := NewExtent(Point{-1, 2}, Point{2, 3})
	assert.Equal(t, 4, e.XSpan())
	assert.Equal(t, 2, e.YSpan())
	assert.Equal(t, 8, e.Len())
	assert.Equal(t, [2]float64{0.5, 2.5}, e.Center())
	assert.True(t, e.Contains(Point{-1, 3}))
	assert.False(t, e.Contains(Point{3, 3}))
	assert.Equal(t, geom.Extent{-1, 2, 3, 4}, e.ToGeomExtent())
	assert.Equal(t, []Point{{-1, 2}, {2, 2}, {2, 3}, {-1, 3}}, e.Vertices())
}

func TestExtentPoints(t *testing.T) {
	e := Extent{0, 0, 1, 1}
	assert.Equal(t, []Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}}, e.Points())

	empty := Extent{0, 0, -1, 5}
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Points())
}

func TestExtentIntersect(t *testing.T) {
	e := Extent{-2, -2, 5, 5}
	assert.Equal(t, Extent{0, 0, 3, 3}, e.Intersect(Extent{0, 0, 3, 3}))
	assert.True(t, e.Intersect(Extent{6, 0, 9, 3}).IsEmpty())
}

func TestPoint(t *testing.T) {
	p := Point{3, 4}
	assert.Equal(t, 3, p.X())
	assert.Equal(t, 4, p.Y())
	assert.Equal(t, 25.0, p.DistanceSq(0, 0))
	assert.Equal(t, geom.Point{3, 4}, p.ToGeomPoint())
}
