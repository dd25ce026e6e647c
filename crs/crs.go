// Package crs composes a projection, a transformation and a zoom to scale law into a
// coordinate reference system: the single entry point for going from LatLng to pixels and back.
package crs

import (
	"fmt"
	"math"

	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/mathhelp"
	"github.com/pdok/tilepyramid/projection"
)

// DefaultTileSize is the world size in pixels at zoom 0 for non-simple CRSs.
const DefaultTileSize = 256

// CRS is immutable once constructed; share it freely.
type CRS struct {
	Code           string
	Projection     projection.Projection
	Transformation geometry.Transformation
	// R is the radius used for distances, 0 for a non-earth CRS
	R float64
	// WrapLng and WrapLat are the ranges coordinates wrap around in, nil when not wrapping
	WrapLng *[2]float64
	WrapLat *[2]float64
	// Infinite CRSs have no world bounds
	Infinite bool

	simple bool
}

// LatLngToPoint projects ll to pixel coordinates at zoom.
func (c *CRS) LatLngToPoint(ll geo.LatLng, zoom float64) geometry.Point {
	return c.Transformation.Transform(c.Projection.Project(ll), c.Scale(zoom))
}

// PointToLatLng is the inverse of LatLngToPoint.
func (c *CRS) PointToLatLng(p geometry.Point, zoom float64) geo.LatLng {
	return c.Projection.Unproject(c.Transformation.Untransform(p, c.Scale(zoom)))
}

func (c *CRS) Project(ll geo.LatLng) geometry.Point {
	return c.Projection.Project(ll)
}

func (c *CRS) Unproject(p geometry.Point) geo.LatLng {
	return c.Projection.Unproject(p)
}

// Scale returns the world size in pixels at zoom: 256 * 2^zoom, or 2^zoom for a simple CRS.
func (c *CRS) Scale(zoom float64) float64 {
	if c.simple {
		return math.Pow(2, zoom)
	}
	return DefaultTileSize * math.Pow(2, zoom)
}

// Zoom is the inverse of Scale.
func (c *CRS) Zoom(scale float64) float64 {
	if c.simple {
		return math.Log(scale) / math.Ln2
	}
	return math.Log(scale/DefaultTileSize) / math.Ln2
}

// ZoomScale returns the scale factor between two zoom levels.
func (c *CRS) ZoomScale(toZoom, fromZoom float64) float64 {
	return c.Scale(toZoom) / c.Scale(fromZoom)
}

// ScaleZoom returns the zoom that is scale times fromZoom. NaN for a non-positive scale.
func (c *CRS) ScaleZoom(scale, fromZoom float64) float64 {
	return c.Zoom(scale * c.Scale(fromZoom))
}

// ProjectedBounds returns the pixel bounds of the world at zoom, false for an infinite CRS.
func (c *CRS) ProjectedBounds(zoom float64) (geometry.Bounds, bool) {
	if c.Infinite {
		return geometry.Bounds{}, false
	}
	b := c.Projection.Bounds()
	s := c.Scale(zoom)
	return geometry.NewBounds(c.Transformation.Transform(b.Min, s), c.Transformation.Transform(b.Max, s)), true
}

// WrapLatLng wraps ll into WrapLng and WrapLat. The right edge maps onto itself. Altitude is kept.
func (c *CRS) WrapLatLng(ll geo.LatLng) geo.LatLng {
	if c.WrapLng != nil {
		ll.Lng = mathhelp.WrapNum(ll.Lng, *c.WrapLng, true)
	}
	if c.WrapLat != nil {
		ll.Lat = mathhelp.WrapNum(ll.Lat, *c.WrapLat, true)
	}
	return ll
}

// WrapLatLngBounds shifts b as a whole so its center is wrapped. The size of b is kept.
func (c *CRS) WrapLatLngBounds(b geo.LatLngBounds) geo.LatLngBounds {
	center := b.Center()
	wrapped := c.WrapLatLng(center)
	latShift := center.Lat - wrapped.Lat
	lngShift := center.Lng - wrapped.Lng

	if latShift == 0 && lngShift == 0 {
		return b
	}
	sw := b.SouthWest
	ne := b.NorthEast
	return geo.NewLatLngBounds(
		geo.LatLng{Lat: sw.Lat - latShift, Lng: sw.Lng - lngShift},
		geo.LatLng{Lat: ne.Lat - latShift, Lng: ne.Lng - lngShift},
	)
}

// Distance returns the distance between a and b: metres along a great circle for an earth CRS,
// euclidean in CRS units otherwise.
func (c *CRS) Distance(a, b geo.LatLng) float64 {
	if c.R == 0 {
		dx := b.Lng - a.Lng
		dy := b.Lat - a.Lat
		return math.Sqrt(dx*dx + dy*dy)
	}
	rad := math.Pi / 180
	lat1 := a.Lat * rad
	lat2 := b.Lat * rad
	cos := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos((b.Lng-a.Lng)*rad)
	return c.R * math.Acos(math.Min(cos, 1))
}

func (c *CRS) String() string {
	return fmt.Sprintf("CRS(%v)", c.Code)
}
