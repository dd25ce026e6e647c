// Package projection maps geographic coordinates to planar (projected) coordinates and back.
package projection

import (
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
)

const (
	// EarthRadius is the WGS84 semi-major axis in metres
	EarthRadius = 6378137.0
	// EarthRadiusMinor is the WGS84 semi-minor axis in metres
	EarthRadiusMinor = 6356752.314245179
)

const (
	deg2rad = 0.017453292519943295 // math.Pi / 180
	rad2deg = 57.29577951308232    // 180 / math.Pi
)

// Projection converts between LatLng and projected coordinates.
// Project and Unproject are each other's inverse within the projection's domain.
type Projection interface {
	Project(ll geo.LatLng) geometry.Point
	Unproject(p geometry.Point) geo.LatLng
	// Bounds is the projected extent of the world
	Bounds() geometry.Bounds
}
