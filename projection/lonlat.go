package projection

import (
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
)

// LonLat is the equirectangular projection: x is longitude and y is latitude, both in degrees.
type LonLat struct{}

func (LonLat) Project(ll geo.LatLng) geometry.Point {
	return geometry.Pt(ll.Lng, ll.Lat)
}

func (LonLat) Unproject(p geometry.Point) geo.LatLng {
	return geo.LatLng{Lat: p.Y, Lng: p.X}
}

func (LonLat) Bounds() geometry.Bounds {
	return geometry.NewBounds(geometry.Pt(-180, -90), geometry.Pt(180, 90))
}
