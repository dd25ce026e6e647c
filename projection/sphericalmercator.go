package projection

import (
	"math"

	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/mathhelp"
)

// MaxLatitude is where spherical mercator turns the world into a square.
const MaxLatitude = 85.0511287798

// SphericalMercator is the projection used by EPSG:3857. It treats the earth as a sphere with radius R.
type SphericalMercator struct {
	R           float64
	MaxLatitude float64
}

func NewSphericalMercator() SphericalMercator {
	return SphericalMercator{R: EarthRadius, MaxLatitude: MaxLatitude}
}

// Project clamps the latitude to [-MaxLatitude, MaxLatitude] first.
func (m SphericalMercator) Project(ll geo.LatLng) geometry.Point {
	lat := mathhelp.Clamp(ll.Lat, -m.MaxLatitude, m.MaxLatitude)
	sin := math.Sin(lat * deg2rad)
	return geometry.Pt(
		m.R*ll.Lng*deg2rad,
		m.R*math.Log((1+sin)/(1-sin))/2,
	)
}

func (m SphericalMercator) Unproject(p geometry.Point) geo.LatLng {
	return geo.LatLng{
		Lat: (2*math.Atan(math.Exp(p.Y/m.R)) - math.Pi/2) * rad2deg,
		Lng: p.X * rad2deg / m.R,
	}
}

func (m SphericalMercator) Bounds() geometry.Bounds {
	d := m.R * math.Pi
	return geometry.NewBounds(geometry.Pt(-d, -d), geometry.Pt(d, d))
}
