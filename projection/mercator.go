package projection

import (
	"math"

	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
)

const (
	minTs = 1e-10

	unprojectMaxIterations = 15
	unprojectThreshold     = 1e-7
)

// Mercator is the ellipsoidal mercator projection used by EPSG:3395.
type Mercator struct {
	R      float64
	RMinor float64
	bounds geometry.Bounds
}

func NewMercator() Mercator {
	return Mercator{
		R:      EarthRadius,
		RMinor: EarthRadiusMinor,
		bounds: geometry.NewBounds(
			geometry.Pt(-20037508.34279, -15496570.73972),
			geometry.Pt(20037508.34279, 18764656.23138),
		),
	}
}

func (m Mercator) eccentricity() float64 {
	tmp := m.RMinor / m.R
	return math.Sqrt(1 - tmp*tmp)
}

func (m Mercator) Project(ll geo.LatLng) geometry.Point {
	y := ll.Lat * deg2rad
	e := m.eccentricity()
	con := e * math.Sin(y)

	ts := math.Tan(math.Pi/4-y/2) / math.Pow((1-con)/(1+con), e/2)
	y = -m.R * math.Log(math.Max(ts, minTs))

	return geometry.Pt(ll.Lng*deg2rad*m.R, y)
}

// Unproject inverts Project by fixed-point iteration on the latitude.
// When the iteration does not converge the last estimate is returned.
func (m Mercator) Unproject(p geometry.Point) geo.LatLng {
	e := m.eccentricity()
	ts := math.Exp(-p.Y / m.R)
	phi := math.Pi/2 - 2*math.Atan(ts)

	dphi := 0.1
	for i := 0; i < unprojectMaxIterations && math.Abs(dphi) > unprojectThreshold; i++ {
		con := e * math.Sin(phi)
		con = math.Pow((1-con)/(1+con), e/2)
		dphi = math.Pi/2 - 2*math.Atan(ts*con) - phi
		phi += dphi
	}

	return geo.LatLng{Lat: phi * rad2deg, Lng: p.X * rad2deg / m.R}
}

func (m Mercator) Bounds() geometry.Bounds {
	return m.bounds
}
