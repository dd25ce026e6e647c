package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// LatLngBounds is a geographical rectangle. The zero value is empty.
type LatLngBounds struct {
	SouthWest LatLng
	NorthEast LatLng
	valid     bool
}

func NewLatLngBounds(latlngs ...LatLng) LatLngBounds {
	var b LatLngBounds
	for _, ll := range latlngs {
		b = b.Extend(ll)
	}
	return b
}

// FromOrbBound converts an orb bound, whose points are (lng, lat).
func FromOrbBound(bound orb.Bound) LatLngBounds {
	return NewLatLngBounds(
		LatLng{Lat: bound.Min.Lat(), Lng: bound.Min.Lon()},
		LatLng{Lat: bound.Max.Lat(), Lng: bound.Max.Lon()},
	)
}

func (b LatLngBounds) ToOrbBound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West(), b.South()},
		Max: orb.Point{b.East(), b.North()},
	}
}

// Extend returns bounds grown to include ll. Altitudes are dropped.
func (b LatLngBounds) Extend(ll LatLng) LatLngBounds {
	if !b.valid {
		return LatLngBounds{
			SouthWest: LatLng{Lat: ll.Lat, Lng: ll.Lng},
			NorthEast: LatLng{Lat: ll.Lat, Lng: ll.Lng},
			valid:     true,
		}
	}
	return LatLngBounds{
		SouthWest: LatLng{Lat: math.Min(ll.Lat, b.South()), Lng: math.Min(ll.Lng, b.West())},
		NorthEast: LatLng{Lat: math.Max(ll.Lat, b.North()), Lng: math.Max(ll.Lng, b.East())},
		valid:     true,
	}
}

func (b LatLngBounds) ExtendBounds(o LatLngBounds) LatLngBounds {
	if !o.valid {
		return b
	}
	return b.Extend(o.SouthWest).Extend(o.NorthEast)
}

// Pad grows b on every side by bufferRatio times its size.
func (b LatLngBounds) Pad(bufferRatio float64) LatLngBounds {
	heightBuffer := math.Abs(b.South()-b.North()) * bufferRatio
	widthBuffer := math.Abs(b.West()-b.East()) * bufferRatio
	return NewLatLngBounds(
		LatLng{Lat: b.South() - heightBuffer, Lng: b.West() - widthBuffer},
		LatLng{Lat: b.North() + heightBuffer, Lng: b.East() + widthBuffer},
	)
}

func (b LatLngBounds) IsValid() bool {
	return b.valid
}

func (b LatLngBounds) Center() LatLng {
	return LatLng{Lat: (b.South() + b.North()) / 2, Lng: (b.West() + b.East()) / 2}
}

func (b LatLngBounds) NorthWest() LatLng {
	return LatLng{Lat: b.North(), Lng: b.West()}
}

func (b LatLngBounds) SouthEast() LatLng {
	return LatLng{Lat: b.South(), Lng: b.East()}
}

func (b LatLngBounds) West() float64  { return b.SouthWest.Lng }
func (b LatLngBounds) South() float64 { return b.SouthWest.Lat }
func (b LatLngBounds) East() float64  { return b.NorthEast.Lng }
func (b LatLngBounds) North() float64 { return b.NorthEast.Lat }

func (b LatLngBounds) Contains(ll LatLng) bool {
	return ll.Lat >= b.South() && ll.Lat <= b.North() && ll.Lng >= b.West() && ll.Lng <= b.East()
}

func (b LatLngBounds) ContainsBounds(o LatLngBounds) bool {
	return b.Contains(o.SouthWest) && b.Contains(o.NorthEast)
}

// Intersects reports whether b and o have at least one point in common.
func (b LatLngBounds) Intersects(o LatLngBounds) bool {
	latIntersects := o.North() >= b.South() && o.South() <= b.North()
	lngIntersects := o.East() >= b.West() && o.West() <= b.East()
	return latIntersects && lngIntersects
}

// Overlaps reports whether the intersection of b and o is an area.
func (b LatLngBounds) Overlaps(o LatLngBounds) bool {
	latOverlaps := o.North() > b.South() && o.South() < b.North()
	lngOverlaps := o.East() > b.West() && o.West() < b.East()
	return latOverlaps && lngOverlaps
}

func (b LatLngBounds) Equals(o LatLngBounds) bool {
	if !b.valid || !o.valid {
		return false
	}
	return b.SouthWest.Equals(o.SouthWest) && b.NorthEast.Equals(o.NorthEast)
}

// BBoxString formats b as 'west,south,east,north'.
func (b LatLngBounds) BBoxString() string {
	parts := make([]string, 0, 4)
	for _, f := range []float64{b.West(), b.South(), b.East(), b.North()} {
		parts = append(parts, strconv.FormatFloat(f, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}
