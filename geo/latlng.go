// Package geo provides geographic points and rectangles in degrees.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// DefaultMargin is the tolerance used by LatLng.Equals.
const DefaultMargin = 1e-9

// metres per full circle of the earth at the equator, used by ToBounds
const earthCircumference = 40075017

var ErrInvalidLatLng = errors.New("invalid LatLng")

// LatLng is a geographical point. Alt is optional and never used in calculations.
type LatLng struct {
	Lat float64
	Lng float64
	Alt *float64
}

// NewLatLng validates lat and lng, they must both be finite.
func NewLatLng(lat, lng float64) (LatLng, error) {
	if !isFinite(lat) || !isFinite(lng) {
		return LatLng{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidLatLng, lat, lng)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// MustLatLng is NewLatLng that panics on invalid input.
func MustLatLng(lat, lng float64) LatLng {
	ll, err := NewLatLng(lat, lng)
	if err != nil {
		panic(err)
	}
	return ll
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// WithAlt returns a copy of ll carrying altitude alt.
func (ll LatLng) WithAlt(alt float64) LatLng {
	ll.Alt = &alt
	return ll
}

// Equals reports whether ll and o differ at most DefaultMargin on both axes.
func (ll LatLng) Equals(o LatLng) bool {
	return ll.EqualsWithin(o, DefaultMargin)
}

func (ll LatLng) EqualsWithin(o LatLng, margin float64) bool {
	return math.Max(math.Abs(ll.Lat-o.Lat), math.Abs(ll.Lng-o.Lng)) <= margin
}

// ToBounds returns the bounds extending sizeInMeters/2 metres from ll in every direction.
func (ll LatLng) ToBounds(sizeInMeters float64) LatLngBounds {
	latAccuracy := 180 * sizeInMeters / earthCircumference
	lngAccuracy := latAccuracy / math.Cos(math.Pi/180*ll.Lat)
	return NewLatLngBounds(
		LatLng{Lat: ll.Lat - latAccuracy, Lng: ll.Lng - lngAccuracy},
		LatLng{Lat: ll.Lat + latAccuracy, Lng: ll.Lng + lngAccuracy},
	)
}

func (ll LatLng) String() string {
	return "LatLng(" + strconv.FormatFloat(ll.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(ll.Lng, 'f', -1, 64) + ")"
}
