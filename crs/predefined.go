package crs

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/projection"
	"github.com/pdok/tilepyramid/tms20"
)

func worldLng() *[2]float64 {
	return &[2]float64{-180, 180}
}

func mercatorTransformation(r float64) geometry.Transformation {
	scale := 0.5 / (math.Pi * r)
	return geometry.NewTransformation(scale, 0.5, -scale, 0.5)
}

// EPSG3857 is spherical (web) mercator, the default of most tiled maps.
func EPSG3857() *CRS {
	return &CRS{
		Code:           "EPSG:3857",
		Projection:     projection.NewSphericalMercator(),
		Transformation: mercatorTransformation(projection.EarthRadius),
		R:              projection.EarthRadius,
		WrapLng:        worldLng(),
	}
}

// EPSG900913 is the unofficial code EPSG:3857 was once known by.
func EPSG900913() *CRS {
	c := EPSG3857()
	c.Code = "EPSG:900913"
	return c
}

// EPSG3395 is ellipsoidal (world) mercator.
func EPSG3395() *CRS {
	return &CRS{
		Code:           "EPSG:3395",
		Projection:     projection.NewMercator(),
		Transformation: mercatorTransformation(projection.EarthRadius),
		R:              projection.EarthRadius,
		WrapLng:        worldLng(),
	}
}

// EPSG4326 is equirectangular. At zoom 0 the world is two tiles wide and one tile high.
func EPSG4326() *CRS {
	return &CRS{
		Code:           "EPSG:4326",
		Projection:     projection.LonLat{},
		Transformation: geometry.NewTransformation(1.0/180, 1, -1.0/180, 0.5),
		R:              projection.EarthRadius,
		WrapLng:        worldLng(),
	}
}

// Simple maps lng/lat directly onto x/y with y going down, for flat non-geographic maps.
// It is infinite and scales by 2^zoom.
func Simple() *CRS {
	return &CRS{
		Code:           "Simple",
		Projection:     projection.LonLat{},
		Transformation: geometry.NewTransformation(1, 0, -1, 0),
		Infinite:       true,
		simple:         true,
	}
}

// NewSimple is Simple wrapping in the given ranges. Pass nil to not wrap an axis.
func NewSimple(wrapLng, wrapLat *[2]float64) *CRS {
	c := Simple()
	c.WrapLng = wrapLng
	c.WrapLat = wrapLat
	return c
}

var registry = map[string]func() *CRS{
	"EPSG:3857":   EPSG3857,
	"EPSG:900913": EPSG900913,
	"EPSG:3395":   EPSG3395,
	"EPSG:4326":   EPSG4326,
	"OGC:CRS84":   EPSG4326,
	"Simple":      Simple,
}

// Codes lists the codes accepted by ForCode.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ForCode returns a new CRS for code. Codes are case-insensitive.
func ForCode(code string) (*CRS, error) {
	for c, constructor := range registry {
		if strings.EqualFold(c, code) {
			return constructor(), nil
		}
	}
	return nil, fmt.Errorf("unsupported crs %q, use one of %v", code, Codes())
}

// Grid is what a tile layer needs from a tile matrix set besides the CRS.
type Grid struct {
	TileSize geometry.Point
	MinZoom  int
	MaxZoom  int
}

// FromTileMatrixSet returns the CRS matching the tile matrix set's CRS, plus its grid.
// It fails when the tile matrix set's origin or matrix size at zoom 0 do not line up with the CRS.
func FromTileMatrixSet(tms tms20.TileMatrixSet) (*CRS, Grid, error) {
	c, err := ForCode(tms.CRS.Code())
	if err != nil {
		return nil, Grid{}, fmt.Errorf("tile matrix set %v: %w", tms.ID, err)
	}
	if c.Infinite {
		return nil, Grid{}, fmt.Errorf("tile matrix set %v: infinite crs %v cannot be tiled", tms.ID, c.Code)
	}
	w, h := tms.TileSize()
	if w != h || w != DefaultTileSize {
		return nil, Grid{}, fmt.Errorf("tile matrix set %v: tiles of %vx%v pixels do not match the %v crs scale", tms.ID, w, h, c.Code)
	}
	minZoom, maxZoom := tms.ZoomRange()

	origin, ok := tms.ToNative(slippy.NewTile(uint(minZoom), 0, 0))
	if !ok {
		return nil, Grid{}, fmt.Errorf("tile matrix set %v: no tile matrix %v", tms.ID, minZoom)
	}
	expected := c.Transformation.Untransform(geometry.Pt(0, 0), c.Scale(float64(minZoom)))
	tolerance := tms.TileMatrices[minZoom].CellSize / 2
	if math.Abs(origin.X()-expected.X) > tolerance || math.Abs(origin.Y()-expected.Y) > tolerance {
		return nil, Grid{}, fmt.Errorf("tile matrix set %v: origin %v does not match %v origin %v", tms.ID, origin, c.Code, expected)
	}

	size, _ := tms.Size(uint(minZoom))
	world, _ := c.ProjectedBounds(float64(minZoom))
	tiles := world.Size().DivideBy(float64(w)).Round()
	if float64(size.X) != tiles.X || float64(size.Y) != tiles.Y {
		return nil, Grid{}, fmt.Errorf("tile matrix set %v: matrix of %vx%v tiles does not match %v (%v)", tms.ID, size.X, size.Y, c.Code, tiles)
	}

	return c, Grid{
		TileSize: geometry.Pt(float64(w), float64(h)),
		MinZoom:  minZoom,
		MaxZoom:  maxZoom,
	}, nil
}
