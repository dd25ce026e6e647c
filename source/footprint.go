package source

import (
	"context"

	"github.com/go-spatial/geom"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/pyramid"
)

// Footprint is the area a tile covers.
type Footprint struct {
	Coords pyramid.Coords
	// Polygon is the tile in projected CRS units, counterclockwise from the top left corner.
	Polygon geom.Polygon
	Bounds  geo.LatLngBounds
}

// Footprints is a Fetcher computing the footprint of every tile it is asked for.
type Footprints struct {
	CRS      *crs.CRS
	TileSize geometry.Point
}

func (f Footprints) Fetch(ctx context.Context, coords pyramid.Coords) (pyramid.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Footprint(coords), nil
}

func (f Footprints) Footprint(coords pyramid.Coords) *Footprint {
	zoom := float64(coords.Z)
	scale := f.CRS.Scale(zoom)
	nw := coords.ScaleBy(f.TileSize)
	se := nw.Add(f.TileSize)
	corners := []geometry.Point{nw, geometry.Pt(nw.X, se.Y), se, geometry.Pt(se.X, nw.Y)}
	ring := make([][2]float64, len(corners))
	for i, c := range corners {
		ring[i] = f.CRS.Transformation.Untransform(c, scale).XY()
	}
	return &Footprint{
		Coords:  coords,
		Polygon: geom.Polygon{ring},
		Bounds:  geo.NewLatLngBounds(f.CRS.PointToLatLng(nw, zoom), f.CRS.PointToLatLng(se, zoom)),
	}
}
