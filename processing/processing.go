// Package processing takes care of the logistics around writing tile footprints to a Target per
// pyramid level.
package processing

import (
	"log"
	"sync"

	"github.com/go-spatial/geom"

	"github.com/pdok/tilepyramid/pyramid"
	"github.com/pdok/tilepyramid/source"
)

// TileColumns are the attribute columns of a tile feature, in order.
var TileColumns = []string{"tile_key", "x", "y", "wrapped_x", "wrapped_y", "state", "current"}

// WriteTiles distributes the features of source over the targets by tile matrix ID (the zoom).
// Features without a target are dropped. It returns the number of features written per target.
func WriteTiles(source Source, targets map[int]Target) map[int]int {
	features := make(chan FeatureForTileMatrix)
	go source.ReadFeatures(features)
	return writeFeaturesToTargets(features, targets)
}

func writeFeaturesToTargets(featuresForTileMatrices <-chan FeatureForTileMatrix, targets map[int]Target) map[int]int {
	targetChannels := make(map[int]chan<- Feature)
	wg := sync.WaitGroup{}

	// create a channel and start a goroutine per tile matrix target
	for tmID, target := range targets {
		targetChannel := make(chan Feature)
		targetChannels[tmID] = targetChannel
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			target.WriteFeatures(targetChannel)
		}(target)
	}

	written := make(map[int]int, len(targets))
	var dropped int
	for feature := range featuresForTileMatrices {
		channel, ok := targetChannels[feature.TileMatrixID()]
		if !ok {
			dropped++
			continue
		}
		channel <- feature
		written[feature.TileMatrixID()]++
	}

	// close the channels, the targets will do their last writing
	for _, targetChannel := range targetChannels {
		close(targetChannel)
	}
	wg.Wait()

	if dropped > 0 {
		log.Printf("    dropped %d tiles without a target", dropped)
	}
	return written
}

// LayerTiles is a Source of the tiles of a layer snapshot. Tiles whose handle is not a
// *source.Footprint (failed or pending tiles) get their footprint computed by Footprints.
type LayerTiles struct {
	Tiles      []pyramid.Tile
	Footprints source.Footprints
}

func (l LayerTiles) ReadFeatures(features chan<- FeatureForTileMatrix) {
	for _, t := range l.Tiles {
		fp, ok := t.Handle.(*source.Footprint)
		if !ok {
			fp = l.Footprints.Footprint(t.Wrapped)
		}
		features <- &tileFeature{tile: t, polygon: l.placed(fp, t)}
	}
	close(features)
}

// placed shifts the footprint of the wrapped tile onto the copy of the world the tile is shown in.
func (l LayerTiles) placed(fp *source.Footprint, t pyramid.Tile) geom.Polygon {
	if t.Coords == t.Wrapped {
		return fp.Polygon
	}
	shift := l.Footprints.Footprint(t.Coords).Polygon[0][0]
	origin := fp.Polygon[0][0]
	dx, dy := shift[0]-origin[0], shift[1]-origin[1]
	placed := make(geom.Polygon, len(fp.Polygon))
	for i, ring := range fp.Polygon {
		placed[i] = make([][2]float64, len(ring))
		for j, p := range ring {
			placed[i][j] = [2]float64{p[0] + dx, p[1] + dy}
		}
	}
	return placed
}

type tileFeature struct {
	tile    pyramid.Tile
	polygon geom.Polygon
}

func (f *tileFeature) Columns() []interface{} {
	t := f.tile
	return []interface{}{
		t.Coords.Key(), int64(t.Coords.X), int64(t.Coords.Y),
		int64(t.Wrapped.X), int64(t.Wrapped.Y), t.State.String(), t.Current,
	}
}

func (f *tileFeature) Geometry() geom.Geometry {
	return f.polygon
}

func (f *tileFeature) TileMatrixID() int {
	return f.tile.Coords.Z
}
