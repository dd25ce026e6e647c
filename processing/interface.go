package processing

import (
	"github.com/go-spatial/geom"
)

type Feature interface {
	Columns() []interface{}
	Geometry() geom.Geometry
}

// FeatureForTileMatrix is a feature belonging to a single pyramid level.
type FeatureForTileMatrix interface {
	Feature
	TileMatrixID() int
}

// Source sends its features and closes the channel when done.
type Source interface {
	ReadFeatures(chan<- FeatureForTileMatrix)
}

// Target writes features until the channel is closed.
type Target interface {
	WriteFeatures(<-chan Feature)
}
