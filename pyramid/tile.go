package pyramid

import (
	"context"
	"time"

	"github.com/pdok/tilepyramid/geometry"
)

// State of a cached tile.
type State int

const (
	// Pending tiles wait for their source to finish.
	Pending State = iota
	// Ready tiles have a handle to render.
	Ready
	// Failed tiles got an error from their source. They count as loaded and may still carry a handle.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is whatever a Source made for a tile: an image, a buffer, a file name. The layer never looks
// inside.
type Handle any

// Tile is an entry in the tile cache of a layer.
type Tile struct {
	// Coords is the unwrapped index the tile is cached and positioned under.
	Coords Coords
	// Wrapped is the index the source was asked for.
	Wrapped Coords

	State  State
	Handle Handle
	Err    error

	// Current tiles are needed for the view.
	Current bool
	// Active tiles are fully faded in.
	Active bool
	// Retain marks stale tiles kept during pruning because they cover for a tile still loading.
	Retain bool
	// Loaded is when the source finished, zero while pending.
	Loaded time.Time

	// Pos is the pixel position of the tile's top left corner relative to its level's origin.
	Pos     geometry.Point
	Opacity float64

	cancel context.CancelFunc
}

func (t *Tile) isLoaded() bool {
	return !t.Loaded.IsZero()
}

// Level is a pyramid level of a layer: the container tiles of one zoom are positioned in.
type Level struct {
	Zoom int
	// Origin is the pixel origin of the view, at this level's zoom, when the level was created.
	// It never changes after that, so tile positions stay valid while the view moves.
	Origin geometry.Point
	// Translate and Scale place the level on screen for the current view.
	Translate geometry.Point
	Scale     float64
	ZIndex    int
}
