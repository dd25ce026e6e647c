package pyramid

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rcrowley/go-metrics"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
)

// DefaultUpdateInterval is the default of Options.UpdateInterval.
const DefaultUpdateInterval = 200 * time.Millisecond

type Options struct {
	TileSize int     `default:"256" validate:"gt=0"`
	// Opacity of the layer. A nil Opacity means 1.
	Opacity *float64 `default:"1" validate:"omitempty,gte=0,lte=1"`
	ZIndex   int     `default:"1"`

	// UpdateWhenIdle loads new tiles only when panning ends, instead of every UpdateInterval
	UpdateWhenIdle bool
	UpdateInterval time.Duration `default:"200ms" validate:"gte=0"`

	// MinZoom and MaxZoom bound the zooms the layer shows tiles at. A nil MaxZoom means 18.
	MinZoom int  `validate:"gte=0"`
	MaxZoom *int `default:"18" validate:"omitempty,gte=0"`
	// MinNativeZoom and MaxNativeZoom bound the zooms tiles are requested at. Beyond them the
	// nearest native tiles are scaled.
	MinNativeZoom *int `validate:"omitempty,gte=0"`
	MaxNativeZoom *int `validate:"omitempty,gte=0"`

	// NoWrap stops the layer from repeating the world along wrapping axes
	NoWrap bool
	// Bounds restricts loading to tiles overlapping them, when valid
	Bounds geo.LatLngBounds `validate:"-"`

	// DisableFade activates tiles as soon as they load, instead of fading them in
	DisableFade bool
	// AbortLoading drops pending tiles of other zooms whenever the tile zoom changes
	AbortLoading bool

	Logger  *slog.Logger     `validate:"-"`
	Metrics metrics.Registry `validate:"-"`
}

// GridOptions returns options matching a tile matrix set grid.
func GridOptions(g crs.Grid) Options {
	maxZoom := g.MaxZoom
	return Options{
		TileSize: int(g.TileSize.X),
		MinZoom:  g.MinZoom,
		MaxZoom:  &maxZoom,
	}
}

func (o *Options) setDefaults() error {
	if err := defaults.Set(o); err != nil {
		return fmt.Errorf("layer options: %w", err)
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("layer options: %w", err)
	}
	if o.MinZoom > *o.MaxZoom {
		return fmt.Errorf("layer options: min zoom %d above max zoom %d", o.MinZoom, *o.MaxZoom)
	}
	if o.MinNativeZoom != nil && o.MaxNativeZoom != nil && *o.MinNativeZoom > *o.MaxNativeZoom {
		return fmt.Errorf("layer options: min native zoom %d above max native zoom %d", *o.MinNativeZoom, *o.MaxNativeZoom)
	}
	return nil
}

// clampZoom keeps a zoom within the native zooms.
func (o *Options) clampZoom(zoom float64) float64 {
	if o.MinNativeZoom != nil && zoom < float64(*o.MinNativeZoom) {
		return float64(*o.MinNativeZoom)
	}
	if o.MaxNativeZoom != nil && zoom > float64(*o.MaxNativeZoom) {
		return float64(*o.MaxNativeZoom)
	}
	return zoom
}
