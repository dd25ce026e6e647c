package pyramid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/loop"
	"github.com/pdok/tilepyramid/viewport"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var origin = geo.MustLatLng(0, 0)

type harness struct {
	loop   *loop.Manual
	view   *viewport.View
	layer  *Layer
	counts map[EventType]int
	events []Event
}

func newHarness(t *testing.T, src Source, opts Options) *harness {
	t.Helper()
	m := loop.NewManual(epoch)
	view, err := viewport.New(m.Loop, viewport.Options{Width: 800, Height: 600})
	require.NoError(t, err)
	layer, err := NewLayer(src, opts)
	require.NoError(t, err)
	h := &harness{loop: m, view: view, layer: layer, counts: map[EventType]int{}}
	layer.On(func(e Event) {
		h.counts[e.Type]++
		h.events = append(h.events, e)
	})
	require.NoError(t, layer.Attach(view))
	return h
}

func (h *harness) reset() {
	h.counts = map[EventType]int{}
	h.events = nil
}

func (h *harness) keys() []string {
	var keys []string
	for _, tile := range h.layer.Tiles() {
		keys = append(keys, tile.Coords.Key())
	}
	sort.Strings(keys)
	return keys
}

func (h *harness) tilesAt(z int) int {
	n := 0
	for _, tile := range h.layer.Tiles() {
		if tile.Coords.Z == z {
			n++
		}
	}
	return n
}

func zoomPtr(z int) *int {
	return &z
}

func keyHandles(coords Coords) (Handle, error) {
	return coords.Key(), nil
}

type request struct {
	ctx    context.Context
	coords Coords
	done   DoneFunc
}

// pendingSource keeps tile requests open until the test completes them.
type pendingSource struct {
	requests []request
	released []Handle
}

func (s *pendingSource) CreateTile(ctx context.Context, coords Coords, done DoneFunc) {
	s.requests = append(s.requests, request{ctx: ctx, coords: coords, done: done})
}

func (s *pendingSource) ReleaseTile(h Handle) {
	s.released = append(s.released, h)
}

// complete finishes the n oldest open requests.
func (s *pendingSource) complete(n int) []request {
	n = min(n, len(s.requests))
	completed := s.requests[:n]
	s.requests = s.requests[n:]
	for _, r := range completed {
		r.done(r.coords.Key(), nil)
	}
	return completed
}

func (s *pendingSource) completeAll() []request {
	return s.complete(len(s.requests))
}

func TestTileCounts(t *testing.T) {
	tests := []struct {
		zoom  float64
		tiles int
	}{
		{zoom: 0, tiles: 5},
		{zoom: 1, tiles: 8},
		{zoom: 10, tiles: 16},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("zoom %v", tt.zoom), func(t *testing.T) {
			h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true})
			h.view.SetView(origin, tt.zoom)
			assert.True(t, h.layer.IsLoading())
			h.loop.Flush()

			assert.Equal(t, tt.tiles, h.counts[TileLoadStart])
			assert.Equal(t, tt.tiles, h.counts[TileLoad])
			assert.Equal(t, 0, h.counts[TileUnload])
			assert.Equal(t, 0, h.counts[TileError])
			assert.Equal(t, 1, h.counts[Loading])
			assert.Equal(t, 1, h.counts[Load])
			assert.False(t, h.layer.IsLoading())
			assert.Equal(t, Loading, h.events[0].Type)
			assert.Equal(t, Load, h.events[len(h.events)-1].Type)
			for _, tile := range h.layer.Tiles() {
				assert.Equal(t, Ready, tile.State)
				assert.True(t, tile.Active)
				assert.True(t, tile.Current)
			}
		})
	}
}

func TestTileCountsSetZoom(t *testing.T) {
	tests := []struct {
		from, to float64
	}{
		{from: 10, to: 11},
		{from: 11, to: 10},
		{from: 18, to: 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v to %v", tt.from, tt.to), func(t *testing.T) {
			h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true})
			h.view.SetView(origin, tt.from)
			h.loop.Settle(time.Second)
			require.Equal(t, 16, h.counts[TileLoadStart])
			require.Equal(t, 16, h.counts[TileLoad])
			require.Equal(t, 0, h.counts[TileUnload])

			h.view.SetZoom(tt.to)
			h.loop.Settle(time.Second)
			assert.Equal(t, 32, h.counts[TileLoadStart])
			assert.Equal(t, 32, h.counts[TileLoad])
			assert.Equal(t, 16, h.counts[TileUnload])
			assert.Equal(t, 16, h.tilesAt(int(tt.to)))
			assert.Len(t, h.layer.Tiles(), 16)
		})
	}
}

func TestTilePositionsWithWrapping(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true})
	h.view.SetView(origin, 1)
	h.loop.Flush()

	positions := map[string][2]int{}
	for _, tile := range h.layer.Tiles() {
		positions[fmt.Sprintf("%d:%d", int(tile.Pos.X), int(tile.Pos.Y))] = [2]int{tile.Wrapped.X, tile.Wrapped.Y}
	}
	assert.Equal(t, map[string][2]int{
		"144:0":    {0, 0},
		"400:0":    {1, 0},
		"144:256":  {0, 1},
		"400:256":  {1, 1},
		"-112:0":   {1, 0},
		"656:0":    {0, 0},
		"-112:256": {1, 1},
		"656:256":  {0, 1},
	}, positions)

	tile, ok := h.layer.Tile("-1:0:1")
	require.True(t, ok)
	assert.Equal(t, Coords{1, 0, 1}, tile.Wrapped)
	assert.Equal(t, "1:0:1", tile.Handle)
}

func TestRemovesTilesForUnusedZoomLevels(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{})
	h.view.SetView(origin, 1)
	h.loop.Settle(time.Second)

	h.view.SetZoom(0)
	h.loop.Settle(time.Second)

	wrapped := map[string]bool{}
	for _, tile := range h.layer.Tiles() {
		wrapped[tile.Wrapped.Key()] = true
	}
	assert.Equal(t, map[string]bool{"0:0:0": true}, wrapped)
	levels := h.layer.Levels()
	require.Len(t, levels, 1)
	assert.Equal(t, 0, levels[0].Zoom)
}

func TestZoomAnimationSync(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true})
	h.view.SetView(origin, 10)
	h.loop.Settle(time.Second)

	h.view.ZoomTo(origin, 11)
	h.loop.Flush()
	assert.Equal(t, 32, h.counts[TileLoadStart])
	assert.Equal(t, 32, h.counts[TileLoad])
	assert.Equal(t, 16, h.counts[TileUnload])

	h.loop.Advance(viewport.DefaultZoomAnimationDuration)
	assert.Equal(t, 32, h.counts[TileLoadStart])
	assert.Equal(t, 16, h.tilesAt(11))
	assert.Len(t, h.layer.Tiles(), 16)
}

func TestZoomInKeepsParentsUntilChildrenLoad(t *testing.T) {
	src := &pendingSource{}
	h := newHarness(t, src, Options{DisableFade: true})
	h.view.SetView(origin, 10)
	src.completeAll()
	h.loop.Settle(time.Second)
	h.reset()

	h.view.ZoomTo(origin, 11)
	assert.Equal(t, 16, h.counts[TileLoadStart])
	assert.Equal(t, 0, h.counts[TileUnload])
	assert.Len(t, h.layer.Tiles(), 32)

	// the first tile in is the one closest to the center
	completed := src.complete(1)
	assert.Equal(t, Coords{1023, 1023, 11}, completed[0].coords)
	h.loop.Flush()
	assert.Equal(t, 12, h.counts[TileUnload])
	var parents []string
	for _, tile := range h.layer.Tiles() {
		if tile.Coords.Z == 10 {
			parents = append(parents, tile.Coords.Key())
		}
	}
	sort.Strings(parents)
	assert.Equal(t, []string{"511:511:10", "511:512:10", "512:511:10", "512:512:10"}, parents)

	src.completeAll()
	h.loop.Flush()
	assert.Equal(t, 16, h.counts[TileUnload])
	assert.Equal(t, 0, h.tilesAt(10))
	assert.Equal(t, 16, h.tilesAt(11))

	h.loop.Advance(viewport.DefaultZoomAnimationDuration)
	assert.Equal(t, 16, h.counts[TileLoadStart])
	assert.Equal(t, 16, h.counts[TileUnload])
}

func TestZoomOutKeepsChildrenUntilParentsLoad(t *testing.T) {
	src := &pendingSource{}
	h := newHarness(t, src, Options{DisableFade: true})
	h.view.SetView(origin, 11)
	src.completeAll()
	h.loop.Settle(time.Second)
	h.reset()

	// during the animation only the tiles covering the view at the old zoom are requested
	h.view.ZoomTo(origin, 10)
	assert.Equal(t, 4, h.counts[TileLoadStart])
	assert.Len(t, h.layer.Tiles(), 20)

	h.loop.Advance(viewport.DefaultZoomAnimationDuration)
	assert.Equal(t, 16, h.counts[TileLoadStart])
	assert.Equal(t, 0, h.counts[TileUnload])
	assert.Equal(t, 16, h.tilesAt(11))
	for _, tile := range h.layer.Tiles() {
		if tile.Coords.Z == 11 {
			assert.False(t, tile.Current)
			assert.True(t, tile.Retain, tile.Coords.Key())
		}
	}

	// the four center tiles cover all of the old ones
	src.complete(4)
	h.loop.Flush()
	assert.Equal(t, 16, h.counts[TileUnload])
	assert.Equal(t, 0, h.tilesAt(11))
	assert.Equal(t, 16, h.tilesAt(10))
	assert.True(t, h.layer.IsLoading())

	src.completeAll()
	h.loop.Flush()
	assert.False(t, h.layer.IsLoading())
	assert.Equal(t, 1, h.counts[Load])
}

func TestLevels(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true})
	h.view.SetView(origin, 10)
	h.loop.Settle(time.Second)

	levels := h.layer.Levels()
	require.Len(t, levels, 1)
	assert.Equal(t, 10, levels[0].Zoom)
	assert.Equal(t, geometry.Pt(130672, 130772), levels[0].Origin)
	assert.Equal(t, 18, levels[0].ZIndex)
	assert.Equal(t, 1.0, levels[0].Scale)
	assert.Equal(t, geometry.Pt(0, 0), levels[0].Translate)

	src := &pendingSource{}
	h2 := newHarness(t, src, Options{DisableFade: true})
	h2.view.SetView(origin, 10)
	src.completeAll()
	h2.loop.Settle(time.Second)
	h2.view.ZoomTo(origin, 11)

	levels = h2.layer.Levels()
	require.Len(t, levels, 2)
	assert.Equal(t, 10, levels[0].Zoom)
	assert.Equal(t, 17, levels[0].ZIndex)
	assert.Equal(t, 2.0, levels[0].Scale)
	assert.Equal(t, 11, levels[1].Zoom)
	assert.Equal(t, 18, levels[1].ZIndex)
	assert.Equal(t, 1.0, levels[1].Scale)
}

func TestTileError(t *testing.T) {
	errBroken := errors.New("broken")
	src := SyncSource(func(coords Coords) (Handle, error) {
		if coords.X == 0 && coords.Y == 0 {
			return nil, errBroken
		}
		return coords.Key(), nil
	})
	h := newHarness(t, src, Options{DisableFade: true})
	h.view.SetView(origin, 1)
	h.loop.Flush()

	// 0:0 is requested twice, once for each copy of the world
	assert.Equal(t, 8, h.counts[TileLoadStart])
	assert.Equal(t, 2, h.counts[TileError])
	assert.Equal(t, 6, h.counts[TileLoad])
	assert.Equal(t, 1, h.counts[Load])
	assert.False(t, h.layer.IsLoading())

	for _, key := range []string{"0:0:1", "2:0:1"} {
		tile, ok := h.layer.Tile(key)
		require.True(t, ok, key)
		assert.Equal(t, Failed, tile.State)
		assert.ErrorIs(t, tile.Err, errBroken)
		assert.True(t, tile.Active)
	}
	for _, e := range h.events {
		if e.Type == TileError {
			assert.ErrorIs(t, e.Err, errBroken)
		}
	}
}

func TestTileErrorStillPrunes(t *testing.T) {
	errBroken := errors.New("broken")
	src := &pendingSource{}
	h := newHarness(t, src, Options{DisableFade: true})
	h.view.SetView(origin, 10)
	src.completeAll()
	h.loop.Settle(time.Second)
	h.reset()

	h.view.ZoomTo(origin, 11)
	require.Len(t, src.requests, 16)
	failed := src.requests[0]
	src.requests = src.requests[1:]
	failed.done(nil, errBroken)
	src.completeAll()
	h.loop.Settle(time.Second)

	assert.Equal(t, 1, h.counts[TileError])
	assert.Equal(t, 15, h.counts[TileLoad])
	assert.Equal(t, 1, h.counts[Load])
	assert.Equal(t, 16, h.counts[TileUnload])
	assert.Equal(t, 0, h.tilesAt(10))
	assert.Equal(t, 16, h.tilesAt(11))
	assert.False(t, h.layer.IsLoading())

	tile, ok := h.layer.Tile(failed.coords.Key())
	require.True(t, ok)
	assert.Equal(t, Failed, tile.State)
	assert.ErrorIs(t, tile.Err, errBroken)
}

func TestStaleCompletionIsDropped(t *testing.T) {
	src := &pendingSource{}
	h := newHarness(t, src, Options{DisableFade: true})
	h.view.SetView(origin, 1)
	stale := src.requests
	src.requests = nil

	h.layer.Redraw()
	assert.Equal(t, 8, h.counts[TileUnload])
	assert.Equal(t, 16, h.counts[TileLoadStart])
	for _, r := range stale {
		assert.ErrorIs(t, r.ctx.Err(), context.Canceled)
	}

	for _, r := range stale {
		r.done(r.coords.Key(), nil)
		// a second call is ignored
		r.done(r.coords.Key(), nil)
	}
	h.loop.Flush()
	assert.Equal(t, 0, h.counts[TileLoad])
	assert.Len(t, src.released, 8)
	for _, tile := range h.layer.Tiles() {
		assert.Equal(t, Pending, tile.State)
	}

	src.completeAll()
	h.loop.Flush()
	assert.Equal(t, 8, h.counts[TileLoad])
	assert.Len(t, src.released, 8)
}

func TestAbortLoading(t *testing.T) {
	src := &pendingSource{}
	h := newHarness(t, src, Options{DisableFade: true, AbortLoading: true})
	h.view.SetView(origin, 10)
	old := src.requests
	src.requests = nil
	require.Len(t, old, 16)

	h.view.ZoomTo(origin, 11)
	assert.Equal(t, 16, h.counts[TileAbort])
	assert.Equal(t, 0, h.counts[TileUnload])
	assert.Equal(t, 0, h.tilesAt(10))
	assert.Equal(t, 16, h.tilesAt(11))
	for _, r := range old {
		assert.ErrorIs(t, r.ctx.Err(), context.Canceled)
	}
	assert.Equal(t, int64(16), h.layer.Metrics().Get("tile.abort").(metrics.Counter).Count())

	// without aborting, pending tiles of the old zoom stay
	src2 := &pendingSource{}
	h2 := newHarness(t, src2, Options{DisableFade: true})
	h2.view.SetView(origin, 10)
	h2.view.ZoomTo(origin, 11)
	assert.Equal(t, 0, h2.counts[TileAbort])
	assert.Equal(t, 16, h2.tilesAt(10))
}

func TestBatchRemovedBeforeLoading(t *testing.T) {
	t.Run("zoom outside layer zooms", func(t *testing.T) {
		src := &pendingSource{}
		h := newHarness(t, src, Options{DisableFade: true, MaxZoom: zoomPtr(12)})
		h.view.SetView(origin, 10)
		require.Len(t, src.requests, 16)
		assert.True(t, h.layer.IsLoading())

		h.view.SetView(origin, 15)
		src.completeAll()
		h.loop.Settle(time.Second)
		assert.Empty(t, h.layer.Tiles())
		assert.False(t, h.layer.IsLoading())
		assert.Equal(t, 0, h.counts[Load])

		h.reset()
		h.view.SetView(origin, 10)
		assert.Equal(t, 1, h.counts[Loading])
		src.completeAll()
		h.loop.Settle(time.Second)
		assert.Equal(t, 1, h.counts[Load])
		assert.False(t, h.layer.IsLoading())
	})

	t.Run("aborted", func(t *testing.T) {
		src := &pendingSource{}
		h := newHarness(t, src, Options{DisableFade: true, AbortLoading: true})
		h.view.SetView(origin, 10)
		src.requests = nil

		h.view.ZoomTo(origin, 11)
		assert.Equal(t, 16, h.counts[TileAbort])
		assert.Equal(t, 2, h.counts[Loading])
		assert.True(t, h.layer.IsLoading())

		src.completeAll()
		h.loop.Settle(time.Second)
		assert.Equal(t, 1, h.counts[Load])
		assert.False(t, h.layer.IsLoading())
	})

	t.Run("redrawn", func(t *testing.T) {
		src := &pendingSource{}
		h := newHarness(t, src, Options{DisableFade: true})
		h.view.SetView(origin, 1)
		src.requests = nil

		h.layer.Redraw()
		assert.Equal(t, 2, h.counts[Loading])
		src.completeAll()
		h.loop.Settle(time.Second)
		assert.Equal(t, 1, h.counts[Load])
		assert.False(t, h.layer.IsLoading())
	})
}

func TestFadeIn(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{})
	h.view.SetView(origin, 1)
	h.loop.Flush()
	assert.Equal(t, 1, h.counts[Load])
	for _, tile := range h.layer.Tiles() {
		assert.Equal(t, 0.0, tile.Opacity)
		assert.False(t, tile.Active)
	}

	h.loop.Advance(FadeDuration / 2)
	for _, tile := range h.layer.Tiles() {
		assert.InDelta(t, 0.5, tile.Opacity, 1e-9)
		assert.False(t, tile.Active)
	}

	h.loop.Advance(FadeDuration / 2)
	for _, tile := range h.layer.Tiles() {
		assert.Equal(t, 1.0, tile.Opacity)
		assert.True(t, tile.Active)
	}
	assert.True(t, h.loop.Settle(time.Second))
	assert.Len(t, h.layer.Tiles(), 8)
}

func TestBoundsOption(t *testing.T) {
	opts := Options{
		DisableFade: true,
		Bounds:      geo.NewLatLngBounds(geo.MustLatLng(0, 0), geo.MustLatLng(10, 10)),
	}
	h := newHarness(t, SyncSource(keyHandles), opts)
	h.view.SetView(origin, 1)
	h.loop.Flush()
	assert.Equal(t, []string{"-1:0:1", "1:0:1"}, h.keys())

	b, err := h.layer.TileBounds(Coords{1, 0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0, b.West(), 1e-9)
	assert.InDelta(t, 180, b.East(), 1e-9)
	assert.InDelta(t, 0, b.South(), 1e-9)
	assert.InDelta(t, 85.0511287798, b.North(), 1e-9)
}

func TestNoWrap(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true, NoWrap: true})
	h.view.SetView(origin, 1)
	h.loop.Flush()

	tile, ok := h.layer.Tile("-1:0:1")
	require.True(t, ok)
	assert.Equal(t, Coords{-1, 0, 1}, tile.Wrapped)
}

func TestZoomOutsideLayerZooms(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true, MinZoom: 2, MaxZoom: zoomPtr(5)})
	h.view.SetView(origin, 7)
	h.loop.Settle(time.Second)
	_, ok := h.layer.TileZoom()
	assert.False(t, ok)
	assert.Empty(t, h.layer.Tiles())
	assert.Equal(t, 0, h.counts[TileLoadStart])

	h.view.SetView(origin, 5)
	h.loop.Settle(time.Second)
	zoom, ok := h.layer.TileZoom()
	assert.True(t, ok)
	assert.Equal(t, 5, zoom)
	assert.NotEmpty(t, h.layer.Tiles())
}

func TestNativeZoom(t *testing.T) {
	maxNative := 5
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true, MaxNativeZoom: &maxNative})
	h.view.SetView(origin, 7)
	h.loop.Settle(time.Second)

	zoom, ok := h.layer.TileZoom()
	require.True(t, ok)
	assert.Equal(t, 5, zoom)
	assert.Equal(t, []string{"15:15:5", "15:16:5", "16:15:5", "16:16:5"}, h.keys())
	levels := h.layer.Levels()
	require.Len(t, levels, 1)
	assert.Equal(t, 4.0, levels[0].Scale)
}

func TestMoveIsThrottled(t *testing.T) {
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true})
	h.view.SetView(origin, 10)
	h.loop.Settle(time.Second)
	require.Equal(t, 16, h.counts[TileLoadStart])

	east := func(px float64) geo.LatLng {
		return h.view.Unproject(h.view.Project(origin, 10).Add(geometry.Pt(px, 0)), 10)
	}
	require.NoError(t, h.view.Pinch(east(512), 10))
	assert.Equal(t, 24, h.counts[TileLoadStart])

	require.NoError(t, h.view.Pinch(east(1024), 10))
	assert.Equal(t, 24, h.counts[TileLoadStart])

	h.loop.Advance(DefaultUpdateInterval)
	assert.Equal(t, 32, h.counts[TileLoadStart])
}

func TestAttachDetach(t *testing.T) {
	src := &pendingSource{}
	m := loop.NewManual(epoch)
	view, err := viewport.New(m.Loop, viewport.Options{Width: 800, Height: 600})
	require.NoError(t, err)
	layer, err := NewLayer(src, Options{DisableFade: true})
	require.NoError(t, err)
	unloads := 0
	layer.On(func(e Event) {
		if e.Type == TileUnload {
			unloads++
		}
	})

	_, err = layer.TileBounds(Coords{})
	assert.ErrorIs(t, err, ErrNotAttached)
	assert.ErrorIs(t, layer.Detach(), ErrNotAttached)

	// attached before the view has a center, the layer waits for it
	require.NoError(t, layer.Attach(view))
	assert.ErrorIs(t, layer.Attach(view), ErrAttached)
	assert.Empty(t, layer.Tiles())
	view.SetView(origin, 1)
	assert.Len(t, layer.Tiles(), 8)

	src.complete(4)
	m.Flush()
	requests := src.requests

	require.NoError(t, layer.Detach())
	assert.Equal(t, 8, unloads)
	assert.Empty(t, layer.Tiles())
	assert.Len(t, src.released, 4)
	for _, r := range requests {
		assert.ErrorIs(t, r.ctx.Err(), context.Canceled)
	}

	// completions after detaching are released right away
	src.completeAll()
	m.Flush()
	assert.Len(t, src.released, 8)

	view.SetView(origin, 2)
	assert.Empty(t, layer.Tiles())

	// attaching to a loaded view loads right away
	require.NoError(t, layer.Attach(view))
	assert.Len(t, layer.Tiles(), 16)
}

func TestLayerMetrics(t *testing.T) {
	registry := metrics.NewRegistry()
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true, Metrics: registry})
	h.view.SetView(origin, 1)
	h.loop.Flush()

	assert.Same(t, registry, h.layer.Metrics())
	assert.Equal(t, int64(8), registry.Get("tile.loadstart").(metrics.Counter).Count())
	assert.Equal(t, int64(8), registry.Get("tile.load").(metrics.Counter).Count())
	assert.Equal(t, int64(1), registry.Get("layer.load").(metrics.Counter).Count())
	assert.Equal(t, int64(8), registry.Get("tile.cached").(metrics.Gauge).Value())

	h.view.SetZoom(0)
	h.loop.Flush()
	assert.Equal(t, int64(8), registry.Get("tile.unload").(metrics.Counter).Count())
	assert.Equal(t, int64(5), registry.Get("tile.cached").(metrics.Gauge).Value())
}

func TestOpacityAndZIndex(t *testing.T) {
	layer, err := NewLayer(SyncSource(keyHandles), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, layer.Opacity())
	assert.Equal(t, 1, layer.ZIndex())

	// allowed before attaching
	layer.SetOpacity(0.5)
	assert.Equal(t, 0.5, layer.Opacity())
	layer.SetOpacity(2)
	assert.Equal(t, 1.0, layer.Opacity())
	layer.SetZIndex(7)
	assert.Equal(t, 7, layer.ZIndex())
	layer.Redraw()
	assert.Empty(t, layer.Tiles())
}

//nolint:funlen
func TestNewLayerOptions(t *testing.T) {
	four, six := 4, 6
	two := 2.0
	tests := []struct {
		name    string
		src     Source
		opts    Options
		wantErr bool
	}{
		{name: "defaults", src: SyncSource(keyHandles)},
		{name: "no source", wantErr: true},
		{name: "negative tile size", src: SyncSource(keyHandles), opts: Options{TileSize: -1}, wantErr: true},
		{name: "opacity above 1", src: SyncSource(keyHandles), opts: Options{Opacity: &two}, wantErr: true},
		{name: "negative min zoom", src: SyncSource(keyHandles), opts: Options{MinZoom: -1}, wantErr: true},
		{name: "min above max", src: SyncSource(keyHandles), opts: Options{MinZoom: 5, MaxZoom: zoomPtr(3)}, wantErr: true},
		{
			name:    "native zooms crossed",
			src:     SyncSource(keyHandles),
			opts:    Options{MinNativeZoom: &six, MaxNativeZoom: &four},
			wantErr: true,
		},
		{name: "native zooms", src: SyncSource(keyHandles), opts: Options{MinNativeZoom: &four, MaxNativeZoom: &six}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer, err := NewLayer(tt.src, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, geometry.Pt(256, 256), layer.TileSize())
			assert.Equal(t, 18, *layer.opts.MaxZoom)
			assert.Equal(t, DefaultUpdateInterval, layer.opts.UpdateInterval)
		})
	}
}

func TestZeroOptionsAreKept(t *testing.T) {
	zero := 0.0
	h := newHarness(t, SyncSource(keyHandles), Options{DisableFade: true, MaxZoom: zoomPtr(0), Opacity: &zero})
	assert.Equal(t, 0, *h.layer.opts.MaxZoom)
	assert.Equal(t, 0.0, h.layer.Opacity())

	h.view.SetView(origin, 0)
	h.loop.Flush()
	assert.Equal(t, 5, h.counts[TileLoad])

	h.view.SetView(origin, 1)
	h.loop.Settle(time.Second)
	_, ok := h.layer.TileZoom()
	assert.False(t, ok)
	assert.Empty(t, h.layer.Tiles())
}

func TestGridOptions(t *testing.T) {
	opts := GridOptions(crs.Grid{TileSize: geometry.Pt(512, 512), MaxZoom: 14})
	assert.Equal(t, 512, opts.TileSize)
	assert.Equal(t, 14, *opts.MaxZoom)
}
