// Package pyramid keeps the tile pyramid of a raster layer in sync with a view: it works out which
// tiles the view needs, asks a Source for the missing ones, and drops the ones no longer needed
// while keeping stale tiles around that cover for tiles still loading.
//
// A Layer runs on the loop of its view. Tile completions from other goroutines are posted onto
// that loop, so sources that finish right away and sources that finish later take the same path.
package pyramid

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/umpc/go-sortedmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/intgeom"
	"github.com/pdok/tilepyramid/logger"
	"github.com/pdok/tilepyramid/loop"
	"github.com/pdok/tilepyramid/mapslicehelp"
	"github.com/pdok/tilepyramid/mathhelp"
	"github.com/pdok/tilepyramid/viewport"
)

const (
	// FadeDuration is how long a loaded tile takes to fade in.
	FadeDuration = 200 * time.Millisecond
	// fadePruneDelay is how long pruning waits after a batch loaded, when fading.
	fadePruneDelay = 250 * time.Millisecond

	parentSearchDepth = 5
	childSearchDepth  = 2
)

var (
	ErrAttached    = errors.New("layer is already attached to a view")
	ErrNotAttached = errors.New("layer is not attached to a view")
)

// Viewport is what a layer follows. *viewport.View implements it.
type Viewport interface {
	CRS() *crs.CRS
	Center() geo.LatLng
	Zoom() float64
	Size() geometry.Point
	PixelOrigin() geometry.Point
	NewPixelOrigin(center geo.LatLng, zoom float64) geometry.Point
	ZoomAnimation() (target float64, animating bool)
	Loaded() bool
	Loop() *loop.Loop
	Subscribe(l viewport.Listener) (unsubscribe func())
}

type Layer struct {
	src      Source
	opts     Options
	log      *slog.Logger
	registry metrics.Registry
	metrics  *layerMetrics

	view        Viewport
	loop        *loop.Loop
	added       bool
	ctx         context.Context
	cancelCtx   context.CancelFunc
	unsubscribe func()
	onMove      func()
	cancelMove  func()

	tiles  *orderedmap.OrderedMap[string, *Tile]
	levels *sortedmap.SortedMap
	level  *Level

	tileZoom        int
	hasTileZoom     bool
	tileSize        geometry.Point
	globalTileRange intgeom.Extent
	hasGlobalRange  bool
	wrapX, wrapY    *[2]int

	loading   bool
	noPrune   bool
	fadeFrame loop.FrameID

	listeners      *orderedmap.OrderedMap[uint64, Listener]
	lastListenerID uint64
}

// NewLayer returns a layer loading its tiles from src. Attach it to a view to start loading.
func NewLayer(src Source, opts Options) (*Layer, error) {
	if src == nil {
		return nil, errors.New("layer needs a source")
	}
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	size := float64(opts.TileSize)
	return &Layer{
		src:       src,
		opts:      opts,
		log:       opts.Logger.With("component", "pyramid"),
		registry:  opts.Metrics,
		metrics:   newLayerMetrics(opts.Metrics),
		tileSize:  geometry.Pt(size, size),
		tiles:     orderedmap.New[string, *Tile](),
		levels:    newLevelMap(),
		listeners: orderedmap.New[uint64, Listener](),
	}, nil
}

func newLevelMap() *sortedmap.SortedMap {
	return sortedmap.New(4, func(i, j interface{}) bool {
		return i.(*Level).Zoom < j.(*Level).Zoom
	})
}

// Attach makes the layer follow view. Tiles start loading as soon as the view has a center and zoom.
func (l *Layer) Attach(view Viewport) error {
	if l.view != nil {
		return ErrAttached
	}
	l.view = view
	l.loop = view.Loop()
	l.ctx, l.cancelCtx = context.WithCancel(context.Background())
	if !l.opts.UpdateWhenIdle {
		l.onMove, l.cancelMove = loop.Throttle(l.loop, l.opts.UpdateInterval, l.onMoveEnd)
	}
	l.unsubscribe = view.Subscribe(l)
	if view.Loaded() {
		l.onAdd()
	}
	return nil
}

func (l *Layer) onAdd() {
	l.added = true
	l.tiles = orderedmap.New[string, *Tile]()
	l.levels = newLevelMap()
	l.resetView(viewport.Event{})
	l.update(l.view.Center())
}

// Detach removes all tiles and stops following the view.
func (l *Layer) Detach() error {
	if l.view == nil {
		return ErrNotAttached
	}
	l.removeAllTiles()
	l.unsubscribe()
	if l.cancelMove != nil {
		l.cancelMove()
	}
	l.loop.CancelFrame(l.fadeFrame)
	l.cancelCtx()
	l.levels = newLevelMap()
	l.level = nil
	l.hasTileZoom = false
	l.loading = false
	l.added = false
	l.view = nil
	return nil
}

// HandleViewEvent follows the view. It is called by the view the layer is attached to.
func (l *Layer) HandleViewEvent(e viewport.Event) {
	if !l.added {
		if e.Type == viewport.Load {
			l.onAdd()
		}
		return
	}
	switch e.Type {
	case viewport.ViewPreReset:
		l.invalidateAll()
	case viewport.ViewReset, viewport.Zoom:
		l.resetView(e)
	case viewport.Move:
		if l.onMove != nil {
			l.onMove()
		}
	case viewport.MoveEnd:
		l.onMoveEnd()
	case viewport.ZoomAnim:
		l.setView(e.Center, e.Zoom, true, e.NoUpdate)
	}
}

// On subscribes fn to the events of the layer.
func (l *Layer) On(fn Listener) (unsubscribe func()) {
	l.lastListenerID++
	id := l.lastListenerID
	l.listeners.Set(id, fn)
	return func() {
		l.listeners.Delete(id)
	}
}

func (l *Layer) fire(e Event) {
	for _, fn := range mapslicehelp.OrderedMapValues(l.listeners) {
		fn(e)
	}
}

// Redraw drops all tiles and loads them again.
func (l *Layer) Redraw() {
	if !l.added {
		return
	}
	l.removeAllTiles()
	l.update(l.view.Center())
}

func (l *Layer) SetOpacity(opacity float64) {
	opacity = mathhelp.Clamp(opacity, 0, 1)
	l.opts.Opacity = &opacity
	l.updateOpacity()
}

func (l *Layer) Opacity() float64 {
	return *l.opts.Opacity
}

func (l *Layer) SetZIndex(z int) {
	l.opts.ZIndex = z
}

func (l *Layer) ZIndex() int {
	return l.opts.ZIndex
}

// IsLoading reports whether tiles of the current batch are still pending.
func (l *Layer) IsLoading() bool {
	return l.loading
}

func (l *Layer) TileSize() geometry.Point {
	return l.tileSize
}

// TileZoom returns the zoom tiles are loaded at, false when the view is outside the layer's zooms.
func (l *Layer) TileZoom() (int, bool) {
	return l.tileZoom, l.hasTileZoom
}

// Tiles returns a copy of the tile cache in insertion order.
func (l *Layer) Tiles() []Tile {
	tiles := make([]Tile, 0, l.tiles.Len())
	for pair := l.tiles.Oldest(); pair != nil; pair = pair.Next() {
		tiles = append(tiles, *pair.Value)
	}
	return tiles
}

// Tile returns a copy of the cached tile under key.
func (l *Layer) Tile(key string) (Tile, bool) {
	t, ok := l.tiles.Get(key)
	if !ok {
		return Tile{}, false
	}
	return *t, true
}

// Levels returns a copy of the levels by ascending zoom.
func (l *Layer) Levels() []Level {
	levels := mapslicehelp.SortedMapValues[*Level](l.levels)
	copied := make([]Level, len(levels))
	for i, level := range levels {
		copied[i] = *level
	}
	return copied
}

func (l *Layer) Metrics() metrics.Registry {
	return l.registry
}

// TileBounds returns the geographical bounds of the tile at coords.
func (l *Layer) TileBounds(coords Coords) (geo.LatLngBounds, error) {
	if l.view == nil {
		return geo.LatLngBounds{}, ErrNotAttached
	}
	return l.tileCoordsToBounds(coords), nil
}

func (l *Layer) updateOpacity() {
	if !l.added || l.opts.DisableFade {
		return
	}
	now := l.loop.Now()
	nextFrame, willPrune := false, false
	for _, t := range mapslicehelp.OrderedMapValues(l.tiles) {
		if !t.Current || !t.isLoaded() {
			continue
		}
		fade := math.Min(1, float64(now.Sub(t.Loaded))/float64(FadeDuration))
		t.Opacity = fade
		if fade < 1 {
			nextFrame = true
		} else {
			if t.Active {
				willPrune = true
			}
			t.Active = true
		}
	}
	if willPrune && !l.noPrune {
		l.pruneTiles()
	}
	if nextFrame {
		l.loop.CancelFrame(l.fadeFrame)
		l.fadeFrame = l.loop.RequestFrame(l.updateOpacity)
	}
}

func (l *Layer) updateLevels() *Level {
	if !l.hasTileZoom {
		return nil
	}
	zoom := l.tileZoom
	for _, level := range mapslicehelp.SortedMapValues[*Level](l.levels) {
		if level.Zoom == zoom || l.hasTilesAtZoom(level.Zoom) {
			level.ZIndex = *l.opts.MaxZoom - absInt(zoom-level.Zoom)
			continue
		}
		l.removeTilesAtZoom(level.Zoom)
		l.levels.Delete(level.Zoom)
		l.log.Debug("level removed", "zoom", level.Zoom)
	}

	v, ok := l.levels.Get(zoom)
	if !ok {
		c := l.view.CRS()
		origin := c.LatLngToPoint(c.PointToLatLng(l.view.PixelOrigin(), l.view.Zoom()), float64(zoom)).Round()
		level := &Level{Zoom: zoom, Origin: origin, ZIndex: *l.opts.MaxZoom}
		l.setZoomTransform(level, l.view.Center(), l.view.Zoom())
		l.levels.Insert(zoom, level)
		l.log.Debug("level added", "zoom", zoom, "origin", origin.String())
		v = level
	}
	l.level = v.(*Level)
	return l.level
}

func (l *Layer) hasTilesAtZoom(zoom int) bool {
	return mapslicehelp.AnyFunc(l.tiles, func(t *Tile) bool { return t.Coords.Z == zoom })
}

func (l *Layer) pruneTiles() {
	if !l.added {
		return
	}
	zoom := l.view.Zoom()
	if zoom > float64(*l.opts.MaxZoom) || zoom < float64(l.opts.MinZoom) {
		l.removeAllTiles()
		return
	}

	tiles := mapslicehelp.OrderedMapValues(l.tiles)
	for _, t := range tiles {
		t.Retain = t.Current
	}
	for _, t := range tiles {
		if t.Current && !t.Active {
			c := t.Coords
			if !l.retainParent(c.X, c.Y, c.Z, c.Z-parentSearchDepth) {
				l.retainChildren(c.X, c.Y, c.Z, c.Z+childSearchDepth)
			}
		}
	}
	removed := 0
	for _, t := range tiles {
		if !t.Retain {
			l.removeTile(t.Coords.Key())
			removed++
		}
	}
	if removed > 0 {
		l.log.Debug("pruned tiles", "removed", removed, "kept", l.tiles.Len())
	}
}

func (l *Layer) removeTilesAtZoom(zoom int) {
	for _, t := range mapslicehelp.OrderedMapValues(l.tiles) {
		if t.Coords.Z == zoom {
			l.removeTile(t.Coords.Key())
		}
	}
}

func (l *Layer) removeAllTiles() {
	for _, key := range mapslicehelp.OrderedMapKeys(l.tiles) {
		l.removeTile(key)
	}
}

func (l *Layer) invalidateAll() {
	l.levels = newLevelMap()
	l.level = nil
	l.removeAllTiles()
	l.hasTileZoom = false
}

// retainParent walks up from (x, y, z) to minZoom and retains loaded ancestors. An active ancestor
// ends the search.
func (l *Layer) retainParent(x, y, z, minZoom int) bool {
	parent := Coords{X: x, Y: y, Z: z}.Parent()
	if t, ok := l.tiles.Get(parent.Key()); ok {
		if t.Active {
			t.Retain = true
			return true
		} else if t.isLoaded() {
			t.Retain = true
		}
	}
	if parent.Z > minZoom {
		return l.retainParent(parent.X, parent.Y, parent.Z, minZoom)
	}
	return false
}

// retainChildren walks down from (x, y, z) to maxZoom and retains loaded descendants.
func (l *Layer) retainChildren(x, y, z, maxZoom int) {
	for _, child := range (Coords{X: x, Y: y, Z: z}).Children() {
		if t, ok := l.tiles.Get(child.Key()); ok {
			if t.Active {
				t.Retain = true
				continue
			} else if t.isLoaded() {
				t.Retain = true
			}
		}
		if child.Z < maxZoom {
			l.retainChildren(child.X, child.Y, child.Z, maxZoom)
		}
	}
}

func (l *Layer) resetView(e viewport.Event) {
	animating := e.Pinch
	l.setView(l.view.Center(), l.view.Zoom(), animating, animating)
}

func (l *Layer) setView(center geo.LatLng, zoom float64, noPrune, noUpdate bool) {
	tileZoom := int(mathhelp.Round(zoom))
	valid := tileZoom >= l.opts.MinZoom && tileZoom <= *l.opts.MaxZoom
	if valid {
		tileZoom = int(l.opts.clampZoom(float64(tileZoom)))
	}
	tileZoomChanged := valid != l.hasTileZoom || (valid && tileZoom != l.tileZoom)

	if !noUpdate || tileZoomChanged {
		l.tileZoom, l.hasTileZoom = tileZoom, valid
		if l.opts.AbortLoading {
			l.abortLoading()
		}
		l.updateLevels()
		l.resetGrid()
		if valid {
			l.update(center)
		}
		if !noPrune {
			l.pruneTiles()
		}
		l.noPrune = noPrune
	}
	l.setZoomTransforms(center, zoom)
}

func (l *Layer) setZoomTransforms(center geo.LatLng, zoom float64) {
	for _, level := range mapslicehelp.SortedMapValues[*Level](l.levels) {
		l.setZoomTransform(level, center, zoom)
	}
}

func (l *Layer) setZoomTransform(level *Level, center geo.LatLng, zoom float64) {
	level.Scale = l.view.CRS().ZoomScale(zoom, float64(level.Zoom))
	level.Translate = level.Origin.MultiplyBy(level.Scale).Subtract(l.view.NewPixelOrigin(center, zoom)).Round()
}

func (l *Layer) resetGrid() {
	l.hasGlobalRange, l.wrapX, l.wrapY = false, nil, nil
	if !l.hasTileZoom {
		return
	}
	c := l.view.CRS()
	zoom := float64(l.tileZoom)
	if b, ok := c.ProjectedBounds(zoom); ok {
		l.globalTileRange = l.pxBoundsToTileRange(b)
		l.hasGlobalRange = true
	}
	if l.opts.NoWrap {
		return
	}
	if c.WrapLng != nil {
		l.wrapX = &[2]int{
			int(math.Floor(c.LatLngToPoint(geo.LatLng{Lng: c.WrapLng[0]}, zoom).X / l.tileSize.X)),
			int(math.Ceil(c.LatLngToPoint(geo.LatLng{Lng: c.WrapLng[1]}, zoom).X / l.tileSize.Y)),
		}
	}
	if c.WrapLat != nil {
		l.wrapY = &[2]int{
			int(math.Floor(c.LatLngToPoint(geo.LatLng{Lat: c.WrapLat[0]}, zoom).Y / l.tileSize.X)),
			int(math.Ceil(c.LatLngToPoint(geo.LatLng{Lat: c.WrapLat[1]}, zoom).Y / l.tileSize.Y)),
		}
	}
}

func (l *Layer) onMoveEnd() {
	if !l.added {
		return
	}
	if _, animating := l.view.ZoomAnimation(); animating {
		return
	}
	l.resetView(viewport.Event{})
}

// tiledPixelBounds returns the pixel bounds at the tile zoom that tiles have to cover. During a
// zoom animation that is the view at the larger of the current and the target zoom.
func (l *Layer) tiledPixelBounds(center geo.LatLng) geometry.Bounds {
	mapZoom := l.view.Zoom()
	if target, animating := l.view.ZoomAnimation(); animating {
		mapZoom = math.Max(target, mapZoom)
	}
	c := l.view.CRS()
	scale := c.ZoomScale(mapZoom, float64(l.tileZoom))
	pixelCenter := c.LatLngToPoint(center, float64(l.tileZoom)).Floor()
	halfSize := l.view.Size().DivideBy(scale * 2)
	return geometry.NewBounds(pixelCenter.Subtract(halfSize), pixelCenter.Add(halfSize))
}

func (l *Layer) update(center geo.LatLng) {
	if !l.added || !l.hasTileZoom {
		return
	}
	zoom := l.opts.clampZoom(l.view.Zoom())

	tileRange := l.pxBoundsToTileRange(l.tiledPixelBounds(center))
	tileCenter := tileRange.Center()

	for pair := l.tiles.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.Current = false
	}

	// the tile zoom fell too far behind, start over at the current zoom
	if math.Abs(zoom-float64(l.tileZoom)) > 1 {
		l.setView(center, zoom, false, false)
		return
	}

	var queue []Coords
	for _, p := range tileRange.Points() {
		coords := Coords{X: p.X(), Y: p.Y(), Z: l.tileZoom}
		if !l.isValidTile(coords) {
			continue
		}
		if t, ok := l.tiles.Get(coords.Key()); ok {
			t.Current = true
		} else {
			queue = append(queue, coords)
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Point().DistanceSq(tileCenter[0], tileCenter[1]) <
			queue[j].Point().DistanceSq(tileCenter[0], tileCenter[1])
	})

	if len(queue) == 0 {
		return
	}
	if !l.loading {
		l.loading = true
		l.fire(Event{Type: Loading})
	}
	l.log.Debug("loading tiles", "zoom", l.tileZoom, "count", len(queue), "range", tileRange)
	for _, coords := range queue {
		l.addTile(coords)
	}
}

func (l *Layer) isValidTile(coords Coords) bool {
	c := l.view.CRS()
	if !c.Infinite && l.hasGlobalRange {
		r := l.globalTileRange
		if (c.WrapLng == nil && (coords.X < r.MinX() || coords.X > r.MaxX())) ||
			(c.WrapLat == nil && (coords.Y < r.MinY() || coords.Y > r.MaxY())) {
			return false
		}
	}
	if !l.opts.Bounds.IsValid() {
		return true
	}
	return l.opts.Bounds.Overlaps(l.tileCoordsToBounds(coords))
}

func (l *Layer) tileCoordsToBounds(coords Coords) geo.LatLngBounds {
	c := l.view.CRS()
	nwPoint := coords.ScaleBy(l.tileSize)
	sePoint := nwPoint.Add(l.tileSize)
	zoom := float64(coords.Z)
	b := geo.NewLatLngBounds(c.PointToLatLng(nwPoint, zoom), c.PointToLatLng(sePoint, zoom))
	if !l.opts.NoWrap {
		b = c.WrapLatLngBounds(b)
	}
	return b
}

func (l *Layer) removeTile(key string) {
	t, ok := l.tiles.Get(key)
	if !ok {
		return
	}
	l.tiles.Delete(key)
	t.cancel()
	l.release(t.Handle)
	l.metrics.unload.Inc(1)
	l.metrics.cached.Update(int64(l.tiles.Len()))
	l.fire(Event{Type: TileUnload, Coords: t.Coords, Handle: t.Handle})
	l.checkIdle()
}

// abortLoading drops the pending tiles that are not at the tile zoom.
func (l *Layer) abortLoading() {
	for _, t := range mapslicehelp.OrderedMapValues(l.tiles) {
		if (l.hasTileZoom && t.Coords.Z == l.tileZoom) || t.isLoaded() {
			continue
		}
		l.tiles.Delete(t.Coords.Key())
		t.cancel()
		l.metrics.abort.Inc(1)
		l.metrics.cached.Update(int64(l.tiles.Len()))
		l.fire(Event{Type: TileAbort, Coords: t.Coords})
	}
	l.checkIdle()
}

// checkIdle ends a batch whose pending tiles were all removed before they loaded. No load event
// fires for it; the next batch fires loading again.
func (l *Layer) checkIdle() {
	if l.loading && l.noTilesToLoad() {
		l.loading = false
		l.log.Debug("batch dropped before it loaded")
	}
}

func (l *Layer) release(h Handle) {
	if h == nil {
		return
	}
	if r, ok := l.src.(Releaser); ok {
		r.ReleaseTile(h)
	}
}

func (l *Layer) addTile(coords Coords) {
	ctx, cancel := context.WithCancel(l.ctx)
	t := &Tile{
		Coords:  coords,
		Wrapped: l.wrapCoords(coords),
		State:   Pending,
		Current: true,
		Pos:     coords.ScaleBy(l.tileSize).Subtract(l.level.Origin),
		cancel:  cancel,
	}
	l.src.CreateTile(ctx, t.Wrapped, l.doneFunc(t))
	l.tiles.Set(coords.Key(), t)
	l.metrics.loadStart.Inc(1)
	l.metrics.cached.Update(int64(l.tiles.Len()))
	l.fire(Event{Type: TileLoadStart, Coords: coords})
}

// doneFunc returns the completion callback for t. Whenever and wherever it is called, the result is
// applied on the loop.
func (l *Layer) doneFunc(t *Tile) DoneFunc {
	lp := l.loop
	var once sync.Once
	return func(h Handle, err error) {
		once.Do(func() {
			lp.Post(func() { l.tileReady(t, h, err) })
		})
	}
}

func (l *Layer) tileReady(t *Tile, h Handle, err error) {
	// a tile removed or replaced since it was requested is not ours anymore
	if current, ok := l.tiles.Get(t.Coords.Key()); !l.added || !ok || current != t {
		l.log.Debug("dropped stale tile", "key", t.Coords.Key())
		l.release(h)
		return
	}

	t.Handle = h
	t.Loaded = l.loop.Now()
	if err != nil {
		t.State = Failed
		t.Err = err
		l.metrics.errors.Inc(1)
		l.log.Debug("tile failed", "key", t.Coords.Key(), "error", err)
		l.fire(Event{Type: TileError, Coords: t.Coords, Handle: h, Err: err})
	} else {
		t.State = Ready
	}

	if l.opts.DisableFade {
		t.Opacity = 1
		t.Active = true
		l.pruneTiles()
	} else {
		t.Opacity = 0
		l.loop.CancelFrame(l.fadeFrame)
		l.fadeFrame = l.loop.RequestFrame(l.updateOpacity)
	}

	if err == nil {
		l.metrics.load.Inc(1)
		l.fire(Event{Type: TileLoad, Coords: t.Coords, Handle: h})
	}

	if l.added && l.noTilesToLoad() {
		l.loading = false
		l.metrics.batches.Inc(1)
		l.fire(Event{Type: Load})
		if l.opts.DisableFade {
			l.loop.RequestFrame(l.pruneTiles)
		} else {
			l.loop.AfterFunc(fadePruneDelay, l.pruneTiles)
		}
	}
}

func (l *Layer) noTilesToLoad() bool {
	return !mapslicehelp.AnyFunc(l.tiles, func(t *Tile) bool { return !t.isLoaded() })
}

func (l *Layer) wrapCoords(coords Coords) Coords {
	wrapped := coords
	if l.wrapX != nil {
		wrapped.X = mathhelp.WrapInt(coords.X, *l.wrapX)
	}
	if l.wrapY != nil {
		wrapped.Y = mathhelp.WrapInt(coords.Y, *l.wrapY)
	}
	return wrapped
}

func (l *Layer) pxBoundsToTileRange(b geometry.Bounds) intgeom.Extent {
	lo := b.Min.UnscaleBy(l.tileSize).Floor()
	hi := b.Max.UnscaleBy(l.tileSize).Ceil().Subtract(geometry.Pt(1, 1))
	return intgeom.Extent{int(lo.X), int(lo.Y), int(hi.X), int(hi.Y)}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
