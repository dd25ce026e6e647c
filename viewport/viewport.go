// Package viewport holds the state of a map view (center, zoom, size and CRS) and tells the layers
// following it when that state changes.
//
// A View runs on a loop.Loop, like the layers listening to it: all methods must be called from the
// loop goroutine, or before the loop starts.
package viewport

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/logger"
	"github.com/pdok/tilepyramid/loop"
	"github.com/pdok/tilepyramid/mapslicehelp"
	"github.com/pdok/tilepyramid/mathhelp"
)

var ErrNotLoaded = errors.New("view has no center and zoom yet")

// DefaultZoomAnimationDuration is the default of Options.ZoomAnimationDuration.
const DefaultZoomAnimationDuration = 250 * time.Millisecond

type Options struct {
	// CRS defaults to EPSG:3857
	CRS *crs.CRS `validate:"-"`

	Width  int `validate:"gt=0"`
	Height int `validate:"gt=0"`

	MinZoom float64
	MaxZoom float64 `default:"+Inf" validate:"gtefield=MinZoom"`
	// ZoomSnap rounds every zoom to a multiple of it, unless FractionalZoom is set
	ZoomSnap       float64 `default:"1" validate:"gt=0"`
	FractionalZoom bool
	ZoomDelta      float64 `default:"1" validate:"gt=0"`

	DisableZoomAnimation   bool
	ZoomAnimationDuration  time.Duration `default:"250ms" validate:"gte=0"`
	ZoomAnimationThreshold float64       `default:"4" validate:"gte=0"`

	// MaxBounds keeps the view inside these bounds when valid
	MaxBounds geo.LatLngBounds `validate:"-"`

	Logger *slog.Logger `validate:"-"`
}

type View struct {
	loop *loop.Loop
	opts Options
	crs  *crs.CRS
	log  *slog.Logger

	size        geometry.Point
	center      geo.LatLng
	zoom        float64
	pixelOrigin geometry.Point
	loaded      bool

	animatingZoom   bool
	animateToCenter geo.LatLng
	animateToZoom   float64
	zoomAnimTimer   *loop.Timer

	enforcingBounds bool

	listeners      *orderedmap.OrderedMap[uint64, Listener]
	lastListenerID uint64
}

func New(lp *loop.Loop, opts Options) (*View, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("view options: %w", err)
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("view options: %w", err)
	}
	if opts.CRS == nil {
		opts.CRS = crs.EPSG3857()
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	return &View{
		loop:      lp,
		opts:      opts,
		crs:       opts.CRS,
		log:       opts.Logger.With("component", "viewport", "crs", opts.CRS.Code),
		size:      geometry.Pt(float64(opts.Width), float64(opts.Height)),
		listeners: orderedmap.New[uint64, Listener](),
	}, nil
}

func (v *View) Loop() *loop.Loop            { return v.loop }
func (v *View) CRS() *crs.CRS               { return v.crs }
func (v *View) Center() geo.LatLng          { return v.center }
func (v *View) Zoom() float64               { return v.zoom }
func (v *View) Size() geometry.Point        { return v.size }
func (v *View) PixelOrigin() geometry.Point { return v.pixelOrigin }
func (v *View) Loaded() bool                { return v.loaded }
func (v *View) MinZoom() float64            { return v.opts.MinZoom }
func (v *View) MaxZoom() float64            { return v.opts.MaxZoom }

// ZoomAnimation returns the target zoom of a running zoom animation.
func (v *View) ZoomAnimation() (target float64, animating bool) {
	return v.animateToZoom, v.animatingZoom
}

// Subscribe adds l to the listeners. Listeners are called in the order they subscribed.
func (v *View) Subscribe(l Listener) (unsubscribe func()) {
	v.lastListenerID++
	id := v.lastListenerID
	v.listeners.Set(id, l)
	return func() {
		v.listeners.Delete(id)
	}
}

func (v *View) fire(e Event) {
	for _, l := range mapslicehelp.OrderedMapValues(v.listeners) {
		l.HandleViewEvent(e)
	}
}

// SetView jumps to center and zoom without animation. Layers start over from scratch.
func (v *View) SetView(center geo.LatLng, zoom float64) {
	v.stopZoomAnimation()
	zoom = v.limitZoom(zoom)
	v.resetView(v.limitCenter(center, zoom, v.opts.MaxBounds), zoom)
}

// SetZoom is SetView at the current center. Before the first SetView it only stores the zoom.
func (v *View) SetZoom(zoom float64) {
	if !v.loaded {
		v.zoom = v.limitZoom(zoom)
		return
	}
	v.SetView(v.center, zoom)
}

func (v *View) ZoomIn(delta float64) {
	if delta == 0 {
		delta = v.opts.ZoomDelta
	}
	v.SetZoom(v.zoom + delta)
}

func (v *View) ZoomOut(delta float64) {
	if delta == 0 {
		delta = v.opts.ZoomDelta
	}
	v.SetZoom(v.zoom - delta)
}

// SetZoomAround zooms while keeping the container point p at the same place on screen.
func (v *View) SetZoomAround(p geometry.Point, zoom float64) error {
	if !v.loaded {
		return ErrNotLoaded
	}
	scale := v.ZoomScale(zoom, v.zoom)
	viewHalf := v.size.DivideBy(2)
	centerOffset := p.Subtract(viewHalf).MultiplyBy(1 - 1/scale)
	v.SetView(v.ContainerPointToLatLng(viewHalf.Add(centerOffset)), zoom)
	return nil
}

// ZoomTo zooms to center and zoom with an animation of ZoomAnimationDuration on the loop's clock.
// Layers keep their tiles while the new ones load. It falls back to SetView when animating makes
// no sense: before the first view, for big zoom jumps and for targets more than a screen away.
func (v *View) ZoomTo(center geo.LatLng, zoom float64) {
	zoom = v.limitZoom(zoom)
	center = v.limitCenter(center, zoom, v.opts.MaxBounds)
	if v.loaded && zoom == v.zoom {
		_ = v.PanTo(center)
		return
	}
	if !v.canAnimateZoom(center, zoom) {
		v.SetView(center, zoom)
		return
	}
	v.stopZoomAnimation()

	zoomChanged := zoom != v.zoom
	v.moveStart(zoomChanged)
	v.animatingZoom = true
	v.animateToCenter = center
	v.animateToZoom = zoom
	v.fire(Event{Type: ZoomAnim, Center: center, Zoom: zoom})

	v.log.Debug("zoom animation", "from", v.zoom, "to", zoom)
	v.zoomAnimTimer = v.loop.AfterFunc(v.opts.ZoomAnimationDuration, v.endZoomAnimation)
}

func (v *View) canAnimateZoom(center geo.LatLng, zoom float64) bool {
	if !v.loaded || v.opts.DisableZoomAnimation || math.Abs(zoom-v.zoom) > v.opts.ZoomAnimationThreshold {
		return false
	}
	scale := v.ZoomScale(zoom, v.zoom)
	offset := v.centerOffset(center).DivideBy(1 - 1/scale)
	return v.size.Contains(offset)
}

func (v *View) endZoomAnimation() {
	if !v.animatingZoom {
		return
	}
	v.animatingZoom = false
	v.zoomAnimTimer = nil
	v.move(v.animateToCenter, v.animateToZoom, false)
	v.moveEnd(true)
}

// stopZoomAnimation jumps to the end of a running zoom animation.
func (v *View) stopZoomAnimation() {
	if v.zoomAnimTimer.Stop() {
		v.endZoomAnimation()
	}
}

// Pinch moves the view continuously, as a pinch gesture does. Layers do not prune tiles until
// EndPinch.
func (v *View) Pinch(center geo.LatLng, zoom float64) error {
	if !v.loaded {
		return ErrNotLoaded
	}
	v.stopZoomAnimation()
	v.move(center, v.limitZoom(zoom), true)
	return nil
}

func (v *View) EndPinch() {
	v.moveEnd(true)
}

// PanBy moves the view by offset pixels, keeping the zoom.
func (v *View) PanBy(offset geometry.Point) error {
	if !v.loaded {
		return ErrNotLoaded
	}
	if offset.Round().Equals(geometry.Point{}) {
		return nil
	}
	v.stopZoomAnimation()
	center := v.Unproject(v.Project(v.center, v.zoom).Add(offset), v.zoom)
	v.moveStart(false)
	v.move(center, v.zoom, false)
	v.moveEnd(false)
	v.panInsideMaxBounds()
	return nil
}

// PanTo moves the view to center, keeping the zoom.
func (v *View) PanTo(center geo.LatLng) error {
	if !v.loaded {
		return ErrNotLoaded
	}
	return v.PanBy(v.centerOffset(center))
}

// FitBounds sets the view to the largest zoom at which b, plus padding pixels, fits.
func (v *View) FitBounds(b geo.LatLngBounds, padding geometry.Point) error {
	if !b.IsValid() {
		return errors.New("bounds are not valid")
	}
	zoom := v.BoundsZoom(b, false, padding)
	sw := v.Project(b.SouthWest, zoom)
	ne := v.Project(b.NorthEast, zoom)
	v.SetView(v.Unproject(sw.Add(ne).DivideBy(2), zoom), zoom)
	return nil
}

// BoundsZoom returns the largest zoom at which b fits in the view. With inside, it returns the
// smallest zoom at which the view fits in b instead.
func (v *View) BoundsZoom(b geo.LatLngBounds, inside bool, padding geometry.Point) float64 {
	zoom := v.zoom
	boundsSize := v.Project(b.SouthEast(), zoom).Subtract(v.Project(b.NorthWest(), zoom)).Add(padding)
	scale := math.Min(v.size.X/boundsSize.X, v.size.Y/boundsSize.Y)
	zoom = v.ScaleZoom(scale, zoom)
	if !v.opts.FractionalZoom {
		snap := v.opts.ZoomSnap
		if inside {
			zoom = math.Ceil(zoom/snap) * snap
		} else {
			zoom = math.Floor(zoom/snap) * snap
		}
	}
	return mathhelp.Clamp(zoom, v.opts.MinZoom, v.opts.MaxZoom)
}

// SetSize resizes the view around its center.
func (v *View) SetSize(width, height int) {
	v.size = geometry.Pt(float64(width), float64(height))
	if !v.loaded {
		return
	}
	v.pixelOrigin = v.NewPixelOrigin(v.center, v.zoom)
	v.fire(Event{Type: Move})
	v.fire(Event{Type: MoveEnd})
}

func (v *View) SetMaxBounds(b geo.LatLngBounds) {
	v.opts.MaxBounds = b
	if v.loaded {
		v.panInsideMaxBounds()
	}
}

func (v *View) SetMinZoom(zoom float64) {
	v.opts.MinZoom = zoom
	if v.loaded && v.zoom < zoom {
		v.SetZoom(zoom)
	}
}

func (v *View) SetMaxZoom(zoom float64) {
	v.opts.MaxZoom = zoom
	if v.loaded && v.zoom > zoom {
		v.SetZoom(zoom)
	}
}

// Bounds returns the geographical bounds of the view.
func (v *View) Bounds() geo.LatLngBounds {
	b := v.PixelBounds()
	return geo.NewLatLngBounds(v.Unproject(b.BottomLeft(), v.zoom), v.Unproject(b.TopRight(), v.zoom))
}

// PixelBounds returns the bounds of the view in pixels at the current zoom.
func (v *View) PixelBounds() geometry.Bounds {
	return geometry.NewBounds(v.pixelOrigin, v.pixelOrigin.Add(v.size))
}

// PixelBoundsAt returns what PixelBounds would be for center and zoom.
func (v *View) PixelBoundsAt(center geo.LatLng, zoom float64) geometry.Bounds {
	topLeft := v.NewPixelOrigin(center, zoom)
	return geometry.NewBounds(topLeft, topLeft.Add(v.size))
}

// PixelWorldBounds returns the pixel bounds of the world at zoom, false for an infinite CRS.
func (v *View) PixelWorldBounds(zoom float64) (geometry.Bounds, bool) {
	return v.crs.ProjectedBounds(zoom)
}

// NewPixelOrigin returns the pixel origin the view would have at center and zoom.
func (v *View) NewPixelOrigin(center geo.LatLng, zoom float64) geometry.Point {
	return v.Project(center, zoom).Subtract(v.size.DivideBy(2)).Round()
}

func (v *View) Project(ll geo.LatLng, zoom float64) geometry.Point {
	return v.crs.LatLngToPoint(ll, zoom)
}

func (v *View) Unproject(p geometry.Point, zoom float64) geo.LatLng {
	return v.crs.PointToLatLng(p, zoom)
}

func (v *View) ZoomScale(toZoom, fromZoom float64) float64 {
	return v.crs.ZoomScale(toZoom, fromZoom)
}

func (v *View) ScaleZoom(scale, fromZoom float64) float64 {
	return v.crs.ScaleZoom(scale, fromZoom)
}

// LatLngToContainerPoint returns the position of ll relative to the top left of the view.
func (v *View) LatLngToContainerPoint(ll geo.LatLng) geometry.Point {
	return v.Project(ll, v.zoom).Subtract(v.pixelOrigin)
}

func (v *View) ContainerPointToLatLng(p geometry.Point) geo.LatLng {
	return v.Unproject(p.Add(v.pixelOrigin), v.zoom)
}

func (v *View) centerOffset(ll geo.LatLng) geometry.Point {
	return v.LatLngToContainerPoint(ll).Subtract(v.size.DivideBy(2))
}

func (v *View) resetView(center geo.LatLng, zoom float64) {
	loading := !v.loaded
	v.loaded = true

	v.fire(Event{Type: ViewPreReset})

	zoomChanged := loading || v.zoom != zoom
	v.moveStart(zoomChanged)
	v.move(center, zoom, false)
	v.moveEnd(zoomChanged)

	v.fire(Event{Type: ViewReset})
	v.log.Debug("view reset", "center", center.String(), "zoom", zoom)

	if loading {
		v.fire(Event{Type: Load})
	}
}

func (v *View) moveStart(zoomChanged bool) {
	if zoomChanged {
		v.fire(Event{Type: ZoomStart})
	}
	v.fire(Event{Type: MoveStart})
}

func (v *View) move(center geo.LatLng, zoom float64, pinch bool) {
	zoomChanged := v.zoom != zoom
	v.zoom = zoom
	v.center = center
	v.pixelOrigin = v.NewPixelOrigin(center, zoom)
	if zoomChanged || pinch {
		v.fire(Event{Type: Zoom, Pinch: pinch})
	}
	v.fire(Event{Type: Move, Pinch: pinch})
}

func (v *View) moveEnd(zoomChanged bool) {
	if zoomChanged {
		v.fire(Event{Type: ZoomEnd})
	}
	v.fire(Event{Type: MoveEnd})
}

func (v *View) panInsideMaxBounds() {
	if v.enforcingBounds || !v.opts.MaxBounds.IsValid() {
		return
	}
	v.enforcingBounds = true
	defer func() { v.enforcingBounds = false }()
	limited := v.limitCenter(v.center, v.zoom, v.opts.MaxBounds)
	if !limited.Equals(v.center) {
		_ = v.PanTo(limited)
	}
}

// limitZoom snaps zoom and clamps it to the zoom range.
func (v *View) limitZoom(zoom float64) float64 {
	if !v.opts.FractionalZoom {
		zoom = math.Round(zoom/v.opts.ZoomSnap) * v.opts.ZoomSnap
	}
	return mathhelp.Clamp(zoom, v.opts.MinZoom, v.opts.MaxZoom)
}

// limitCenter moves center so the view at zoom stays inside bounds.
func (v *View) limitCenter(center geo.LatLng, zoom float64, bounds geo.LatLngBounds) geo.LatLng {
	if !bounds.IsValid() {
		return center
	}
	centerPoint := v.Project(center, zoom)
	viewHalf := v.size.DivideBy(2)
	viewBounds := geometry.NewBounds(centerPoint.Subtract(viewHalf), centerPoint.Add(viewHalf))
	offset := v.boundsOffset(viewBounds, bounds, zoom)

	// sub-pixel offsets would keep unstable projections bouncing forever
	if offset.Round().Equals(geometry.Point{}) {
		return center
	}
	return v.Unproject(centerPoint.Add(offset), zoom)
}

// boundsOffset returns the offset that moves pxBounds inside maxBounds at zoom.
func (v *View) boundsOffset(pxBounds geometry.Bounds, maxBounds geo.LatLngBounds, zoom float64) geometry.Point {
	projected := geometry.NewBounds(v.Project(maxBounds.NorthEast, zoom), v.Project(maxBounds.SouthWest, zoom))
	minOffset := projected.Min.Subtract(pxBounds.Min)
	maxOffset := projected.Max.Subtract(pxBounds.Max)
	return geometry.Pt(rebound(minOffset.X, -maxOffset.X), rebound(minOffset.Y, -maxOffset.Y))
}

func rebound(left, right float64) float64 {
	if left+right > 0 {
		return math.Round(left-right) / 2
	}
	return math.Max(0, math.Ceil(left)) - math.Max(0, math.Floor(right))
}
