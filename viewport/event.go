package viewport

import (
	"github.com/pdok/tilepyramid/geo"
)

type EventType int

const (
	// ViewPreReset fires before a view reset. Layers drop everything they hold for the old view.
	ViewPreReset EventType = iota
	MoveStart
	ZoomStart
	Zoom
	Move
	MoveEnd
	ZoomEnd
	// ViewReset fires after the view jumped without animation.
	ViewReset
	// ZoomAnim fires when a zoom animation starts, with its target in Event.Center and Event.Zoom.
	ZoomAnim
	// Load fires once, on the first view reset.
	Load
)

var eventTypeNames = [...]string{
	ViewPreReset: "viewprereset",
	MoveStart:    "movestart",
	ZoomStart:    "zoomstart",
	Zoom:         "zoom",
	Move:         "move",
	MoveEnd:      "moveend",
	ZoomEnd:      "zoomend",
	ViewReset:    "viewreset",
	ZoomAnim:     "zoomanim",
	Load:         "load",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

type Event struct {
	Type EventType
	// Center and Zoom are the animation target of a ZoomAnim event
	Center geo.LatLng
	Zoom   float64
	// NoUpdate asks layers not to load tiles for the target of a ZoomAnim
	NoUpdate bool
	// Pinch is set on Zoom and Move events of a continuous zoom
	Pinch bool
}

// Listener receives the events of a View. It is called on the loop goroutine.
type Listener interface {
	HandleViewEvent(e Event)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(e Event)

func (f ListenerFunc) HandleViewEvent(e Event) {
	f(e)
}
