package pyramid

type EventType int

const (
	// Loading fires when a batch of tiles starts loading.
	Loading EventType = iota
	TileLoadStart
	TileLoad
	TileError
	TileUnload
	// TileAbort fires for pending tiles dropped because the tile zoom changed.
	TileAbort
	// Load fires when no tile is pending anymore.
	Load
)

var eventTypeNames = [...]string{
	Loading:       "loading",
	TileLoadStart: "tileloadstart",
	TileLoad:      "tileload",
	TileError:     "tileerror",
	TileUnload:    "tileunload",
	TileAbort:     "tileabort",
	Load:          "load",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Event is a notification of a layer. Coords, Handle and Err are set where they apply.
type Event struct {
	Type   EventType
	Coords Coords
	Handle Handle
	Err    error
}

type Listener func(e Event)
