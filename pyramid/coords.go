package pyramid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-spatial/geom/slippy"
	"github.com/paulmach/orb/maptile"

	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/intgeom"
	"github.com/pdok/tilepyramid/morton"
)

// Coords is the index of a tile: column X and row Y in the grid of pyramid level Z.
// X and Y may be negative or beyond the grid, on a wrapping axis that is a copy of the world.
type Coords struct {
	X, Y, Z int
}

// Key is the cache key of c, "x:y:z". Distinct coords have distinct keys.
func (c Coords) Key() string {
	b := make([]byte, 0, 24)
	b = strconv.AppendInt(b, int64(c.X), 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(c.Y), 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(c.Z), 10)
	return string(b)
}

// ParseKey is the inverse of Coords.Key.
func ParseKey(key string) (Coords, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return Coords{}, fmt.Errorf("tile key %q: want x:y:z", key)
	}
	var xyz [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Coords{}, fmt.Errorf("tile key %q: %w", key, err)
		}
		xyz[i] = n
	}
	return Coords{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func (c Coords) String() string {
	return c.Key()
}

// Parent returns the tile one level up that covers c.
func (c Coords) Parent() Coords {
	return Coords{X: floorHalf(c.X), Y: floorHalf(c.Y), Z: c.Z - 1}
}

// Children returns the four tiles one level down that c covers, column by column.
func (c Coords) Children() [4]Coords {
	var children [4]Coords
	n := 0
	for i := 2 * c.X; i < 2*c.X+2; i++ {
		for j := 2 * c.Y; j < 2*c.Y+2; j++ {
			children[n] = Coords{X: i, Y: j, Z: c.Z + 1}
			n++
		}
	}
	return children
}

func floorHalf(n int) int {
	return n >> 1
}

// Point drops the level.
func (c Coords) Point() intgeom.Point {
	return intgeom.Point{c.X, c.Y}
}

// ScaleBy returns the pixel position of the top left corner of c at its level.
func (c Coords) ScaleBy(tileSize geometry.Point) geometry.Point {
	return geometry.Pt(float64(c.X), float64(c.Y)).ScaleBy(tileSize)
}

func (c Coords) inGrid() bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0
}

// Slippy returns c as a go-spatial tile, false for negative indices.
func (c Coords) Slippy() (*slippy.Tile, bool) {
	if !c.inGrid() {
		return nil, false
	}
	return slippy.NewTile(uint(c.Z), uint(c.X), uint(c.Y)), true
}

// MapTile returns c as an orb map tile, false for negative indices.
func (c Coords) MapTile() (maptile.Tile, bool) {
	if !c.inGrid() {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.Z)), true
}

// Morton returns the Z-order number of c within its level, false for negative or too large indices.
func (c Coords) Morton() (morton.Z, bool) {
	if c.Z < 0 {
		return 0, false
	}
	return morton.FromTileIndex(c.X, c.Y)
}

// Quadkey returns the quadkey of c, false where Morton is.
func (c Coords) Quadkey() (string, bool) {
	z, ok := c.Morton()
	if !ok {
		return "", false
	}
	return morton.Quadkey(z, uint(c.Z)), true
}
