package morton

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToZFromZ(t *testing.T) {
	tests := []struct {
		x, y uint
		z    Z
	}{
		{x: 0, y: 0, z: 0},
		{x: 1, y: 0, z: 1},
		{x: 0, y: 1, z: 2},
		{x: 1, y: 1, z: 3},
		{x: 2, y: 0, z: 4},
		{x: 3, y: 5, z: 0b100111},
		{x: math.MaxUint32, y: math.MaxUint32, z: math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("(%v, %v)", tt.x, tt.y), func(t *testing.T) {
			z, ok := ToZ(tt.x, tt.y)
			require.True(t, ok)
			require.Equal(t, tt.z, z)
			x, y := FromZ(z)
			require.Equal(t, tt.x, x)
			require.Equal(t, tt.y, y)
		})
	}
}

func TestMustToZ(t *testing.T) {
	assert.Panics(t, func() { MustToZ(math.MaxUint32+1, 0) })
	assert.Equal(t, Z(3), MustToZ(1, 1))
}

func TestFromTileIndex(t *testing.T) {
	_, ok := FromTileIndex(-1, 0)
	assert.False(t, ok)
	z, ok := FromTileIndex(3, 5)
	assert.True(t, ok)
	assert.Equal(t, Z(0b100111), z)
}

func TestQuadkey(t *testing.T) {
	// bing maps example: tile (3, 5) at level 3 has quadkey 213
	assert.Equal(t, "213", Quadkey(MustToZ(3, 5), 3))
	assert.Equal(t, "", Quadkey(0, 0))
	assert.Equal(t, "0001", Quadkey(MustToZ(1, 0), 4))
}
