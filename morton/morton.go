// Package morton numbers tile indices along a Z-order curve, so tiles that are close on the map
// get numbers that are close too. Quadkeys are the same numbers written in base 4.
package morton

import (
	"fmt"
	"math"
	"strings"
)

type Z = uint

var (
	masks = [...]uint{
		0b0101010101010101010101010101010101010101010101010101010101010101,
		0b0011001100110011001100110011001100110011001100110011001100110011,
		0b0000111100001111000011110000111100001111000011110000111100001111,
		0b0000000011111111000000001111111100000000111111110000000011111111,
		0b0000000000000000111111111111111100000000000000001111111111111111,
		0b0000000000000000000000000000000011111111111111111111111111111111,
	}
	powersOfTwo = [...]uint{0, 1, 2, 4, 8, 16}
)

// ToZ interleaves the bits of x and y, x taking the even bits.
func ToZ(x, y uint) (z Z, ok bool) {
	ok = x <= math.MaxUint32 && y <= math.MaxUint32
	for i := 4; i >= 0; i-- {
		x = (x | (x << powersOfTwo[i+1])) & masks[i]
		y = (y | (y << powersOfTwo[i+1])) & masks[i]
	}
	z = x | (y << 1)
	return z, ok
}

func MustToZ(x, y uint) Z {
	z, ok := ToZ(x, y)
	if !ok {
		panic(fmt.Errorf(`cannot make Z out of %v and %v`, x, y))
	}
	return z
}

// FromTileIndex is ToZ for signed tile indices, which are not ok when negative.
func FromTileIndex(x, y int) (Z, bool) {
	if x < 0 || y < 0 {
		return 0, false
	}
	return ToZ(uint(x), uint(y))
}

func FromZ(z Z) (x, y uint) {
	x = z
	y = z >> 1
	for i := 0; i <= 5; i++ {
		x = (x | (x >> powersOfTwo[i])) & masks[i]
		y = (y | (y >> powersOfTwo[i])) & masks[i]
	}
	return x, y
}

// Quadkey writes z as zoom base 4 digits, most significant first.
func Quadkey(z Z, zoom uint) string {
	var sb strings.Builder
	sb.Grow(int(zoom))
	for i := int(zoom) - 1; i >= 0; i-- {
		sb.WriteByte(byte('0' + (z>>(2*uint(i)))&3))
	}
	return sb.String()
}
