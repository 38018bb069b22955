package geometry

import (
	"crypto/sha256"

	"github.com/trinitychain/trinitychain/pkg/types"
)

// Point is a vertex in the fixed-point plane.
type Point struct {
	X, Y Coord
}

// Equal reports bit-exact equality of both coordinates.
func (p Point) Equal(o Point) bool {
	return p.X == o.X && p.Y == o.Y
}

// Hash returns SHA-256(x_le || y_le), the canonical per-vertex hash used
// to build a triangle's vertex-order-independent hash.
func (p Point) Hash() types.Hash {
	var buf [CoordSize * 2]byte
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	copy(buf[:CoordSize], xb[:])
	copy(buf[CoordSize:], yb[:])
	return sha256.Sum256(buf[:])
}

// Midpoint2D returns the fixed-point midpoint of p and q, each coordinate
// computed with an arithmetic right shift (never divide-with-rounding).
func Midpoint2D(p, q Point) Point {
	return Point{X: Midpoint(p.X, q.X), Y: Midpoint(p.Y, q.Y)}
}
