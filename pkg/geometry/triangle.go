package geometry

import (
	"crypto/sha256"
	"sort"

	"github.com/trinitychain/trinitychain/pkg/types"
)

// Triangle is a UTXO: a planar triangle whose Shoelace-formula area is its
// spendable value. Two records with the same canonical Hash can never
// coexist in a UTXO set.
type Triangle struct {
	A, B, C Point

	// Owner is the address allowed to spend this triangle. It is metadata,
	// not part of the canonical hash: a Transfer changes Owner in place
	// without altering the triangle's identity.
	Owner types.Address

	// ParentHash is the hash of the triangle this one was produced from by
	// Subdivision, or nil for a coinbase-minted triangle.
	ParentHash *types.Hash

	// SubdivisionDepth counts how many Subdivisions separate this triangle
	// from its coinbase ancestor.
	SubdivisionDepth uint8
}

// twiceAreaSigned computes 2*area with sign, via the Shoelace formula,
// entirely in fixed-point arithmetic with a widened multiply.
func (t Triangle) twiceAreaSigned() Coord {
	// 2*area = a.x*(b.y-c.y) + b.x*(c.y-a.y) + c.x*(a.y-b.y)
	t1 := t.A.X.Mul(t.B.Y.Sub(t.C.Y))
	t2 := t.B.X.Mul(t.C.Y.Sub(t.A.Y))
	t3 := t.C.X.Mul(t.A.Y.Sub(t.B.Y))
	return t1.Add(t2).Add(t3)
}

// Area returns the Shoelace-formula area as a non-negative Coord.
func (t Triangle) Area() Coord {
	return t.twiceAreaSigned().Abs().Half()
}

// IsValid reports whether the triangle is non-degenerate: all three
// vertices distinct and a strictly positive area at Coord resolution.
func (t Triangle) IsValid() bool {
	if t.A.Equal(t.B) || t.B.Equal(t.C) || t.C.Equal(t.A) {
		return false
	}
	return t.twiceAreaSigned() != 0
}

// AppendVertices appends the little-endian wire encoding of the three
// vertices (A.X, A.Y, B.X, B.Y, C.X, C.Y — 48 bytes) to dst. This is the
// only part of a Triangle that is wire-encoded inside a transaction:
// Owner, ParentHash, and SubdivisionDepth are either carried separately
// by the enclosing transaction variant or are deterministic consequences
// of applying it, so encoding them again would be redundant.
func (t Triangle) AppendVertices(dst []byte) []byte {
	dst = t.A.X.AppendLE(dst)
	dst = t.A.Y.AppendLE(dst)
	dst = t.B.X.AppendLE(dst)
	dst = t.B.Y.AppendLE(dst)
	dst = t.C.X.AppendLE(dst)
	dst = t.C.Y.AppendLE(dst)
	return dst
}

// VerticesSize is the wire length of AppendVertices's output.
const VerticesSize = CoordSize * 6

// DecodeVertices decodes the 48-byte vertex encoding produced by
// AppendVertices into the three points of a triangle, in A, B, C order.
func DecodeVertices(b []byte) (a, bb, c Point) {
	a = Point{X: CoordFromBytes(b[0:8]), Y: CoordFromBytes(b[8:16])}
	bb = Point{X: CoordFromBytes(b[16:24]), Y: CoordFromBytes(b[24:32])}
	c = Point{X: CoordFromBytes(b[32:40]), Y: CoordFromBytes(b[40:48])}
	return
}

// Hash returns the canonical, vertex-order-independent identity of the
// triangle: SHA-256 over its three vertex hashes, sorted ascending.
func (t Triangle) Hash() types.Hash {
	hashes := [3]types.Hash{t.A.Hash(), t.B.Hash(), t.C.Hash()}
	sort.Slice(hashes[:], func(i, j int) bool { return hashes[i].Less(hashes[j]) })

	var buf [types.HashSize * 3]byte
	copy(buf[0:types.HashSize], hashes[0][:])
	copy(buf[types.HashSize:2*types.HashSize], hashes[1][:])
	copy(buf[2*types.HashSize:], hashes[2][:])
	return sha256.Sum256(buf[:])
}

// Subdivide splits the triangle into three children at the edge
// midpoints, in the fixed order (A,mAB,mCA), (mAB,B,mBC), (mCA,mBC,C).
// Children inherit owner from the caller, not from the parent, and their
// combined area is exactly 3/4 of the parent's.
func (t Triangle) Subdivide(owner types.Address) [3]Triangle {
	mAB := Midpoint2D(t.A, t.B)
	mBC := Midpoint2D(t.B, t.C)
	mCA := Midpoint2D(t.C, t.A)

	parentHash := t.Hash()
	depth := t.SubdivisionDepth + 1

	return [3]Triangle{
		{A: t.A, B: mAB, C: mCA, Owner: owner, ParentHash: &parentHash, SubdivisionDepth: depth},
		{A: mAB, B: t.B, C: mBC, Owner: owner, ParentHash: &parentHash, SubdivisionDepth: depth},
		{A: mCA, B: mBC, C: t.C, Owner: owner, ParentHash: &parentHash, SubdivisionDepth: depth},
	}
}

// CoinbaseTriangle deterministically derives a coinbase output triangle
// from (height, extraNonce) whose Shoelace area equals rewardArea exactly.
// It anchors a right triangle at (height*One + extraNonce, 0) with a unit
// base, scaling the height leg so 2*area = base*h = 2*rewardArea; since
// base is One, h equals 2*rewardArea exactly (Mul by One is the identity).
// Translating the whole anchor by extraNonce changes the hash without
// changing the area, which is how the miner escapes a canonical-hash
// collision against an existing UTXO.
func CoinbaseTriangle(height, extraNonce uint64, rewardArea Coord, beneficiary types.Address) Triangle {
	ax := FromInt(int64(height)).Add(Coord(extraNonce))
	ay := Coord(0)
	h := rewardArea.Add(rewardArea)

	return Triangle{
		A:     Point{X: ax, Y: ay},
		B:     Point{X: ax.Add(One), Y: ay},
		C:     Point{X: ax, Y: ay.Add(h)},
		Owner: beneficiary,
	}
}
