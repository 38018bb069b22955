package geometry

import (
	"testing"

	"github.com/trinitychain/trinitychain/pkg/types"
)

func rightTriangle(base, height int64) Triangle {
	return Triangle{
		A: Point{X: 0, Y: 0},
		B: Point{X: FromInt(base), Y: 0},
		C: Point{X: 0, Y: FromInt(height)},
	}
}

func TestTriangle_Area(t *testing.T) {
	tri := rightTriangle(4, 3)
	want := FromInt(6) // 1/2 * 4 * 3
	if got := tri.Area(); got != want {
		t.Fatalf("Area() = %d, want %d", got, want)
	}
}

func TestTriangle_AreaIndependentOfWinding(t *testing.T) {
	tri := rightTriangle(4, 3)
	reversed := Triangle{A: tri.C, B: tri.B, C: tri.A}
	if tri.Area() != reversed.Area() {
		t.Fatalf("area should not depend on vertex winding: %d vs %d", tri.Area(), reversed.Area())
	}
}

func TestTriangle_HashInvariantUnderPermutation(t *testing.T) {
	tri := rightTriangle(4, 3)
	perm := Triangle{A: tri.B, B: tri.C, C: tri.A}
	if tri.Hash() != perm.Hash() {
		t.Fatalf("canonical hash must be invariant under vertex permutation")
	}
}

func TestTriangle_IsValid(t *testing.T) {
	tests := []struct {
		name string
		tri  Triangle
		want bool
	}{
		{"valid right triangle", rightTriangle(4, 3), true},
		{"degenerate repeated vertex", Triangle{A: Point{0, 0}, B: Point{0, 0}, C: Point{FromInt(1), 0}}, false},
		{"degenerate collinear", Triangle{A: Point{0, 0}, B: Point{FromInt(1), 0}, C: Point{FromInt(2), 0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tri.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriangle_SubdivideConservesThreeQuarters(t *testing.T) {
	tri := rightTriangle(32, 32) // area = 512
	var owner types.Address
	owner[0] = 0x01

	children := tri.Subdivide(owner)

	var sum Coord
	for _, c := range children {
		if !c.IsValid() {
			t.Fatalf("child %+v is degenerate", c)
		}
		sum = sum.Add(c.Area())
	}

	want := tri.Area().Mul(FromInt(3)).Half().Half() // *3/4
	if sum != want {
		t.Fatalf("children area sum = %d, want %d (3/4 of parent)", sum, want)
	}
}

func TestTriangle_SubdivideSetsParentHashAndDepth(t *testing.T) {
	tri := rightTriangle(8, 8)
	tri.SubdivisionDepth = 2
	var owner types.Address
	owner[1] = 0x02

	children := tri.Subdivide(owner)
	parentHash := tri.Hash()

	for i, c := range children {
		if c.ParentHash == nil || *c.ParentHash != parentHash {
			t.Fatalf("child %d parent hash mismatch", i)
		}
		if c.SubdivisionDepth != 3 {
			t.Fatalf("child %d depth = %d, want 3", i, c.SubdivisionDepth)
		}
		if c.Owner != owner {
			t.Fatalf("child %d owner = %x, want %x (children take caller's owner, not parent's)", i, c.Owner, owner)
		}
	}
}

func TestCoinbaseTriangle_AreaMatchesReward(t *testing.T) {
	var beneficiary types.Address
	beneficiary[0] = 0xaa

	reward := FromInt(50)
	tri := CoinbaseTriangle(100, 0, reward, beneficiary)

	if !tri.IsValid() {
		t.Fatal("coinbase triangle must be non-degenerate")
	}
	if got := tri.Area(); got != reward {
		t.Fatalf("coinbase area = %d, want %d", got, reward)
	}
}

func TestCoinbaseTriangle_ExtraNonceChangesHashNotArea(t *testing.T) {
	var beneficiary types.Address
	reward := FromInt(25)

	t1 := CoinbaseTriangle(10, 0, reward, beneficiary)
	t2 := CoinbaseTriangle(10, 1, reward, beneficiary)

	if t1.Hash() == t2.Hash() {
		t.Fatal("distinct extra_nonce values must change the canonical hash")
	}
	if t1.Area() != t2.Area() || t1.Area() != reward {
		t.Fatal("extra_nonce must not perturb the reward area")
	}
}
