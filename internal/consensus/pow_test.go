package consensus

import (
	"math/big"
	"testing"

	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/crypto"
	"github.com/trinitychain/trinitychain/pkg/types"
)

func TestNewPoW_ZeroDifficulty(t *testing.T) {
	_, err := NewPoW(0, 0, 3, 1)
	if err != ErrZeroDifficulty {
		t.Fatalf("NewPoW(0) err = %v, want ErrZeroDifficulty", err)
	}
}

func TestPoW_Target(t *testing.T) {
	t1 := target(1)
	if t1.Cmp(maxTarget) != 0 {
		t.Fatalf("target(1) = %s, want maxTarget", t1)
	}

	t2 := target(2)
	halfMax := new(big.Int).Div(maxTarget, big.NewInt(2))
	if t2.Cmp(halfMax) != 0 {
		t.Fatalf("target(2) = %s, want %s", t2, halfMax)
	}
}

func TestPoW_SealAndVerify(t *testing.T) {
	pow, err := NewPoW(1, 0, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{
		Height:       1,
		PreviousHash: types.Hash{},
		MerkleRoot:   types.Hash{1, 2, 3},
		Timestamp:    1000,
		Difficulty:   1,
	}

	blk := block.NewBlock(header, nil)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after Seal: %v", err)
	}
}

func TestPoW_VerifyHeader_Rejects(t *testing.T) {
	pow, err := NewPoW(1, 0, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{
		Height:     1,
		MerkleRoot: types.Hash{1, 2, 3},
		Timestamp:  1000,
		Difficulty: ^uint64(0),
		Nonce:      42,
	}

	err = pow.VerifyHeader(header)
	if err != ErrInsufficientWork {
		t.Fatalf("VerifyHeader with max difficulty = %v, want ErrInsufficientWork", err)
	}
}

func TestPoW_VerifyHeader_ZeroDifficulty(t *testing.T) {
	pow, err := NewPoW(1, 0, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{Height: 1, Difficulty: 0}
	err = pow.VerifyHeader(header)
	if err != ErrZeroDifficulty {
		t.Fatalf("VerifyHeader(difficulty=0) = %v, want ErrZeroDifficulty", err)
	}
}

func TestPoW_SealModerateDifficulty(t *testing.T) {
	pow, err := NewPoW(256, 0, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	header := &block.Header{
		Height:     5,
		MerkleRoot: types.Hash{0xDE, 0xAD},
		Timestamp:  12345,
		Difficulty: 256,
	}
	blk := block.NewBlock(header, nil)

	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader: %v", err)
	}

	hash := crypto.Hash(blk.Header.SigningBytes())
	hashInt := new(big.Int).SetBytes(hash[:])
	tgt := target(256)
	if hashInt.Cmp(tgt) > 0 {
		t.Fatalf("hash %s > target %s", hashInt, tgt)
	}
}

func TestPoW_SealParallel(t *testing.T) {
	pow, err := NewPoW(256, 0, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	pow.Threads = 4

	header := &block.Header{
		Height:     7,
		MerkleRoot: types.Hash{0xBE, 0xEF},
		Timestamp:  999,
		Difficulty: 256,
	}
	blk := block.NewBlock(header, nil)

	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal (parallel): %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader: %v", err)
	}
}

func TestPoW_Prepare_SetsDifficulty(t *testing.T) {
	pow, _ := NewPoW(42, 0, 3, 1)
	header := &block.Header{Height: 1, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Difficulty != 42 {
		t.Fatalf("Prepare set difficulty = %d, want 42", header.Difficulty)
	}
}

func TestPoW_Prepare_UsesDifficultyFn(t *testing.T) {
	pow, _ := NewPoW(10, 0, 3, 1)
	pow.DifficultyFn = func(height uint64) uint64 {
		return height * 100
	}

	header := &block.Header{Height: 5, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Difficulty != 500 {
		t.Fatalf("Prepare with DifficultyFn set difficulty = %d, want 500", header.Difficulty)
	}
}

// ── Difficulty adjustment tests ──────────────────────────────────────

func TestCalcNextDifficulty_ExactTarget(t *testing.T) {
	got := CalcNextDifficulty(1000, 600, 600, 1)
	if got != 1000 {
		t.Fatalf("CalcNextDifficulty(exact) = %d, want 1000", got)
	}
}

func TestCalcNextDifficulty_TooFast(t *testing.T) {
	got := CalcNextDifficulty(1000, 300, 600, 1)
	if got != 2000 {
		t.Fatalf("CalcNextDifficulty(2x fast) = %d, want 2000", got)
	}
}

func TestCalcNextDifficulty_TooSlow(t *testing.T) {
	got := CalcNextDifficulty(1000, 1200, 600, 1)
	if got != 500 {
		t.Fatalf("CalcNextDifficulty(2x slow) = %d, want 500", got)
	}
}

func TestCalcNextDifficulty_ClampUp(t *testing.T) {
	// actual=60, expected=600 → clamped actual to 600/4=150, newDiff=1000*600/150=4000.
	got := CalcNextDifficulty(1000, 60, 600, 1)
	if got != 4000 {
		t.Fatalf("CalcNextDifficulty(clamp up) = %d, want 4000", got)
	}
}

func TestCalcNextDifficulty_ClampDown(t *testing.T) {
	// actual=6000, expected=600 → clamped actual to 600*4=2400, newDiff=1000*600/2400=250.
	got := CalcNextDifficulty(1000, 6000, 600, 1)
	if got != 250 {
		t.Fatalf("CalcNextDifficulty(clamp down) = %d, want 250", got)
	}
}

func TestCalcNextDifficulty_RoundsHalfUp(t *testing.T) {
	// old=3, expected=1, actual=2 → 3*1/2 = 1.5 → rounds to 2 (half toward +inf).
	got := CalcNextDifficulty(3, 2, 1, 1)
	if got != 2 {
		t.Fatalf("CalcNextDifficulty(half-up) = %d, want 2", got)
	}
}

func TestCalcNextDifficulty_FloorsMinDifficulty(t *testing.T) {
	got := CalcNextDifficulty(1, 10000, 10, 5)
	if got != 5 {
		t.Fatalf("CalcNextDifficulty(floor) = %d, want 5", got)
	}
}

func TestPoW_ShouldAdjust(t *testing.T) {
	pow, _ := NewPoW(1, 10, 3, 1)

	tests := []struct {
		height uint64
		want   bool
	}{
		{8, false},
		{9, true},  // height+1 == 10
		{10, false},
		{19, true}, // height+1 == 20
	}
	for _, tt := range tests {
		got := pow.ShouldAdjust(tt.height)
		if got != tt.want {
			t.Errorf("ShouldAdjust(%d) = %v, want %v", tt.height, got, tt.want)
		}
	}

	pow0, _ := NewPoW(1, 0, 3, 1)
	if pow0.ShouldAdjust(9) {
		t.Error("ShouldAdjust with window=0 should be false")
	}
}

func TestPoW_ExpectedDifficulty(t *testing.T) {
	pow, _ := NewPoW(100, 10, 3, 1) // Retarget every 10 blocks, target 3s/block.

	if got := pow.ExpectedDifficulty(0, 0, nil); got != 100 {
		t.Fatalf("ExpectedDifficulty(0) = %d, want 100", got)
	}

	if got := pow.ExpectedDifficulty(5, 200, nil); got != 200 {
		t.Fatalf("ExpectedDifficulty(5, prev=200) = %d, want 200", got)
	}

	// Height 10 means height-1=9, and (9+1)%10==0, so this is a retarget boundary.
	getTS := func(h uint64) (int64, error) {
		if h == 0 {
			return 0, nil
		}
		return 30, nil
	}
	if got := pow.ExpectedDifficulty(10, 200, getTS); got != 200 {
		t.Fatalf("ExpectedDifficulty(10, exact) = %d, want 200", got)
	}

	getFastTS := func(h uint64) (int64, error) {
		if h == 0 {
			return 0, nil
		}
		return 15, nil
	}
	if got := pow.ExpectedDifficulty(10, 200, getFastTS); got != 400 {
		t.Fatalf("ExpectedDifficulty(10, 2x fast) = %d, want 400", got)
	}
}

func TestPoW_VerifyDifficulty(t *testing.T) {
	pow, _ := NewPoW(100, 10, 3, 1)

	header := &block.Header{Height: 0, Difficulty: 100}
	if err := pow.VerifyDifficulty(header, 0, nil); err != nil {
		t.Fatalf("VerifyDifficulty(height=0, diff=100) = %v, want nil", err)
	}

	header2 := &block.Header{Height: 5, Difficulty: 200}
	if err := pow.VerifyDifficulty(header2, 200, nil); err != nil {
		t.Fatalf("VerifyDifficulty(height=5, diff=200) = %v, want nil", err)
	}

	header3 := &block.Header{Height: 5, Difficulty: 999}
	if err := pow.VerifyDifficulty(header3, 200, nil); err == nil {
		t.Fatal("VerifyDifficulty(height=5, diff=999) = nil, want error")
	}
}
