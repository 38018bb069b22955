package chain

import (
	"testing"

	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// buildBranch mines a chain of n blocks extending from start, each with a
// single coinbase paying beneficiary, using extraNonce to keep the branch's
// block hashes distinct from any sibling branch built with a different one.
func buildBranch(t *testing.T, ch *Chain, n int, start types.Hash, startHeight uint64, startTimestamp int64, blockTime uint64, difficulty uint64, extraNonce uint64, reward geometry.Coord, beneficiary types.Address) []*block.Block {
	t.Helper()
	blocks := make([]*block.Block, 0, n)
	prevHash := start
	height := startHeight
	timestamp := startTimestamp
	for i := 0; i < n; i++ {
		height++
		timestamp += int64(blockTime)
		cb := coinbaseTx(height, extraNonce, reward, beneficiary)
		blk := mineBlock(t, ch.pow, height, prevHash, timestamp, difficulty, []*tx.Transaction{cb})
		blocks = append(blocks, blk)
		prevHash = blk.Hash()
	}
	return blocks
}

func TestReorg_ShorterForkDoesNotDisplaceTip(t *testing.T) {
	ch, gen, _ := newTestChain(t)
	genesisTip, _ := ch.GetTip()

	_, addrA := newTestAddress(t)
	canonical := buildBranch(t, ch, 2, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 0, gen.Params.BlockReward(1), addrA)
	for _, blk := range canonical {
		if err := ch.SubmitBlock(blk); err != nil {
			t.Fatalf("submit canonical block %d: %v", blk.Header.Height, err)
		}
	}

	_, addrB := newTestAddress(t)
	fork := buildBranch(t, ch, 1, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 1, gen.Params.BlockReward(1), addrB)
	if err := ch.SubmitBlock(fork[0]); err != nil {
		t.Fatalf("submit fork block: %v", err)
	}

	state := ch.State()
	if state.Height != 2 || state.TipHash != canonical[1].Hash() {
		t.Fatalf("lighter fork should not become canonical: height=%d tip=%s", state.Height, state.TipHash)
	}

	// The fork block is still retrievable (stored, just not canonical).
	if _, err := ch.GetBlockByHash(fork[0].Hash()); err != nil {
		t.Errorf("GetBlockByHash(fork block): %v", err)
	}
}

func TestReorg_EqualWorkKeepsIncumbent(t *testing.T) {
	ch, gen, _ := newTestChain(t)
	genesisTip, _ := ch.GetTip()

	_, addrA := newTestAddress(t)
	canonical := buildBranch(t, ch, 2, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 0, gen.Params.BlockReward(1), addrA)
	for _, blk := range canonical {
		if err := ch.SubmitBlock(blk); err != nil {
			t.Fatalf("submit canonical block %d: %v", blk.Header.Height, err)
		}
	}

	_, addrB := newTestAddress(t)
	fork := buildBranch(t, ch, 2, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 1, gen.Params.BlockReward(1), addrB)
	for _, blk := range fork {
		if err := ch.SubmitBlock(blk); err != nil {
			t.Fatalf("submit fork block %d: %v", blk.Header.Height, err)
		}
	}

	state := ch.State()
	if state.TipHash != canonical[1].Hash() {
		t.Fatalf("equal-work fork should not displace the incumbent tip: tip=%s", state.TipHash)
	}
}

func TestReorg_HeavierForkBecomesCanonical(t *testing.T) {
	ch, gen, _ := newTestChain(t)
	genesisTip, _ := ch.GetTip()

	_, addrA := newTestAddress(t)
	canonical := buildBranch(t, ch, 2, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 0, gen.Params.BlockReward(1), addrA)
	for _, blk := range canonical {
		if err := ch.SubmitBlock(blk); err != nil {
			t.Fatalf("submit canonical block %d: %v", blk.Header.Height, err)
		}
	}

	_, addrB := newTestAddress(t)
	fork := buildBranch(t, ch, 3, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 1, gen.Params.BlockReward(1), addrB)
	for i, blk := range fork {
		if err := ch.SubmitBlock(blk); err != nil {
			t.Fatalf("submit fork block %d: %v", i, err)
		}
	}

	state := ch.State()
	if state.Height != 3 {
		t.Fatalf("height after reorg = %d, want 3", state.Height)
	}
	if state.TipHash != fork[2].Hash() {
		t.Fatalf("tip after reorg = %s, want %s", state.TipHash, fork[2].Hash())
	}

	// The new canonical chain's height index should resolve to fork blocks.
	got1, err := ch.GetBlockByHeight(1)
	if err != nil {
		t.Fatalf("GetBlockByHeight(1): %v", err)
	}
	if got1.Hash() != fork[0].Hash() {
		t.Error("height 1 should now resolve to the winning fork's first block")
	}

	// Displaced canonical blocks are still retrievable by hash.
	if _, err := ch.GetBlockByHash(canonical[0].Hash()); err != nil {
		t.Errorf("GetBlockByHash(displaced block): %v", err)
	}

	// The displaced chain's coinbase UTXOs should no longer be present.
	for _, blk := range canonical {
		out := blk.Transactions[0].Coinbase.Output
		if _, ok := ch.GetUTXO(out.Hash()); ok {
			t.Errorf("displaced coinbase UTXO %s should have been undone", out.Hash())
		}
	}

	// The winning chain's coinbase UTXOs should be present.
	for _, blk := range fork {
		out := blk.Transactions[0].Coinbase.Output
		if _, ok := ch.GetUTXO(out.Hash()); !ok {
			t.Errorf("winning coinbase UTXO %s should be present after reorg", out.Hash())
		}
	}
}

func TestFindCommonAncestor_Genesis(t *testing.T) {
	ch, gen, _ := newTestChain(t)
	genesisTip, _ := ch.GetTip()

	_, addrA := newTestAddress(t)
	branchA := buildBranch(t, ch, 1, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 0, gen.Params.BlockReward(1), addrA)
	if err := ch.SubmitBlock(branchA[0]); err != nil {
		t.Fatalf("submit branchA: %v", err)
	}

	_, addrB := newTestAddress(t)
	branchB := buildBranch(t, ch, 1, genesisTip.Hash(), 0, genesisTip.Timestamp, gen.Params.TargetBlockTime, ch.pow.InitialDifficulty, 1, gen.Params.BlockReward(1), addrB)
	if err := ch.store.StoreBlock(branchB[0]); err != nil {
		t.Fatalf("StoreBlock: %v", err)
	}

	ancestorHash, ancestorHeight, err := ch.findCommonAncestor(ch.state.TipHash, branchB[0].Hash())
	if err != nil {
		t.Fatalf("findCommonAncestor: %v", err)
	}
	if ancestorHeight != 0 || ancestorHash != genesisTip.Hash() {
		t.Fatalf("common ancestor = (%s, %d), want (%s, 0)", ancestorHash, ancestorHeight, genesisTip.Hash())
	}
}
