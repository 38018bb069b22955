package miner

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/internal/chain"
	"github.com/trinitychain/trinitychain/internal/consensus"
	"github.com/trinitychain/trinitychain/internal/mempool"
	"github.com/trinitychain/trinitychain/internal/storage"
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/crypto"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

func newTestAddress(t *testing.T) (*crypto.PrivateKey, types.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key, crypto.AddressFromPubKey(key.PublicKey())
}

// newTestChain wires a fresh in-memory chain with genesis installed,
// mirroring internal/chain's own test helper since the miner must be
// exercised against a real *chain.Chain to prove out wiring end to end.
func newTestChain(t *testing.T, beneficiary types.Address) (*chain.Chain, *config.Genesis, *consensus.PoW) {
	t.Helper()
	params := config.TestParams()
	pow, err := consensus.NewPoW(1, params.DifficultyWindow, params.TargetBlockTime, params.MinDifficulty)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}

	gen := &config.Genesis{
		ChainID:     "trinitychain-miner-test",
		ChainName:   "Miner Test Chain",
		Timestamp:   1700000000,
		Beneficiary: beneficiary,
		RewardArea:  geometry.FromInt(50),
		Difficulty:  pow.InitialDifficulty,
		Params:      params,
	}

	db := storage.NewMemory()
	pool := mempool.New(utxo.NewStore(db), params.MempoolCapacity, params.MaxSubdivisionDepth)
	ch, err := chain.New(db, params, pow, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ch.InitGenesis(gen); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	return ch, gen, pow
}

func TestProduceBlock_ExtendsGenesis(t *testing.T) {
	_, beneficiary := newTestAddress(t)
	ch, gen, pow := newTestChain(t, beneficiary)

	m := New(ch, pow, ch.Pool(), beneficiary)
	blk, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock: %v", err)
	}

	genesisTip, _ := ch.GetTip()
	if blk.Header.Height != 1 {
		t.Errorf("height = %d, want 1", blk.Header.Height)
	}
	if blk.Header.PreviousHash != genesisTip.Hash() {
		t.Error("PreviousHash should match the genesis tip")
	}
	if len(blk.Transactions) != 1 || !blk.Transactions[0].IsCoinbase() {
		t.Fatalf("expected exactly one coinbase transaction")
	}

	coinbase := blk.Transactions[0].Coinbase
	wantReward := gen.Params.BlockReward(1)
	if coinbase.Output.Area() != wantReward {
		t.Errorf("coinbase area = %d, want %d", coinbase.Output.Area(), wantReward)
	}
	if coinbase.Beneficiary != beneficiary {
		t.Errorf("coinbase beneficiary = %s, want %s", coinbase.Beneficiary, beneficiary)
	}

	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Errorf("mined block should satisfy VerifyHeader: %v", err)
	}
	if err := ch.SubmitBlock(blk); err != nil {
		t.Fatalf("mined block should be accepted by the chain: %v", err)
	}
}

func TestProduceBlock_IncludesMempoolTransactionAndFee(t *testing.T) {
	_, beneficiary := newTestAddress(t)
	ch, gen, pow := newTestChain(t, beneficiary)
	m := New(ch, pow, ch.Pool(), beneficiary)

	// Height 1: mine a block paying spenderAddr so it has a spendable UTXO.
	spenderKey, spenderAddr := newTestAddress(t)
	_, recipientAddr := newTestAddress(t)
	cbMiner := New(ch, pow, ch.Pool(), spenderAddr)
	blk1, err := cbMiner.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock height 1: %v", err)
	}
	if err := ch.SubmitBlock(blk1); err != nil {
		t.Fatalf("SubmitBlock height 1: %v", err)
	}

	triangle := blk1.Transactions[0].Coinbase.Output
	fee := geometry.FromInt(1)
	transfer, err := tx.BuildTransfer(spenderKey, triangle.Hash(), recipientAddr, triangle.Area().Sub(fee), fee, 0, nil)
	if err != nil {
		t.Fatalf("BuildTransfer: %v", err)
	}
	if _, err := ch.SubmitTransaction(tx.NewTransfer(transfer)); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	// Height 2: the miner should drain the transfer and mint reward + fee.
	blk2, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock height 2: %v", err)
	}
	if len(blk2.Transactions) != 2 {
		t.Fatalf("expected coinbase + transfer, got %d txs", len(blk2.Transactions))
	}
	if !blk2.Transactions[0].IsCoinbase() || blk2.Transactions[1].IsCoinbase() {
		t.Fatal("coinbase must be first and the only coinbase")
	}

	wantArea := gen.Params.BlockReward(2).Add(fee)
	gotArea := blk2.Transactions[0].Coinbase.Output.Area()
	if gotArea != wantArea {
		t.Errorf("coinbase area = %d, want reward(2)+fee = %d", gotArea, wantArea)
	}

	if err := ch.SubmitBlock(blk2); err != nil {
		t.Fatalf("mined block with mempool tx should be accepted: %v", err)
	}
	state := ch.State()
	if state.Height != 2 {
		t.Errorf("height after second block = %d, want 2", state.Height)
	}
}

func TestProduceBlock_OrdersSelectedTransactionsByHashAscending(t *testing.T) {
	_, beneficiary := newTestAddress(t)
	ch, _, pow := newTestChain(t, beneficiary)

	spenderAKey, spenderA := newTestAddress(t)
	spenderBKey, spenderB := newTestAddress(t)
	_, recipient := newTestAddress(t)

	fundingMiner := New(ch, pow, ch.Pool(), spenderA)
	blk1, err := fundingMiner.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock height 1: %v", err)
	}
	if err := ch.SubmitBlock(blk1); err != nil {
		t.Fatalf("SubmitBlock height 1: %v", err)
	}
	triA := blk1.Transactions[0].Coinbase.Output

	fundingMiner2 := New(ch, pow, ch.Pool(), spenderB)
	blk2, err := fundingMiner2.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock height 2: %v", err)
	}
	if err := ch.SubmitBlock(blk2); err != nil {
		t.Fatalf("SubmitBlock height 2: %v", err)
	}
	triB := blk2.Transactions[0].Coinbase.Output

	transferA, err := tx.BuildTransfer(spenderAKey, triA.Hash(), recipient, triA.Area(), 0, 0, nil)
	if err != nil {
		t.Fatalf("BuildTransfer A: %v", err)
	}
	transferB, err := tx.BuildTransfer(spenderBKey, triB.Hash(), recipient, triB.Area(), 0, 0, nil)
	if err != nil {
		t.Fatalf("BuildTransfer B: %v", err)
	}
	if _, err := ch.SubmitTransaction(tx.NewTransfer(transferA)); err != nil {
		t.Fatalf("SubmitTransaction A: %v", err)
	}
	if _, err := ch.SubmitTransaction(tx.NewTransfer(transferB)); err != nil {
		t.Fatalf("SubmitTransaction B: %v", err)
	}

	m := New(ch, pow, ch.Pool(), beneficiary)
	blk3, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock height 3: %v", err)
	}
	if len(blk3.Transactions) != 3 {
		t.Fatalf("expected coinbase + 2 transfers, got %d", len(blk3.Transactions))
	}

	h1, err := blk3.Transactions[1].Hash()
	if err != nil {
		t.Fatalf("hash tx 1: %v", err)
	}
	h2, err := blk3.Transactions[2].Hash()
	if err != nil {
		t.Fatalf("hash tx 2: %v", err)
	}
	if bytes.Compare(h1[:], h2[:]) >= 0 {
		t.Error("non-coinbase transactions should be ordered by ascending hash")
	}

	if err := ch.SubmitBlock(blk3); err != nil {
		t.Fatalf("mined block should be accepted: %v", err)
	}
}

func TestProduceBlock_CancelledContext(t *testing.T) {
	_, beneficiary := newTestAddress(t)
	ch, _, pow := newTestChain(t, beneficiary)
	m := New(ch, pow, ch.Pool(), beneficiary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.ProduceBlock(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ProduceBlock with cancelled context = %v, want context.Canceled", err)
	}
}
