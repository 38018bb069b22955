// Package miner implements TrinityChain's block producer: candidate block
// assembly, mempool draining onto a scratch UTXO, and delegation to
// consensus.PoW for nonce search with cooperative cancellation (spec.md
// §4.7).
package miner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/internal/chain"
	"github.com/trinitychain/trinitychain/internal/consensus"
	"github.com/trinitychain/trinitychain/internal/log"
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// ChainView is the narrow read-only slice of *chain.Chain the miner
// needs to assemble a candidate block: it never takes the chain's write
// lock and never sees a partially-applied state, since Chain.State and
// Chain.UTXOProvider always reflect a fully-committed tip.
type ChainView interface {
	State() chain.State
	UTXOProvider() utxo.Set
	Params() config.Params
	GetBlockByHeight(height uint64) (*block.Block, error)
}

// MempoolSource selects candidate transactions for block inclusion,
// already ordered by fee descending with conflicts resolved.
type MempoolSource interface {
	DrainForBlock(maxCount int) []*tx.Transaction
}

// maxExtraNonceAttempts bounds coinbase-collision / nonce-exhaustion
// retries (spec.md §4.7 step 6) so a pathological UTXO set can't spin the
// miner forever; in practice a single collision is already astronomically
// unlikely.
const maxExtraNonceAttempts = 1 << 20

// Miner produces candidate blocks ready for Chain.SubmitBlock.
type Miner struct {
	chain       ChainView
	pow         *consensus.PoW
	pool        MempoolSource
	beneficiary types.Address
}

// New wires a miner around a chain view, a PoW engine, a mempool source,
// and the address that should receive newly minted triangles.
func New(chain ChainView, pow *consensus.PoW, pool MempoolSource, beneficiary types.Address) *Miner {
	return &Miner{chain: chain, pow: pow, pool: pool, beneficiary: beneficiary}
}

// ProduceBlock builds, simulates, and seals a new candidate block atop the
// current tip, returning once either a valid block is found or ctx is
// cancelled. The caller is responsible for submitting the result via
// Chain.SubmitBlock; ProduceBlock never mutates chain state itself.
func (m *Miner) ProduceBlock(ctx context.Context) (*block.Block, error) {
	state := m.chain.State()
	params := m.chain.Params()
	height := state.Height + 1

	timestamp := time.Now().Unix()
	if timestamp <= state.TipTimestamp {
		timestamp = state.TipTimestamp + 1
	}

	base := m.chain.UTXOProvider()
	reward := params.BlockReward(height)
	difficulty := m.pow.ExpectedDifficulty(height, state.Difficulty, func(h uint64) (int64, error) {
		blk, err := m.chain.GetBlockByHeight(h)
		if err != nil {
			return 0, err
		}
		return blk.Header.Timestamp, nil
	})

	for attempt := 0; attempt < maxExtraNonceAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		extraNonce := uint64(attempt)
		blk, err := m.assembleCandidate(base, height, state.TipHash, timestamp, difficulty, extraNonce, reward)
		if err != nil {
			return nil, fmt.Errorf("assemble candidate: %w", err)
		}
		if blk == nil {
			// Coinbase hash collided with a live UTXO; roll extra_nonce.
			continue
		}

		if err := m.pow.SealWithCancel(ctx, blk); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			// Nonce space exhausted under this header: reroll extra_nonce
			// and Merkle root and try again, per spec.md §4.7 step 6.
			log.Miner.Debug().Err(err).Uint64("extra_nonce", extraNonce).Msg("seal failed, rerolling extra_nonce")
			continue
		}
		return blk, nil
	}
	return nil, fmt.Errorf("exhausted %d extra_nonce attempts without finding a valid block", maxExtraNonceAttempts)
}

// assembleCandidate drains the mempool, simulates every selected
// transaction onto a scratch overlay of base (dropping any that fail),
// mints the coinbase for height+extraNonce+reward+fees, and returns an
// unsealed block. It returns (nil, nil) if the coinbase output collides
// with an existing UTXO, signalling the caller to retry with a fresh
// extra_nonce.
func (m *Miner) assembleCandidate(base utxo.Set, height uint64, tipHash types.Hash, timestamp int64, difficulty uint64, extraNonce uint64, reward geometry.Coord) (*block.Block, error) {
	params := m.chain.Params()
	scratch := newScratchSet(base)

	var selected []*tx.Transaction
	if m.pool != nil {
		limit := params.MaxTxsPerBlock - 1 // reserve a slot for the coinbase
		selected = m.pool.DrainForBlock(limit)
	}

	type selectedTx struct {
		transaction *tx.Transaction
		hash        types.Hash
	}
	var totalFees geometry.Coord
	applied := make([]selectedTx, 0, len(selected))
	for _, transaction := range selected {
		fee, err := transaction.ValidateWithUTXOs(scratch, params.MaxSubdivisionDepth)
		if err != nil {
			log.Miner.Debug().Err(err).Msg("dropping mempool transaction from candidate block")
			continue
		}
		hash, err := transaction.Hash()
		if err != nil {
			log.Miner.Debug().Err(err).Msg("dropping mempool transaction from candidate block")
			continue
		}
		if _, err := utxo.Apply(scratch, transaction); err != nil {
			log.Miner.Debug().Err(err).Msg("dropping mempool transaction from candidate block")
			continue
		}
		totalFees = totalFees.Add(fee)
		applied = append(applied, selectedTx{transaction: transaction, hash: hash})
	}

	// Canonical tx ordering (pkg/block/validate.go): every non-coinbase
	// transaction from index 1 on must be strictly ascending by hash.
	sort.Slice(applied, func(i, j int) bool {
		return bytes.Compare(applied[i].hash[:], applied[j].hash[:]) < 0
	})

	output := geometry.CoinbaseTriangle(height, extraNonce, reward.Add(totalFees), m.beneficiary)
	if _, exists := scratch.GetUTXO(output.Hash()); exists {
		return nil, nil
	}

	coinbase := tx.NewCoinbase(&tx.Coinbase{
		Output:      output,
		Beneficiary: m.beneficiary,
		BlockHeight: height,
		ExtraNonce:  extraNonce,
	})

	coinbaseHash, err := coinbase.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash coinbase: %w", err)
	}

	txs := make([]*tx.Transaction, 0, 1+len(applied))
	hashes := make([]types.Hash, 0, 1+len(applied))
	txs = append(txs, coinbase)
	hashes = append(hashes, coinbaseHash)
	for _, s := range applied {
		txs = append(txs, s.transaction)
		hashes = append(hashes, s.hash)
	}

	header := &block.Header{
		Height:       height,
		PreviousHash: tipHash,
		Timestamp:    timestamp,
		Difficulty:   difficulty,
		MerkleRoot:   block.ComputeMerkleRoot(hashes),
	}

	return block.NewBlock(header, txs), nil
}
