package chain

import (
	"errors"
	"fmt"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/geometry"
)

// Block-level validation errors that sit above per-transaction validation
// (pkg/tx only knows about one transaction at a time; these are rules
// about the block as a whole).
var (
	ErrNoCoinbase       = errors.New("block has no coinbase transaction")
	ErrCoinbaseNotFirst = errors.New("coinbase transaction must be first")
	ErrMultipleCoinbase = errors.New("block contains more than one coinbase transaction")
	ErrCoinbaseHeight   = errors.New("coinbase block_height does not match containing block")
	ErrRewardExceeded   = errors.New("coinbase output exceeds block reward plus fees")
)

// applyBlockTransactions applies every transaction in blk to set, in
// order, enforcing the rules spec.md §4.5 step 4 places above
// per-transaction validation: exactly one coinbase, in slot 0, bound to
// height, with its minted area capped at block_reward(height) plus the
// fees collected from every other transaction in the block. It returns
// one TxUndo per transaction, in application order, so the whole block
// can be unwound by reversing the slice.
func applyBlockTransactions(set utxo.Set, blk *block.Block, height uint64, params config.Params) ([]utxo.TxUndo, error) {
	if len(blk.Transactions) == 0 {
		return nil, ErrNoCoinbase
	}
	if !blk.Transactions[0].IsCoinbase() {
		return nil, ErrCoinbaseNotFirst
	}
	for i, transaction := range blk.Transactions[1:] {
		if transaction.IsCoinbase() {
			return nil, fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	coinbase := blk.Transactions[0].Coinbase
	if coinbase.BlockHeight != height {
		return nil, fmt.Errorf("%w: block is height %d, coinbase claims %d", ErrCoinbaseHeight, height, coinbase.BlockHeight)
	}

	undos := make([]utxo.TxUndo, 0, len(blk.Transactions))
	var totalFees geometry.Coord
	for i, transaction := range blk.Transactions {
		fee, err := transaction.ValidateWithUTXOs(set, params.MaxSubdivisionDepth)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		totalFees = totalFees.Add(fee)

		txUndo, err := utxo.Apply(set, transaction)
		if err != nil {
			return nil, fmt.Errorf("tx %d: apply: %w", i, err)
		}
		undos = append(undos, txUndo)
	}

	reward := params.BlockReward(height)
	if coinbase.Output.Area() > reward.Add(totalFees) {
		return nil, fmt.Errorf("%w: minted %d, reward %d + fees %d", ErrRewardExceeded, coinbase.Output.Area(), reward, totalFees)
	}

	return undos, nil
}

// undoBlockTransactions reverses a block's TxUndos in reverse application
// order, matching how intra-block dependencies (a transaction spending an
// output created earlier in the same block) must be unwound last-in-first-out.
func undoBlockTransactions(set utxo.Set, undos []utxo.TxUndo) error {
	for i := len(undos) - 1; i >= 0; i-- {
		if err := utxo.Undo(set, undos[i]); err != nil {
			return fmt.Errorf("undo tx %d: %w", i, err)
		}
	}
	return nil
}
