package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader        = errors.New("block has nil header")
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrBadMerkleRoot    = errors.New("merkle root mismatch")
	ErrZeroTimestamp    = errors.New("block timestamp is zero")
	ErrBadTxOrder       = errors.New("transactions not in canonical order")
	ErrNoCoinbase       = errors.New("first transaction must be coinbase")
	ErrMultipleCoinbase = errors.New("multiple coinbase transactions in block")
	ErrTooManyTxs       = errors.New("too many transactions in block")
	ErrOversizedMemo    = errors.New("memo exceeds configured maximum")
)

// Validate checks block structure and internal consistency against the
// given consensus parameters. This does NOT verify consensus rules such
// as proof-of-work or UTXO application (use internal/consensus and
// internal/chain for that).
func (b *Block) Validate(params config.Params) error {
	if b.Header == nil {
		return ErrNilHeader
	}

	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}

	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	if len(b.Transactions) > params.MaxTxsPerBlock {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), params.MaxTxsPerBlock)
	}

	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		h, err := t.Hash()
		if err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		txHashes[i] = h
	}
	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	// Canonical tx ordering: coinbase first, remaining sorted by txid ascending.
	for i := 2; i < len(txHashes); i++ {
		if bytes.Compare(txHashes[i-1][:], txHashes[i][:]) >= 0 {
			return fmt.Errorf("%w: tx %d hash >= tx %d hash", ErrBadTxOrder, i-1, i)
		}
	}

	for i, t := range b.Transactions {
		if t.Tag == tx.TagTransfer && t.Transfer != nil && len(t.Transfer.Memo) > params.MaxMemoBytes {
			return fmt.Errorf("tx %d: %w", i, ErrOversizedMemo)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	return nil
}
