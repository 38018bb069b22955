package mempool

import (
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/tx"
)

// DefaultMaxMemoBytes mirrors spec.md §6's MAX_MEMO_BYTES, used as a
// pre-admission check before the more expensive UTXO-aware validation.
const DefaultMaxMemoBytes = tx.MaxMemoBytes

// Policy defines mempool acceptance rules that are node-local rather than
// consensus-critical — a node may tighten these without a fork, unlike
// the block-validity rules in pkg/block and pkg/tx.
type Policy struct {
	MaxMemoBytes int
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{MaxMemoBytes: DefaultMaxMemoBytes}
}

// Check validates a transaction against policy rules, separate from
// consensus validation so policy can vary per node without a fork.
func (p *Policy) Check(transaction *tx.Transaction) error {
	if transaction.Tag == tx.TagTransfer && transaction.Transfer != nil {
		if p.MaxMemoBytes > 0 && len(transaction.Transfer.Memo) > p.MaxMemoBytes {
			return fmt.Errorf("memo too large: %d bytes, max %d", len(transaction.Transfer.Memo), p.MaxMemoBytes)
		}
	}
	return nil
}
