package chain

import (
	"math/big"

	"github.com/trinitychain/trinitychain/pkg/types"
)

// State holds the current canonical-chain tip: everything downstream
// consumers (the miner, readers, peer-facing queries) need to know
// without touching the UTXO store or block store directly.
type State struct {
	Height         uint64
	TipHash        types.Hash
	TipTimestamp   int64
	Difficulty     uint64
	CumulativeWork *big.Int
}

// IsGenesis reports whether no block has been committed yet — distinct
// from "the tip is the genesis block", which has Height == 0 but a
// non-zero TipHash.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}

// clone returns a deep copy so callers holding a read snapshot never
// observe a later writer's in-place mutation (spec.md §5: "Readers ...
// observe a consistent snapshot").
func (s State) clone() State {
	if s.CumulativeWork != nil {
		s.CumulativeWork = new(big.Int).Set(s.CumulativeWork)
	} else {
		s.CumulativeWork = new(big.Int)
	}
	return s
}
