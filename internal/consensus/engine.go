// Package consensus defines TrinityChain's proof-of-work consensus engine
// and the block-validation wrapper that combines it with structural rules.
package consensus

import "github.com/trinitychain/trinitychain/pkg/block"

// Engine is the interface for consensus implementations.
type Engine interface {
	VerifyHeader(header *block.Header) error
	Prepare(header *block.Header) error
	Seal(blk *block.Block) error
}
