package consensus

import (
	"fmt"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/pkg/block"
)

// Validator validates blocks against both structural and consensus rules.
type Validator struct {
	engine Engine
	params config.Params
}

// NewValidator creates a block validator with the given consensus engine
// and protocol parameters.
func NewValidator(engine Engine, params config.Params) *Validator {
	return &Validator{engine: engine, params: params}
}

// ValidateBlock checks a block's structure (header shape, Merkle root,
// coinbase placement) and its proof of work.
func (v *Validator) ValidateBlock(blk *block.Block) error {
	if err := blk.Validate(v.params); err != nil {
		return fmt.Errorf("block structure: %w", err)
	}
	if err := v.engine.VerifyHeader(blk.Header); err != nil {
		return fmt.Errorf("consensus: %w", err)
	}
	return nil
}
