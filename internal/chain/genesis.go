package chain

import (
	"fmt"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// BuildGenesisBlock constructs the bit-exact genesis block (height 0) from
// a genesis definition: a single coinbase transaction minting the
// configured reward triangle to the configured beneficiary, wrapped in a
// header whose previous_hash is the zero hash and whose nonce is 0 (the
// genesis block is declared valid by fiat, not mined — VerifyHeader is
// never asked to check it).
func BuildGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	coinbase := tx.NewCoinbase(&tx.Coinbase{
		Output:      gen.CoinbaseTriangle(),
		Beneficiary: gen.Beneficiary,
		BlockHeight: 0,
		ExtraNonce:  gen.CoinbaseExtraNonce(),
	})

	coinbaseHash, err := coinbase.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash coinbase: %w", err)
	}
	merkleRoot := block.ComputeMerkleRoot([]types.Hash{coinbaseHash})

	header := &block.Header{
		Height:       0,
		PreviousHash: types.Hash{},
		Timestamp:    int64(gen.Timestamp),
		Difficulty:   gen.Difficulty,
		Nonce:        0,
		MerkleRoot:   merkleRoot,
	}

	return block.NewBlock(header, []*tx.Transaction{coinbase}), nil
}
