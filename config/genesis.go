package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// GenesisSeed is the fixed string whose SHA-256 anchors the canonical
// genesis coinbase triangle, per spec.md §3 ("Genesis is block height 0
// ... a single coinbase output defined in the configuration; the first
// 32 bytes of the SHA-256 of a fixed string constitute the canonical
// genesis coinbase; the exact bytes are a consensus parameter").
const GenesisSeed = "TrinityChain Genesis — every UTXO is a triangle"

// Genesis holds the bit-exact genesis block definition: the network
// identity, the timestamp, and the single coinbase allocation. This
// mirrors the teacher's config/genesis.go Genesis struct, stripped of
// every subchain/token/PoA field that has no TrinityChain analogue.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`

	Timestamp uint64 `json:"timestamp"`

	// Beneficiary receives the single genesis coinbase triangle.
	Beneficiary types.Address `json:"beneficiary"`

	// RewardArea is the Shoelace area of the genesis coinbase triangle.
	RewardArea geometry.Coord `json:"reward_area"`

	// Difficulty is the PoW difficulty recorded in the genesis header and
	// the difficulty a fresh chain starts mining at.
	Difficulty uint64 `json:"difficulty"`

	Params Params `json:"params"`
}

// genesisSeedHash returns the first 32 bytes of SHA-256(GenesisSeed), the
// deterministic anchor spec.md §3 calls out by name.
func genesisSeedHash() types.Hash {
	return sha256.Sum256([]byte(GenesisSeed))
}

// CoinbaseExtraNonce derives the genesis coinbase's extra_nonce from the
// fixed seed hash, so the genesis coinbase transaction's own wire
// encoding (which carries extra_nonce explicitly) agrees bit-exactly with
// the triangle CoinbaseTriangle below returns.
func (g *Genesis) CoinbaseExtraNonce() uint64 {
	seed := genesisSeedHash()
	return uint64(seed[0])<<56 | uint64(seed[1])<<48 | uint64(seed[2])<<40 |
		uint64(seed[3])<<32 | uint64(seed[4])<<24 | uint64(seed[5])<<16 |
		uint64(seed[6])<<8 | uint64(seed[7])
}

// CoinbaseTriangle deterministically derives the bit-exact genesis
// coinbase triangle from the fixed seed hash, reusing the same
// anchor-and-scale construction as geometry.CoinbaseTriangle (height 0,
// extra_nonce derived from the seed hash so two networks with different
// seeds never collide).
func (g *Genesis) CoinbaseTriangle() geometry.Triangle {
	return geometry.CoinbaseTriangle(0, g.CoinbaseExtraNonce(), g.RewardArea, g.Beneficiary)
}

// MainnetGenesis returns the canonical mainnet genesis definition. The
// beneficiary is the zero address: the genesis coinbase is unspendable
// by construction (no private key hashes to the zero address), matching
// how the teacher's own genesis allocation is a fixed, auditable constant
// rather than a configurable runtime choice.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:     "trinitychain-mainnet-1",
		ChainName:   "TrinityChain Mainnet",
		Timestamp:   1770734103,
		Beneficiary: types.Address{},
		RewardArea:  geometry.FromInt(50),
		Difficulty:  DefaultParams().MinDifficulty,
		Params:      DefaultParams(),
	}
}

// TestnetGenesis returns the canonical testnet genesis definition, with a
// shorter difficulty window for fast convergence.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "trinitychain-testnet-1"
	g.ChainName = "TrinityChain Testnet"
	g.Params = TestParams()
	g.Difficulty = g.Params.MinDifficulty
	return g
}

// LoadGenesis loads a genesis definition from a JSON file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return &g, nil
}

// Save writes the genesis definition to a JSON file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}
	return nil
}

// Hash returns the SHA-256 hash of the genesis definition's JSON encoding,
// used to detect genesis mismatches between nodes.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return sha256.Sum256(data), nil
}
