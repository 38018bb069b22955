// Package config holds TrinityChain's consensus parameters and genesis
// definition: the protocol rules every node must agree on. Unlike the
// teacher's config package there is no node-operational surface here
// (P2P/RPC/wallet/mining-thread settings) — those belong to the external
// collaborators named in spec.md §1, not the consensus core. What remains
// is exactly the teacher's split of "protocol rules vs. node settings",
// narrowed to the protocol-rules half plus the minimal storage paths the
// core itself needs.
package config

import (
	"os"
	"path/filepath"

	"github.com/trinitychain/trinitychain/pkg/geometry"
)

// DefaultHalvingInterval is the default HalvingInterval, in blocks (spec.md §6 default).
const DefaultHalvingInterval uint64 = 210_000

// Params holds the protocol-level constants governing block validity, the
// reward schedule, and difficulty retargeting. Params is a struct rather
// than a block of untyped constants so a test network can run with a
// smaller DifficultyWindow, exactly as the teacher's PoW engine takes
// AdjustInterval/TargetBlockTime as fields instead of constants.
type Params struct {
	// InitialReward is the coinbase reward area (Coord) at height 0.
	InitialReward geometry.Coord `json:"initial_reward"`

	// HalvingInterval is the number of blocks between reward halvings.
	HalvingInterval uint64 `json:"halving_interval"`

	// TargetBlockTime is the desired average seconds between blocks.
	TargetBlockTime uint64 `json:"target_block_time"`

	// DifficultyWindow is the number of blocks between retarget events.
	DifficultyWindow uint64 `json:"difficulty_window"`

	// MinDifficulty is the floor difficulty can never retarget below.
	MinDifficulty uint64 `json:"min_difficulty"`

	// MaxSubdivisionDepth bounds how many times a triangle may be split
	// from its coinbase ancestor.
	MaxSubdivisionDepth uint8 `json:"max_subdivision_depth"`

	// MaxTxsPerBlock bounds block size in transaction count.
	MaxTxsPerBlock int `json:"max_txs_per_block"`

	// MaxMemoBytes bounds the optional Transfer memo field.
	MaxMemoBytes int `json:"max_memo_bytes"`

	// MaxReorgDepth bounds how many blocks a reorg may revert, matching
	// the teacher's ErrReorgTooDeep guard in internal/chain/reorg.go.
	MaxReorgDepth uint64 `json:"max_reorg_depth"`

	// OrphanPoolCapacity bounds the number of blocks held pending an
	// unknown parent before the oldest is evicted.
	OrphanPoolCapacity int `json:"orphan_pool_capacity"`

	// MempoolCapacity bounds the number of pending transactions held in
	// the mempool before the lowest-fee entry is evicted.
	MempoolCapacity int `json:"mempool_capacity"`
}

// BlockReward computes the coinbase reward area at the given height under
// Bitcoin-style geometric halving: InitialReward >> (height/HalvingInterval).
func (p Params) BlockReward(height uint64) geometry.Coord {
	halvings := height / p.HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return p.InitialReward >> halvings
}

// NodeConfig holds the minimal per-node storage settings the consensus
// core needs (where to put its block and UTXO databases). It deliberately
// has no P2P/RPC/wallet/mining fields: those belong to the external
// collaborators named in spec.md §1.
type NodeConfig struct {
	DataDir string `json:"data_dir"`

	// Log controls the ambient structured-logging sink.
	Log LogConfig `json:"log"`
}

// LogConfig controls internal/log's output.
type LogConfig struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
	File  string `json:"file,omitempty"`
}

// DefaultDataDir returns the platform-default data directory, following
// the teacher's config.DefaultDataDir layout, renamed to this chain.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".trinitychain"
	}
	return filepath.Join(home, ".trinitychain")
}

// BlocksDir returns the block-store directory.
func (c *NodeConfig) BlocksDir() string {
	return filepath.Join(c.DataDir, "blocks")
}

// UTXODir returns the UTXO-store directory.
func (c *NodeConfig) UTXODir() string {
	return filepath.Join(c.DataDir, "utxo")
}
