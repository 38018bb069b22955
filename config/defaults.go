package config

import "github.com/trinitychain/trinitychain/pkg/geometry"

// DefaultParams returns the production consensus parameters for
// TrinityChain mainnet, following spec.md §6's default values.
func DefaultParams() Params {
	return Params{
		InitialReward:       geometry.FromInt(50),
		HalvingInterval:      DefaultHalvingInterval,
		TargetBlockTime:      60,
		DifficultyWindow:     2016,
		MinDifficulty:        1,
		MaxSubdivisionDepth:  64,
		MaxTxsPerBlock:       5000,
		MaxMemoBytes:         256,
		MaxReorgDepth:        1000,
		OrphanPoolCapacity:   128,
		MempoolCapacity:      50_000,
	}
}

// TestParams returns parameters suited to fast deterministic tests: a
// short difficulty window and small reorg/orphan bounds, the same way the
// teacher's pow_test.go overrides AdjustInterval/TargetBlockTime per test
// rather than relying on production constants.
func TestParams() Params {
	p := DefaultParams()
	p.HalvingInterval = 10
	p.DifficultyWindow = 10
	p.MaxReorgDepth = 100
	p.OrphanPoolCapacity = 16
	p.MempoolCapacity = 1000
	return p
}
