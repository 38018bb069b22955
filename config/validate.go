package config

import "fmt"

// Validate checks a genesis definition for obvious consensus-breaking
// mistakes, the same mandate as the teacher's config.Validate but scoped
// to TrinityChain's narrower genesis shape.
func (g *Genesis) Validate() error {
	if g == nil {
		return fmt.Errorf("genesis is nil")
	}
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.RewardArea <= 0 {
		return fmt.Errorf("reward_area must be positive")
	}
	if g.Difficulty == 0 {
		return fmt.Errorf("difficulty must be positive")
	}
	return g.Params.Validate()
}

// Validate checks that consensus parameters are internally consistent.
func (p Params) Validate() error {
	if p.InitialReward <= 0 {
		return fmt.Errorf("initial_reward must be positive")
	}
	if p.HalvingInterval == 0 {
		return fmt.Errorf("halving_interval must be positive")
	}
	if p.TargetBlockTime == 0 {
		return fmt.Errorf("target_block_time must be positive")
	}
	if p.DifficultyWindow == 0 {
		return fmt.Errorf("difficulty_window must be positive")
	}
	if p.MinDifficulty == 0 {
		return fmt.Errorf("min_difficulty must be at least 1")
	}
	if p.MaxTxsPerBlock <= 0 {
		return fmt.Errorf("max_txs_per_block must be positive")
	}
	if p.MaxMemoBytes < 0 {
		return fmt.Errorf("max_memo_bytes must not be negative")
	}
	return nil
}
