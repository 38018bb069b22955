package chain

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/trinitychain/trinitychain/internal/consensus"
	"github.com/trinitychain/trinitychain/internal/log"
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// medianTimePastWindow is the number of ancestor blocks spec.md §4.5's
// timestamp rule looks back over: a new block's timestamp must be at
// least the median of up to this many immediately preceding timestamps.
const medianTimePastWindow = 11

// BlockUndo is the durable record of everything a block's application
// changed in the UTXO set, enough to exactly reverse it during a reorg.
type BlockUndo struct {
	TxUndos []utxo.TxUndo `json:"tx_undos"`
}

// submitLocked rejects a block whose hash is already known with
// ErrBlockKnown and queues one with an unknown parent as an orphan.
// Otherwise it stores the block unconditionally (so it is available for later fork
// comparisons even if it never becomes canonical), evaluates whether its
// branch now outweighs the live tip, and resubmits any orphan waiting on
// this block's hash. Caller holds c.mu for writing.
func (c *Chain) submitLocked(blk *block.Block) error {
	hash := blk.Hash()
	known, err := c.store.HasBlock(hash)
	if err != nil {
		return fmt.Errorf("check known: %w", err)
	}
	if known {
		return ErrBlockKnown
	}

	parentKnown, err := c.store.HasBlock(blk.Header.PreviousHash)
	if err != nil {
		return fmt.Errorf("check parent: %w", err)
	}
	if !parentKnown {
		c.orphans.add(blk)
		log.Chain.Debug().Str("hash", hash.String()).Msg("orphan block queued, unknown parent")
		return ErrOrphanBlock
	}

	if err := c.store.StoreBlock(blk); err != nil {
		return fmt.Errorf("store block: %w", err)
	}

	if err := c.acceptStoredBlock(hash); err != nil {
		log.Chain.Debug().Err(err).Str("hash", hash.String()).Msg("block did not extend canonical chain")
		return err
	}

	for _, child := range c.orphans.takeChildren(hash) {
		if err := c.submitLocked(child); err != nil {
			log.Chain.Debug().Err(err).Msg("orphan resubmission did not extend chain")
		}
	}
	return nil
}

// acceptStoredBlock runs spec.md §4.5's fork-choice algorithm for a block
// that is already persisted (raw) and whose parent is known: find the
// common ancestor with the live tip, replay the candidate branch from
// there on a scratch UTXO overlay, and — only if the replayed branch
// carries strictly more cumulative work than the live tip — commit it as
// the new canonical chain. A losing or failing branch leaves live state
// completely untouched, since nothing is written to real storage until
// the final commit.
func (c *Chain) acceptStoredBlock(hash types.Hash) error {
	ancestorHash, ancestorHeight, err := c.findCommonAncestor(c.state.TipHash, hash)
	if err != nil {
		return fmt.Errorf("find common ancestor: %w", err)
	}

	branch, err := c.collectBranch(hash, ancestorHeight)
	if err != nil {
		return fmt.Errorf("collect branch: %w", err)
	}
	branchByHeight := make(map[uint64]*block.Block, len(branch))
	for _, b := range branch {
		branchByHeight[b.Header.Height] = b
	}
	lookup := c.branchHeightLookup(branchByHeight)

	ancestorState, err := c.stateAtHash(ancestorHash, ancestorHeight)
	if err != nil {
		return fmt.Errorf("ancestor state: %w", err)
	}

	base, undoneCanonical, err := c.revertToAncestor(ancestorHeight)
	if err != nil {
		return fmt.Errorf("revert to ancestor: %w", err)
	}

	parentBlk, err := c.store.GetBlockByHash(ancestorHash)
	if err != nil {
		return fmt.Errorf("load ancestor block: %w", err)
	}
	parentState := ancestorState
	layer := base
	undos := make([][]utxo.TxUndo, 0, len(branch))
	for _, b := range branch {
		nextLayer, txUndos, nextState, err := c.validateBlockAgainst(b, parentBlk, parentState, layer, lookup)
		if err != nil {
			return fmt.Errorf("branch block %s: %w", b.Hash(), err)
		}
		if err := c.store.PutWork(b.Hash(), nextState.CumulativeWork); err != nil {
			return fmt.Errorf("cache work: %w", err)
		}
		layer = nextLayer
		undos = append(undos, txUndos)
		parentBlk = b
		parentState = nextState
	}
	finalState := parentState

	if finalState.CumulativeWork.Cmp(c.state.CumulativeWork) <= 0 {
		// The branch is known-valid but does not beat the current tip.
		// It stays stored for a possible future extension.
		return nil
	}

	if err := c.commitBranch(ancestorHeight, undoneCanonical, branch, undos, layer, finalState); err != nil {
		return fmt.Errorf("commit branch: %w", err)
	}

	c.state = finalState
	c.readmitUndoneTransactions(undoneCanonical)
	for _, b := range branch {
		if c.pool != nil {
			c.pool.PruneByBlock(b.Transactions)
		}
	}

	reorged := len(undoneCanonical) > 0
	log.Chain.Info().
		Uint64("height", finalState.Height).
		Str("hash", finalState.TipHash.String()).
		Bool("reorg", reorged).
		Int("undone", len(undoneCanonical)).
		Msg("new tip accepted")

	c.publishNewTip(*branch[len(branch)-1].Header)
	return nil
}

// findCommonAncestor walks both chains back to equal height and then in
// lockstep until their hashes agree, bounded by params.MaxReorgDepth.
func (c *Chain) findCommonAncestor(tipHash, candidateHash types.Hash) (types.Hash, uint64, error) {
	tipBlk, err := c.store.GetBlockByHash(tipHash)
	if err != nil {
		return types.Hash{}, 0, fmt.Errorf("load tip: %w", err)
	}
	candBlk, err := c.store.GetBlockByHash(candidateHash)
	if err != nil {
		return types.Hash{}, 0, fmt.Errorf("load candidate: %w", err)
	}

	var steps uint64
	for tipBlk.Header.Height > candBlk.Header.Height {
		tipBlk, err = c.store.GetBlockByHash(tipBlk.Header.PreviousHash)
		if err != nil {
			return types.Hash{}, 0, err
		}
		steps++
		if c.params.MaxReorgDepth > 0 && steps > c.params.MaxReorgDepth {
			return types.Hash{}, 0, ErrReorgTooDeep
		}
	}
	for candBlk.Header.Height > tipBlk.Header.Height {
		candBlk, err = c.store.GetBlockByHash(candBlk.Header.PreviousHash)
		if err != nil {
			return types.Hash{}, 0, err
		}
		steps++
		if c.params.MaxReorgDepth > 0 && steps > c.params.MaxReorgDepth {
			return types.Hash{}, 0, ErrReorgTooDeep
		}
	}
	for tipBlk.Hash() != candBlk.Hash() {
		tipBlk, err = c.store.GetBlockByHash(tipBlk.Header.PreviousHash)
		if err != nil {
			return types.Hash{}, 0, err
		}
		candBlk, err = c.store.GetBlockByHash(candBlk.Header.PreviousHash)
		if err != nil {
			return types.Hash{}, 0, err
		}
		steps++
		if c.params.MaxReorgDepth > 0 && steps > c.params.MaxReorgDepth {
			return types.Hash{}, 0, ErrReorgTooDeep
		}
	}
	return tipBlk.Hash(), tipBlk.Header.Height, nil
}

// collectBranch walks back from hash to (but not including) ancestorHeight,
// returning the blocks in ascending height order.
func (c *Chain) collectBranch(hash types.Hash, ancestorHeight uint64) ([]*block.Block, error) {
	var blocks []*block.Block
	cur, err := c.store.GetBlockByHash(hash)
	if err != nil {
		return nil, err
	}
	for cur.Header.Height > ancestorHeight {
		blocks = append(blocks, cur)
		cur, err = c.store.GetBlockByHash(cur.Header.PreviousHash)
		if err != nil {
			return nil, err
		}
	}
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks, nil
}

// stateAtHash reconstructs a State snapshot for any previously-accepted
// block from its header plus the persisted cumulative-work cache.
func (c *Chain) stateAtHash(hash types.Hash, height uint64) (State, error) {
	blk, err := c.store.GetBlockByHash(hash)
	if err != nil {
		return State{}, err
	}
	work, ok := c.store.GetWork(hash)
	if !ok {
		return State{}, fmt.Errorf("missing cumulative work cache for %s", hash)
	}
	return State{
		Height:         height,
		TipHash:        hash,
		TipTimestamp:   blk.Header.Timestamp,
		Difficulty:     blk.Header.Difficulty,
		CumulativeWork: work,
	}, nil
}

// revertToAncestor builds a scratch UTXO view of the live chain as of
// ancestorHeight by layering reverts of every canonical block from the
// current tip down to (but not including) the ancestor, and returns the
// hashes undone in tip-to-ancestor order.
func (c *Chain) revertToAncestor(ancestorHeight uint64) (*scratchUTXO, []types.Hash, error) {
	layer := newScratchUTXO(c.utxos)
	var undone []types.Hash
	h := c.state.Height
	for h > ancestorHeight {
		blk, err := c.store.GetBlockByHeight(h)
		if err != nil {
			return nil, nil, err
		}
		hash := blk.Hash()
		undo, err := c.store.GetUndo(hash)
		if err != nil {
			return nil, nil, fmt.Errorf("load undo for %s: %w", hash, err)
		}
		layer = newRevertLayer(layer, undo)
		undone = append(undone, hash)
		h--
	}
	return layer, undone, nil
}

// branchHeightLookup resolves a height to its header within the candidate
// branch first, falling back to the canonical store for heights at or
// below the fork point (still valid since nothing has been committed yet).
func (c *Chain) branchHeightLookup(branch map[uint64]*block.Block) func(uint64) (*block.Block, error) {
	return func(h uint64) (*block.Block, error) {
		if blk, ok := branch[h]; ok {
			return blk, nil
		}
		return c.store.GetBlockByHeight(h)
	}
}

// medianTimePast computes the median of up to medianTimePastWindow
// timestamps ending at parentBlk, per spec.md §4.5's timestamp rule.
func (c *Chain) medianTimePast(parentBlk *block.Block, lookup func(uint64) (*block.Block, error)) (int64, error) {
	timestamps := make([]int64, 0, medianTimePastWindow)
	h := parentBlk.Header.Height
	blk := parentBlk
	for i := 0; i < medianTimePastWindow; i++ {
		timestamps = append(timestamps, blk.Header.Timestamp)
		if h == 0 {
			break
		}
		h--
		var err error
		blk, err = lookup(h)
		if err != nil {
			return 0, fmt.Errorf("median time past: %w", err)
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2], nil
}

// validateBlockAgainst runs the full per-block validation pipeline
// (structural linkage, median-time-past and max-future timestamp bounds,
// PoW + structural checks, difficulty retarget, transaction application
// with the reward cap) and returns a new scratch layer holding the
// block's UTXO mutations on success. It is used both to extend the live
// tip (ancestor == tip, single-block branch) and to replay a fork branch
// during reorg, so the exact same rules apply either way.
func (c *Chain) validateBlockAgainst(
	blk, parentBlk *block.Block,
	parentState State,
	base utxo.Set,
	lookup func(uint64) (*block.Block, error),
) (*scratchUTXO, []utxo.TxUndo, State, error) {
	wantHeight := parentState.Height + 1
	if blk.Header.Height != wantHeight {
		return nil, nil, State{}, fmt.Errorf("%w: want %d, got %d", ErrBadHeight, wantHeight, blk.Header.Height)
	}
	if blk.Header.PreviousHash != parentBlk.Hash() {
		return nil, nil, State{}, ErrBadPrevHash
	}

	if err := c.validator.ValidateBlock(blk); err != nil {
		return nil, nil, State{}, fmt.Errorf("validate: %w", err)
	}

	mtp, err := c.medianTimePast(parentBlk, lookup)
	if err != nil {
		return nil, nil, State{}, err
	}
	if blk.Header.Timestamp < mtp {
		return nil, nil, State{}, fmt.Errorf("%w: %d below median-time-past %d", ErrTimestampBad, blk.Header.Timestamp, mtp)
	}
	maxFuture := time.Now().Unix() + 2*int64(c.params.TargetBlockTime)
	if blk.Header.Timestamp > maxFuture {
		return nil, nil, State{}, fmt.Errorf("%w: %d exceeds max future %d", ErrTimestampBad, blk.Header.Timestamp, maxFuture)
	}

	expectedDiff := c.pow.ExpectedDifficulty(blk.Header.Height, parentState.Difficulty, func(h uint64) (int64, error) {
		b, err := lookup(h)
		if err != nil {
			return 0, err
		}
		return b.Header.Timestamp, nil
	})
	if blk.Header.Difficulty != expectedDiff {
		return nil, nil, State{}, fmt.Errorf("%w: height %d has %d, want %d", ErrDifficultyBad, blk.Header.Height, blk.Header.Difficulty, expectedDiff)
	}

	layer := newScratchUTXO(base)
	undos, err := applyBlockTransactions(layer, blk, blk.Header.Height, c.params)
	if err != nil {
		return nil, nil, State{}, err
	}

	work := consensus.Work(blk.Header.Difficulty)
	newWork := new(big.Int).Add(parentState.CumulativeWork, work)
	newState := State{
		Height:         blk.Header.Height,
		TipHash:        blk.Hash(),
		TipTimestamp:   blk.Header.Timestamp,
		Difficulty:     blk.Header.Difficulty,
		CumulativeWork: newWork,
	}
	return layer, undos, newState, nil
}

// commitBranch atomically installs a candidate branch as the new
// canonical chain: it unwinds the height index and undo records for the
// blocks being displaced, writes the new branch's index and undo
// records, flushes every net UTXO mutation, and records the new tip
// metadata, all through a single storage.Batch.
func (c *Chain) commitBranch(
	ancestorHeight uint64,
	undoneCanonical []types.Hash,
	branch []*block.Block,
	undos [][]utxo.TxUndo,
	finalLayer *scratchUTXO,
	finalState State,
) error {
	b, err := c.store.NewBatch()
	if err != nil {
		return fmt.Errorf("new batch: %w", err)
	}

	for i := range undoneCanonical {
		height := c.state.Height - uint64(i)
		if err := DeleteHeightIndexBatch(b, height); err != nil {
			return err
		}
		if err := DeleteUndoBatch(b, undoneCanonical[i]); err != nil {
			return err
		}
	}

	for i, blk := range branch {
		height := ancestorHeight + uint64(i) + 1
		hash := blk.Hash()
		if err := PutHeightIndexBatch(b, height, hash); err != nil {
			return err
		}
		if err := PutUndoBatch(b, hash, &BlockUndo{TxUndos: undos[i]}); err != nil {
			return err
		}
	}

	if err := PutMetadataBatch(b, Metadata{
		TipHash:        finalState.TipHash,
		Height:         finalState.Height,
		Difficulty:     finalState.Difficulty,
		TipTimestamp:   finalState.TipTimestamp,
		CumulativeWork: finalState.CumulativeWork,
	}); err != nil {
		return err
	}

	for _, layer := range flattenScratchLayers(finalLayer) {
		if err := layer.flushInto(b, c.utxos); err != nil {
			return fmt.Errorf("flush utxo diff: %w", err)
		}
	}

	return b.Commit()
}

// readmitUndoneTransactions re-adds non-coinbase transactions from blocks
// displaced by a reorg back into the mempool, per spec.md §4.5 step 4: a
// transaction is re-admitted if it still stands alone as valid against
// the new canonical UTXO set. Already-applied-in-the-new-branch
// transactions are rejected by the mempool's own conflict detection, and
// that rejection is expected, not an error.
func (c *Chain) readmitUndoneTransactions(undoneCanonical []types.Hash) {
	if c.pool == nil {
		return
	}
	for _, hash := range undoneCanonical {
		blk, err := c.store.GetBlockByHash(hash)
		if err != nil {
			continue
		}
		for _, t := range blk.Transactions {
			if t.IsCoinbase() {
				continue
			}
			if _, err := c.pool.Add(t); err != nil {
				log.Chain.Debug().Err(err).Msg("reverted transaction not re-admitted to mempool")
			}
		}
	}
}
