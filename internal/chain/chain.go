// Package chain implements TrinityChain's blockchain state machine: a
// single-writer, read-write-locked coordinator over block storage, the
// UTXO set, consensus validation, and the mempool (spec.md §5).
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/trinitychain/trinitychain/config"
	"github.com/trinitychain/trinitychain/internal/consensus"
	"github.com/trinitychain/trinitychain/internal/log"
	"github.com/trinitychain/trinitychain/internal/mempool"
	"github.com/trinitychain/trinitychain/internal/storage"
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Chain coordination errors.
var (
	ErrBlockKnown    = errors.New("block already known")
	ErrOrphanBlock   = errors.New("parent block unknown, queued as orphan")
	ErrReorgTooDeep  = errors.New("common ancestor exceeds max reorg depth")
	ErrBadHeight     = errors.New("block height does not follow parent")
	ErrBadPrevHash   = errors.New("previous_hash does not match declared parent")
	ErrTimestampBad  = errors.New("block timestamp outside allowed bounds")
	ErrDifficultyBad = errors.New("block difficulty does not match expected retarget")
	ErrNotInitialized = errors.New("chain has no genesis block; call InitGenesis first")
)

// Chain holds every component the state machine coordinates, behind a
// single RWMutex: readers (API queries, miner snapshots) take the read
// side, and every mutation (submit_block, reorg, retarget) takes the
// write side, matching spec.md §5's single-writer model.
type Chain struct {
	mu sync.RWMutex

	store *Store
	utxos *utxo.Store
	pow   *consensus.PoW
	validator *consensus.Validator
	params    config.Params
	pool      *mempool.Pool

	orphans *orphanPool
	state   State

	tipSubsMu sync.Mutex
	tipSubs   []chan block.Header
}

// New wires a chain around a database, protocol parameters, a PoW engine,
// and a mempool, and loads any persisted tip. The chain is not usable
// until either LoadMetadata finds a prior tip or InitGenesis is called.
func New(db storage.DB, params config.Params, pow *consensus.PoW, pool *mempool.Pool) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if pow == nil {
		return nil, fmt.Errorf("pow engine is nil")
	}

	store := NewStore(db)
	utxos := utxo.NewStore(db)
	validator := consensus.NewValidator(pow, params)

	c := &Chain{
		store:     store,
		utxos:     utxos,
		pow:       pow,
		validator: validator,
		params:    params,
		pool:      pool,
		orphans:   newOrphanPool(params.OrphanPoolCapacity),
	}

	meta, ok, err := store.LoadMetadata()
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	if ok {
		c.state = State{
			Height:         meta.Height,
			TipHash:        meta.TipHash,
			TipTimestamp:   meta.TipTimestamp,
			Difficulty:     meta.Difficulty,
			CumulativeWork: meta.CumulativeWork,
		}
	} else {
		c.state = State{CumulativeWork: new(big.Int)}
	}

	return c, nil
}

// InitGenesis installs the genesis block on a fresh chain. The genesis
// block bypasses ordinary block validation: it is declared valid by the
// network's configuration, not mined (spec.md §4.5).
func (c *Chain) InitGenesis(gen *config.Genesis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsGenesis() {
		return fmt.Errorf("chain already initialized at height %d", c.state.Height)
	}

	blk, err := BuildGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("build genesis: %w", err)
	}

	undos, err := applyBlockTransactions(c.utxos, blk, 0, gen.Params)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}

	hash := blk.Hash()
	if err := c.store.StoreBlock(blk); err != nil {
		return fmt.Errorf("store genesis: %w", err)
	}
	work := new(big.Int)
	if err := c.store.PutWork(hash, work); err != nil {
		return fmt.Errorf("cache genesis work: %w", err)
	}

	b, err := c.store.NewBatch()
	if err != nil {
		return fmt.Errorf("new batch: %w", err)
	}
	if err := PutHeightIndexBatch(b, 0, hash); err != nil {
		return fmt.Errorf("height index: %w", err)
	}
	if err := PutUndoBatch(b, hash, &BlockUndo{TxUndos: undos}); err != nil {
		return fmt.Errorf("put undo: %w", err)
	}
	newState := State{
		Height:         0,
		TipHash:        hash,
		TipTimestamp:   blk.Header.Timestamp,
		Difficulty:     blk.Header.Difficulty,
		CumulativeWork: work,
	}
	if err := PutMetadataBatch(b, Metadata{
		TipHash:        newState.TipHash,
		Height:         newState.Height,
		Difficulty:     newState.Difficulty,
		TipTimestamp:   newState.TipTimestamp,
		CumulativeWork: newState.CumulativeWork,
	}); err != nil {
		return fmt.Errorf("put metadata: %w", err)
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}

	c.state = newState
	log.Chain.Info().Uint64("height", 0).Str("hash", hash.String()).Msg("genesis installed")
	return nil
}

// SubmitTransaction admits a transaction into the mempool, per spec.md §6
// submit_transaction. The mempool validates against a live read of the
// current tip's UTXO set without taking the chain's write lock.
func (c *Chain) SubmitTransaction(transaction *tx.Transaction) (geometry.Coord, error) {
	if c.pool == nil {
		return 0, fmt.Errorf("mempool not configured")
	}
	return c.pool.Add(transaction)
}

// SubmitBlock admits a block for validation and application, per
// spec.md §6 submit_block. It may trigger a reorg if the block (or one
// that becomes reachable once this block's parent chain resolves) carries
// more cumulative work than the current tip.
func (c *Chain) SubmitBlock(blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsGenesis() {
		return ErrNotInitialized
	}
	return c.submitLocked(blk)
}

// GetTip returns the current chain tip's header, per spec.md §6 get_tip.
func (c *Chain) GetTip() (block.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.IsGenesis() {
		return block.Header{}, ErrNotInitialized
	}
	blk, err := c.store.GetBlockByHash(c.state.TipHash)
	if err != nil {
		return block.Header{}, fmt.Errorf("load tip block: %w", err)
	}
	return *blk.Header, nil
}

// State returns a snapshot of the chain's current tip metadata.
func (c *Chain) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// GetBlockByHash retrieves any known block, canonical or not, per
// spec.md §6 get_block(hash).
func (c *Chain) GetBlockByHash(hash types.Hash) (*block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetBlockByHash(hash)
}

// GetBlockByHeight retrieves the canonical block at height, per spec.md
// §6 get_block(height).
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetBlockByHeight(height)
}

// GetUTXO looks up a live triangle by canonical hash, per spec.md §6
// get_utxo.
func (c *Chain) GetUTXO(hash types.Hash) (geometry.Triangle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utxos.GetUTXO(hash)
}

// IterUTXOsByOwner returns every triangle owned by addr, per spec.md §6
// iter_utxos_by_owner, backed by the address index internal/utxo maintains.
func (c *Chain) IterUTXOsByOwner(addr types.Address) ([]geometry.Triangle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utxos.GetByAddress(addr)
}

// MempoolSnapshot returns every pending transaction, per spec.md §6
// mempool_snapshot. It does not take the chain lock: the mempool has its
// own lock and can be sampled independently of block application.
func (c *Chain) MempoolSnapshot() []*tx.Transaction {
	if c.pool == nil {
		return nil
	}
	hashes := c.pool.Hashes()
	out := make([]*tx.Transaction, 0, len(hashes))
	for _, h := range hashes {
		if t := c.pool.Get(h); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Pool exposes the mempool for the miner to drain candidate transactions
// without going through the chain's write lock.
func (c *Chain) Pool() *mempool.Pool {
	return c.pool
}

// UTXOProvider exposes the live UTXO store as a read-only provider for
// the miner's scratch-copy block simulation.
func (c *Chain) UTXOProvider() utxo.Set {
	return c.utxos
}

// Params returns the protocol parameters this chain enforces.
func (c *Chain) Params() config.Params {
	return c.params
}

// SubscribeNewTip returns a channel that receives the new tip header every
// time the canonical tip changes, per spec.md §6 subscribe_new_tip. The
// channel is buffered; a slow subscriber drops its stalest pending update
// rather than blocking block application.
func (c *Chain) SubscribeNewTip() <-chan block.Header {
	ch := make(chan block.Header, 8)
	c.tipSubsMu.Lock()
	c.tipSubs = append(c.tipSubs, ch)
	c.tipSubsMu.Unlock()
	return ch
}

func (c *Chain) publishNewTip(header block.Header) {
	c.tipSubsMu.Lock()
	defer c.tipSubsMu.Unlock()
	for _, ch := range c.tipSubs {
		select {
		case ch <- header:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- header:
			default:
			}
		}
	}
}
