package chain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/trinitychain/trinitychain/internal/storage"
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Key prefixes and metadata keys for the block store. Blocks are kept in
// their wire encoding (pkg/block.Encode/Decode) since spec.md §6 declares
// the wire format to also be the on-disk format.
var (
	prefixBlock  = []byte("b/") // b/<hash(32)> -> block wire bytes (every accepted block, canonical or not)
	prefixHeight = []byte("h/") // h/<height(8 BE)> -> hash(32), canonical chain only
	prefixUndo   = []byte("u/") // u/<hash(32)> -> BlockUndo JSON, canonical chain only
	prefixWork   = []byte("w/") // w/<hash(32)> -> cumulative work big.Int bytes, every accepted block

	keyTipHash   = []byte("s/tip")
	keyHeight    = []byte("s/height")
	keyDiff      = []byte("s/difficulty")
	keyWork      = []byte("s/work")
	keyTipStamp  = []byte("s/tip_timestamp")
)

// Store persists blocks, their undo records, and chain metadata to a
// storage.DB. A canonical-chain commit (height index + undo + UTXO diff +
// tip metadata) lands through one storage.Batch. Block bodies
// (StoreBlock), the cumulative-work cache (PutWork) and the genesis UTXO
// entries (InitGenesis) are written directly, outside that batch.
type Store struct {
	db storage.DB
}

// NewStore creates a block store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// NewBatch starts an atomic multi-key write.
func (s *Store) NewBatch() (storage.Batch, error) {
	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		return nil, fmt.Errorf("storage backend does not support atomic batches")
	}
	return batcher.NewBatch(), nil
}

func blockKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixBlock)+types.HashSize)
	copy(key, prefixBlock)
	copy(key[len(prefixBlock):], hash[:])
	return key
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(prefixHeight)+8)
	copy(key, prefixHeight)
	binary.BigEndian.PutUint64(key[len(prefixHeight):], height)
	return key
}

func undoKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixUndo)+types.HashSize)
	copy(key, prefixUndo)
	copy(key[len(prefixUndo):], hash[:])
	return key
}

func workKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixWork)+types.HashSize)
	copy(key, prefixWork)
	copy(key[len(prefixWork):], hash[:])
	return key
}

// HasBlock reports whether a block (canonical or not) is known.
func (s *Store) HasBlock(hash types.Hash) (bool, error) {
	return s.db.Has(blockKey(hash))
}

// GetBlockByHash retrieves any known block by its hash.
func (s *Store) GetBlockByHash(hash types.Hash) (*block.Block, error) {
	data, err := s.db.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}
	blk, err := block.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode block %s: %w", hash, err)
	}
	return blk, nil
}

// GetBlockByHeight retrieves the canonical-chain block at height.
func (s *Store) GetBlockByHeight(height uint64) (*block.Block, error) {
	hashBytes, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("height index %d: %w", height, err)
	}
	if len(hashBytes) != types.HashSize {
		return nil, fmt.Errorf("corrupt height index at %d: %d bytes", height, len(hashBytes))
	}
	var hash types.Hash
	copy(hash[:], hashBytes)
	return s.GetBlockByHash(hash)
}

// StoreBlock persists a block's raw bytes, independent of canonical
// status. Every block whose parent is known is stored this way before it
// is validated, whether or not it ends up on the canonical chain — a
// later reorg may need it.
func (s *Store) StoreBlock(blk *block.Block) error {
	data, err := blk.Encode()
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	if err := s.db.Put(blockKey(blk.Hash()), data); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	return nil
}

// GetWork returns the cached cumulative work up to and including hash.
func (s *Store) GetWork(hash types.Hash) (*big.Int, bool) {
	data, err := s.db.Get(workKey(hash))
	if err != nil {
		return nil, false
	}
	return new(big.Int).SetBytes(data), true
}

// PutWork caches the cumulative work up to and including hash. This is a
// derived index, not part of the atomic commit contract: losing it to a
// crash only costs a recomputation, never consensus correctness.
func (s *Store) PutWork(hash types.Hash, work *big.Int) error {
	return s.db.Put(workKey(hash), work.Bytes())
}

// GetUndo retrieves the undo record for a canonical-chain block.
func (s *Store) GetUndo(hash types.Hash) (*BlockUndo, error) {
	data, err := s.db.Get(undoKey(hash))
	if err != nil {
		return nil, fmt.Errorf("get undo %s: %w", hash, err)
	}
	var undo BlockUndo
	if err := json.Unmarshal(data, &undo); err != nil {
		return nil, fmt.Errorf("decode undo %s: %w", hash, err)
	}
	return &undo, nil
}

// PutUndoBatch stages a block's undo record inside an in-flight commit.
func PutUndoBatch(b storage.Batch, hash types.Hash, undo *BlockUndo) error {
	data, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("encode undo: %w", err)
	}
	return b.Put(undoKey(hash), data)
}

// DeleteUndoBatch stages removal of a no-longer-canonical block's undo
// record (it is never needed again once the block it reverses is no
// longer the parent of the live tip's ancestry).
func DeleteUndoBatch(b storage.Batch, hash types.Hash) error {
	return b.Delete(undoKey(hash))
}

// PutHeightIndexBatch stages height -> hash for the canonical chain.
func PutHeightIndexBatch(b storage.Batch, height uint64, hash types.Hash) error {
	return b.Put(heightKey(height), hash[:])
}

// DeleteHeightIndexBatch stages removal of a height no longer canonical.
func DeleteHeightIndexBatch(b storage.Batch, height uint64) error {
	return b.Delete(heightKey(height))
}

// Metadata is the durable chain-tip record loaded on startup.
type Metadata struct {
	TipHash        types.Hash
	Height         uint64
	Difficulty     uint64
	TipTimestamp   int64
	CumulativeWork *big.Int
}

// LoadMetadata reads the persisted chain tip. ok is false on a fresh
// database (no genesis committed yet).
func (s *Store) LoadMetadata() (Metadata, bool, error) {
	hashBytes, err := s.db.Get(keyTipHash)
	if err != nil {
		return Metadata{}, false, nil
	}
	if len(hashBytes) != types.HashSize {
		return Metadata{}, false, fmt.Errorf("corrupt tip hash: %d bytes", len(hashBytes))
	}
	var tip types.Hash
	copy(tip[:], hashBytes)

	heightBytes, err := s.db.Get(keyHeight)
	if err != nil || len(heightBytes) != 8 {
		return Metadata{}, false, fmt.Errorf("missing or corrupt tip height")
	}
	diffBytes, err := s.db.Get(keyDiff)
	if err != nil || len(diffBytes) != 8 {
		return Metadata{}, false, fmt.Errorf("missing or corrupt tip difficulty")
	}
	stampBytes, err := s.db.Get(keyTipStamp)
	if err != nil || len(stampBytes) != 8 {
		return Metadata{}, false, fmt.Errorf("missing or corrupt tip timestamp")
	}
	workBytes, err := s.db.Get(keyWork)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("missing cumulative work")
	}

	return Metadata{
		TipHash:        tip,
		Height:         binary.BigEndian.Uint64(heightBytes),
		Difficulty:     binary.BigEndian.Uint64(diffBytes),
		TipTimestamp:   int64(binary.BigEndian.Uint64(stampBytes)),
		CumulativeWork: new(big.Int).SetBytes(workBytes),
	}, true, nil
}

// PutMetadataBatch stages the new chain-tip record inside an in-flight commit.
func PutMetadataBatch(b storage.Batch, m Metadata) error {
	if err := b.Put(keyTipHash, m.TipHash[:]); err != nil {
		return err
	}
	var heightBuf, diffBuf, stampBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], m.Height)
	if err := b.Put(keyHeight, heightBuf[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(diffBuf[:], m.Difficulty)
	if err := b.Put(keyDiff, diffBuf[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(stampBuf[:], uint64(m.TipTimestamp))
	if err := b.Put(keyTipStamp, stampBuf[:]); err != nil {
		return err
	}
	work := m.CumulativeWork
	if work == nil {
		work = new(big.Int)
	}
	return b.Put(keyWork, work.Bytes())
}
