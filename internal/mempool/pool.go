// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
	ErrCoinbase      = errors.New("coinbase transactions do not belong in the mempool")
)

// entry wraps a transaction with its fee and the UTXO hash(es) it consumes,
// in insertion order so drain_for_block's tie-break is well defined.
type entry struct {
	tx       *tx.Transaction
	txHash   types.Hash
	fee      geometry.Coord
	consumes types.Hash
	seq      uint64
}

// Pool holds unconfirmed transactions ordered by fee for block assembly,
// keyed by txid with a secondary index on the UTXO hash each transaction
// consumes so double-spends are rejected in O(1).
type Pool struct {
	mu                  sync.Mutex
	txs                 map[types.Hash]*entry
	spends              map[types.Hash]types.Hash // consumed utxo hash -> txHash
	maxSize             int
	maxSubdivisionDepth uint8
	utxos               tx.UTXOProvider
	nextSeq             uint64
}

// New creates a new mempool with the given UTXO provider, capacity, and
// the subdivision-depth bound to enforce during stateful validation.
func New(utxos tx.UTXOProvider, maxSize int, maxSubdivisionDepth uint8) *Pool {
	if maxSize <= 0 {
		maxSize = 50_000
	}
	return &Pool{
		txs:                 make(map[types.Hash]*entry),
		spends:              make(map[types.Hash]types.Hash),
		maxSize:             maxSize,
		maxSubdivisionDepth: maxSubdivisionDepth,
		utxos:               utxos,
	}
}

func consumedHash(transaction *tx.Transaction) (types.Hash, bool) {
	switch transaction.Tag {
	case tx.TagTransfer:
		return transaction.Transfer.InputHash, true
	case tx.TagSubdivision:
		return transaction.Subdivision.ParentHash, true
	default:
		return types.Hash{}, false
	}
}

// Add validates and admits a transaction, returning its fee. Coinbase
// transactions are never accepted into the mempool: they are minted by
// the miner directly into a candidate block, never broadcast standalone.
func (p *Pool) Add(transaction *tx.Transaction) (geometry.Coord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if transaction.IsCoinbase() {
		return 0, ErrCoinbase
	}

	txHash, err := transaction.Hash()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, exists := p.txs[txHash]; exists {
		return 0, ErrAlreadyExists
	}

	consumed, _ := consumedHash(transaction)
	if conflictHash, exists := p.spends[consumed]; exists {
		return 0, fmt.Errorf("%w: input %s already spent by %s", ErrConflict, consumed, conflictHash)
	}

	fee, err := transaction.ValidateWithUTXOs(p.utxos, p.maxSubdivisionDepth)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if len(p.txs) >= p.maxSize {
		lowestHash, lowestFee, ok := p.findLowestFeeLocked()
		if !ok || fee <= lowestFee {
			return 0, ErrPoolFull
		}
		p.removeLocked(lowestHash)
	}

	p.nextSeq++
	p.txs[txHash] = &entry{
		tx:       transaction,
		txHash:   txHash,
		fee:      fee,
		consumes: consumed,
		seq:      p.nextSeq,
	}
	p.spends[consumed] = txHash

	return fee, nil
}

// Remove removes a transaction from the mempool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	delete(p.spends, e.consumes)
	delete(p.txs, txHash)
}

// PruneByBlock removes every mempool transaction whose consumed UTXO was
// spent by a transaction in the given block, per spec.md §4.4
// prune_by_block.
func (p *Pool) PruneByBlock(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		if consumed, ok := consumedHash(t); ok {
			if txHash, exists := p.spends[consumed]; exists {
				p.removeLocked(txHash)
			}
		}
		if txHash, err := t.Hash(); err == nil {
			p.removeLocked(txHash)
		}
	}
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a transaction from the mempool.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// GetFee returns the fee for a transaction in the mempool (0 if not found).
func (p *Pool) GetFee(txHash types.Hash) geometry.Coord {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, exists := p.txs[txHash]
	if !exists {
		return 0
	}
	return e.fee
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Hashes returns the hashes of all transactions in the mempool.
func (p *Pool) Hashes() []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

func (p *Pool) findLowestFeeLocked() (types.Hash, geometry.Coord, bool) {
	var lowestHash types.Hash
	var lowestFee geometry.Coord
	found := false
	for h, e := range p.txs {
		if !found || e.fee < lowestFee {
			lowestFee = e.fee
			lowestHash = h
			found = true
		}
	}
	return lowestHash, lowestFee, found
}

// sortedEntries returns every pool entry ordered fee desc, insertion-order
// asc, txid asc — the deterministic order spec.md §4.4/§8 requires so two
// miners draining the same mempool build identical blocks.
func (p *Pool) sortedEntries() []*entry {
	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].fee != entries[j].fee {
			return entries[i].fee > entries[j].fee
		}
		if entries[i].seq != entries[j].seq {
			return entries[i].seq < entries[j].seq
		}
		return entries[i].txHash.Less(entries[j].txHash)
	})
	return entries
}

// DrainForBlock returns up to maxCount pending transactions ordered by
// descending fee (ties by insertion order, then txid), skipping any
// transaction whose input was already consumed by a transaction selected
// earlier in this same batch, per spec.md §4.4 drain_for_block.
func (p *Pool) DrainForBlock(maxCount int) []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.sortedEntries()
	seenConsumed := make(map[types.Hash]bool, len(entries))
	result := make([]*tx.Transaction, 0, maxCount)

	for _, e := range entries {
		if maxCount > 0 && len(result) >= maxCount {
			break
		}
		if seenConsumed[e.consumes] {
			continue
		}
		seenConsumed[e.consumes] = true
		result = append(result, e.tx)
	}
	return result
}
