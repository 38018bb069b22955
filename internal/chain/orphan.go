package chain

import (
	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// orphanPool holds blocks whose parent has not been seen yet, keyed by
// previous_hash so that when the parent finally arrives every waiting
// child can be resubmitted (spec.md §4.5 "Unknown parent → block queued
// in an orphan pool keyed by previous_hash, with a fixed capacity; when
// its parent arrives, the orphan is re-submitted").
type orphanPool struct {
	capacity int
	order    []types.Hash // insertion order of orphan block hashes, for fixed-capacity eviction
	byHash   map[types.Hash]*block.Block
	byParent map[types.Hash][]types.Hash
}

func newOrphanPool(capacity int) *orphanPool {
	if capacity <= 0 {
		capacity = 1
	}
	return &orphanPool{
		capacity: capacity,
		byHash:   make(map[types.Hash]*block.Block),
		byParent: make(map[types.Hash][]types.Hash),
	}
}

// add queues blk, evicting the oldest orphan if the pool is at capacity.
func (o *orphanPool) add(blk *block.Block) {
	hash := blk.Hash()
	if _, exists := o.byHash[hash]; exists {
		return
	}
	if len(o.order) >= o.capacity {
		oldest := o.order[0]
		o.order = o.order[1:]
		o.remove(oldest)
	}
	o.order = append(o.order, hash)
	o.byHash[hash] = blk
	parent := blk.Header.PreviousHash
	o.byParent[parent] = append(o.byParent[parent], hash)
}

// remove drops an orphan from every index without resubmitting it.
func (o *orphanPool) remove(hash types.Hash) {
	blk, exists := o.byHash[hash]
	if !exists {
		return
	}
	delete(o.byHash, hash)
	parent := blk.Header.PreviousHash
	children := o.byParent[parent]
	for i, h := range children {
		if h == hash {
			o.byParent[parent] = append(children[:i], children[i+1:]...)
			break
		}
	}
	if len(o.byParent[parent]) == 0 {
		delete(o.byParent, parent)
	}
	for i, h := range o.order {
		if h == hash {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// takeChildren removes and returns every orphan directly waiting on
// parentHash, so the caller can attempt to resubmit them now that their
// parent is known.
func (o *orphanPool) takeChildren(parentHash types.Hash) []*block.Block {
	hashes := o.byParent[parentHash]
	if len(hashes) == 0 {
		return nil
	}
	blocks := make([]*block.Block, 0, len(hashes))
	for _, h := range hashes {
		if blk, ok := o.byHash[h]; ok {
			blocks = append(blocks, blk)
		}
	}
	for _, h := range append([]types.Hash{}, hashes...) {
		o.remove(h)
	}
	return blocks
}
