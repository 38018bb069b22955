package chain

import (
	"github.com/trinitychain/trinitychain/internal/storage"
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// scratchUTXO overlays pending Put/Delete mutations over a base UTXO set
// without touching storage, so a block's transactions can be applied and
// validated in canonical order exactly per spec.md §4.5 step 4 ("apply
// each transaction in order to a scratch copy of the UTXO, aborting on
// any failure") while the real store stays untouched until the whole
// block has been accepted. Layers chain: a scratchUTXO's base may itself
// be another scratchUTXO, so a sequence of blocks can be simulated on top
// of each other before any of them is committed.
type scratchUTXO struct {
	base utxo.Set
	puts map[types.Hash]geometry.Triangle
	dels map[types.Hash]bool
}

func newScratchUTXO(base utxo.Set) *scratchUTXO {
	return &scratchUTXO{
		base: base,
		puts: make(map[types.Hash]geometry.Triangle),
		dels: make(map[types.Hash]bool),
	}
}

func (s *scratchUTXO) GetUTXO(hash types.Hash) (geometry.Triangle, bool) {
	if s.dels[hash] {
		return geometry.Triangle{}, false
	}
	if tri, ok := s.puts[hash]; ok {
		return tri, true
	}
	return s.base.GetUTXO(hash)
}

func (s *scratchUTXO) Put(tri geometry.Triangle) error {
	h := tri.Hash()
	delete(s.dels, h)
	s.puts[h] = tri
	return nil
}

func (s *scratchUTXO) Delete(hash types.Hash) error {
	delete(s.puts, hash)
	s.dels[hash] = true
	return nil
}

func (s *scratchUTXO) Has(hash types.Hash) (bool, error) {
	_, ok := s.GetUTXO(hash)
	return ok, nil
}

func (s *scratchUTXO) GetByAddress(addr types.Address) ([]geometry.Triangle, error) {
	return s.base.GetByAddress(addr)
}

// flushInto commits every pending mutation into a real UTXO store through
// a caller-supplied batch, so the whole block's UTXO diff lands atomically
// alongside the height index, undo records and chain metadata.
func (s *scratchUTXO) flushInto(b storage.Batch, store *utxo.Store) error {
	for hash := range s.dels {
		if err := store.DeleteBatch(b, hash); err != nil {
			return err
		}
	}
	for _, tri := range s.puts {
		if err := store.PutBatch(b, tri); err != nil {
			return err
		}
	}
	return nil
}

// flattenScratchLayers walks a chain of scratch layers from outermost
// (top) to innermost and returns them oldest-first, so flushing them in
// order onto real storage reproduces the net effect of the whole chain:
// a later layer's Put/Delete for the same key always lands after an
// earlier layer's, so the last writer wins exactly as it did in memory.
func flattenScratchLayers(top *scratchUTXO) []*scratchUTXO {
	var layers []*scratchUTXO
	cur := top
	for cur != nil {
		layers = append(layers, cur)
		base, ok := cur.base.(*scratchUTXO)
		if !ok {
			break
		}
		cur = base
	}
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return layers
}

// newRevertLayer builds a scratch layer that reverses a block's undo
// record on top of base, used to simulate "what the UTXO set looked like
// before this block" without mutating real storage. TxUndos are reversed
// in transaction order (last-applied-undone-first) to correctly unwind
// any intra-block chaining (e.g. a transaction spending an output created
// earlier in the same block).
func newRevertLayer(base utxo.Set, undo *BlockUndo) *scratchUTXO {
	layer := newScratchUTXO(base)
	for i := len(undo.TxUndos) - 1; i >= 0; i-- {
		u := undo.TxUndos[i]
		for _, h := range u.Added {
			layer.Delete(h)
		}
		for _, tri := range u.Removed {
			layer.Put(tri)
		}
	}
	return layer
}
