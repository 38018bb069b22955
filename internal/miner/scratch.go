package miner

import (
	"github.com/trinitychain/trinitychain/internal/utxo"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// scratchSet overlays pending Put/Delete mutations over a base utxo.Set
// without touching the chain's live store, so a candidate block's
// transactions can be simulated in order and rejected individually on
// failure, per spec.md §4.7 step 3 ("simulate application onto a scratch
// UTXO, skipping any transaction whose application would fail"). It is
// the miner's own copy of the chain package's scratch-overlay technique,
// kept separate since the miner never needs flush-to-storage or undo
// replay, only a disposable read/write view for one block assembly pass.
type scratchSet struct {
	base utxo.Set
	puts map[types.Hash]geometry.Triangle
	dels map[types.Hash]bool
}

func newScratchSet(base utxo.Set) *scratchSet {
	return &scratchSet{
		base: base,
		puts: make(map[types.Hash]geometry.Triangle),
		dels: make(map[types.Hash]bool),
	}
}

func (s *scratchSet) GetUTXO(hash types.Hash) (geometry.Triangle, bool) {
	if s.dels[hash] {
		return geometry.Triangle{}, false
	}
	if tri, ok := s.puts[hash]; ok {
		return tri, true
	}
	return s.base.GetUTXO(hash)
}

func (s *scratchSet) Put(tri geometry.Triangle) error {
	h := tri.Hash()
	delete(s.dels, h)
	s.puts[h] = tri
	return nil
}

func (s *scratchSet) Delete(hash types.Hash) error {
	delete(s.puts, hash)
	s.dels[hash] = true
	return nil
}

func (s *scratchSet) Has(hash types.Hash) (bool, error) {
	_, ok := s.GetUTXO(hash)
	return ok, nil
}

func (s *scratchSet) GetByAddress(addr types.Address) ([]geometry.Triangle, error) {
	return s.base.GetByAddress(addr)
}
