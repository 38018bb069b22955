package tx

import (
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// UTXOProvider gives stateful validation read-only access to the UTXO set,
// mirroring the teacher's tx.UTXOProvider boundary (internal/utxo.Set
// implements it) but keyed by triangle hash instead of outpoint.
type UTXOProvider interface {
	GetUTXO(hash types.Hash) (geometry.Triangle, bool)
}

// ValidateWithUTXOs performs full validation against UTXO state
// (spec.md §4.2 "Stateful validation"), returning the fee this
// transaction contributes to the enclosing block's reward cap. Coinbase
// is not stateful-validatable on its own — its height binding and reward
// cap depend on the containing block, so it returns a zero fee and lets
// the block-level check (internal/chain) do that work.
func (tx *Transaction) ValidateWithUTXOs(provider UTXOProvider, maxSubdivisionDepth uint8) (geometry.Coord, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	switch tx.Tag {
	case TagCoinbase:
		return 0, nil
	case TagTransfer:
		return tx.Transfer.validateWithUTXOs(provider)
	case TagSubdivision:
		return tx.Subdivision.validateWithUTXOs(provider, maxSubdivisionDepth)
	default:
		return 0, fmt.Errorf("%w: tag %d", ErrUnknownTag, tx.Tag)
	}
}

func (t *Transfer) validateWithUTXOs(provider UTXOProvider) (geometry.Coord, error) {
	stored, ok := provider.GetUTXO(t.InputHash)
	if !ok {
		return 0, fmt.Errorf("input %s: %w", t.InputHash, ErrInputNotFound)
	}
	if stored.Owner != t.Sender {
		return 0, fmt.Errorf("input %s: %w: owner %s, sender %s", t.InputHash, ErrOwnerMismatch, stored.Owner, t.Sender)
	}
	if t.Amount.Add(t.FeeArea) > stored.Area() {
		return 0, fmt.Errorf("input %s: %w", t.InputHash, ErrInsufficientArea)
	}
	return t.FeeArea, nil
}

func (s *Subdivision) validateWithUTXOs(provider UTXOProvider, maxDepth uint8) (geometry.Coord, error) {
	parent, ok := provider.GetUTXO(s.ParentHash)
	if !ok {
		return 0, fmt.Errorf("parent %s: %w", s.ParentHash, ErrInputNotFound)
	}
	if parent.Owner != s.OwnerAddress {
		return 0, fmt.Errorf("parent %s: %w: owner %s, owner_address %s", s.ParentHash, ErrOwnerMismatch, parent.Owner, s.OwnerAddress)
	}

	// Depth and parent_hash are consequences of the subdivide() relation,
	// not independent fields a sender can assert: the wire encoding
	// carries only child vertices. A child's depth is always
	// parent.depth + 1, so the only thing to enforce here is the bound.
	expectedDepth := parent.SubdivisionDepth + 1
	if expectedDepth > maxDepth {
		return 0, fmt.Errorf("%w: depth %d exceeds %d", ErrDepthExceeded, expectedDepth, maxDepth)
	}

	wantChildren := parent.Subdivide(s.OwnerAddress)
	var totalChildArea geometry.Coord
	for i := range s.Children {
		if !s.Children[i].A.Equal(wantChildren[i].A) ||
			!s.Children[i].B.Equal(wantChildren[i].B) ||
			!s.Children[i].C.Equal(wantChildren[i].C) {
			return 0, fmt.Errorf("child %d: %w", i, ErrChildMismatch)
		}
		totalChildArea = totalChildArea.Add(s.Children[i].Area())
	}
	if s.Fee > totalChildArea {
		return 0, fmt.Errorf("%w", ErrFeeExceedsChildren)
	}
	return s.Fee, nil
}
