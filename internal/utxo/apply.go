package utxo

import (
	"errors"
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// ErrUndoMismatch is returned by Undo when the UTXO set no longer matches
// what the undo record expects, signalling a corrupted or out-of-order
// reorg unwind.
var ErrUndoMismatch = errors.New("utxo undo does not match current set")

// TxUndo records what a single transaction changed, in enough detail to
// reverse it exactly: the full triangle(s) it removed (so they can be
// reinserted) and the hash(es) of what it inserted (so they can be
// removed again).
type TxUndo struct {
	Removed []geometry.Triangle `json:"removed"`
	Added   []types.Hash        `json:"added"`
}

// Apply mutates the set per spec.md §4.2 semantics for the given
// transaction and returns the undo record needed to reverse it.
//
//   - Coinbase: inserts Output only.
//   - Transfer: removes InputHash's triangle, reinserts the same triangle
//     with Owner := NewOwner (hash is unchanged, since Owner is not part
//     of the canonical hash).
//   - Subdivision: removes the parent, inserts parent.Subdivide(owner) —
//     never the transaction's own Children field, whose ParentHash/
//     SubdivisionDepth may be zero-valued after wire decode (pkg/tx
//     intentionally omits them from the wire format).
func Apply(set Set, transaction *tx.Transaction) (TxUndo, error) {
	switch transaction.Tag {
	case tx.TagCoinbase:
		return applyCoinbase(set, transaction.Coinbase)
	case tx.TagTransfer:
		return applyTransfer(set, transaction.Transfer)
	case tx.TagSubdivision:
		return applySubdivision(set, transaction.Subdivision)
	default:
		return TxUndo{}, fmt.Errorf("apply: unknown tag %d", transaction.Tag)
	}
}

func applyCoinbase(set Set, c *tx.Coinbase) (TxUndo, error) {
	if err := set.Put(c.Output); err != nil {
		return TxUndo{}, fmt.Errorf("apply coinbase: %w", err)
	}
	return TxUndo{Added: []types.Hash{c.Output.Hash()}}, nil
}

func applyTransfer(set Set, t *tx.Transfer) (TxUndo, error) {
	tri, ok := set.GetUTXO(t.InputHash)
	if !ok {
		return TxUndo{}, fmt.Errorf("apply transfer: input %s not found", t.InputHash)
	}
	if err := set.Delete(t.InputHash); err != nil {
		return TxUndo{}, fmt.Errorf("apply transfer: %w", err)
	}
	tri.Owner = t.NewOwner
	if err := set.Put(tri); err != nil {
		return TxUndo{}, fmt.Errorf("apply transfer: reinsert: %w", err)
	}
	original := tri
	original.Owner = t.Sender
	return TxUndo{Removed: []geometry.Triangle{original}, Added: []types.Hash{tri.Hash()}}, nil
}

func applySubdivision(set Set, s *tx.Subdivision) (TxUndo, error) {
	parent, ok := set.GetUTXO(s.ParentHash)
	if !ok {
		return TxUndo{}, fmt.Errorf("apply subdivision: parent %s not found", s.ParentHash)
	}
	if err := set.Delete(s.ParentHash); err != nil {
		return TxUndo{}, fmt.Errorf("apply subdivision: %w", err)
	}
	children := parent.Subdivide(s.OwnerAddress)
	added := make([]types.Hash, 0, len(children))
	for _, child := range children {
		if err := set.Put(child); err != nil {
			return TxUndo{}, fmt.Errorf("apply subdivision: insert child: %w", err)
		}
		added = append(added, child.Hash())
	}
	return TxUndo{Removed: []geometry.Triangle{parent}, Added: added}, nil
}

// Undo reverses Apply given the TxUndo it produced: deletes everything it
// added and reinserts everything it removed.
func Undo(set Set, undo TxUndo) error {
	for _, hash := range undo.Added {
		if _, ok := set.GetUTXO(hash); !ok {
			return fmt.Errorf("%w: added %s is not in the set", ErrUndoMismatch, hash)
		}
		if err := set.Delete(hash); err != nil {
			return fmt.Errorf("undo: delete %s: %w", hash, err)
		}
	}
	for _, tri := range undo.Removed {
		if err := set.Put(tri); err != nil {
			return fmt.Errorf("undo: reinsert %s: %w", tri.Hash(), err)
		}
	}
	return nil
}
