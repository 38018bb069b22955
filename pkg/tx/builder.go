package tx

import (
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/crypto"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// BuildTransfer constructs and signs a Transfer spending inputHash, owned
// by key, re-assigning it to newOwner. amount/feeArea are accounting
// fields only (spec.md §9 open question #1): they never shrink the
// triangle's geometry.
func BuildTransfer(key *crypto.PrivateKey, inputHash types.Hash, newOwner types.Address, amount, feeArea geometry.Coord, nonce uint64, memo []byte) (*Transfer, error) {
	t := &Transfer{
		InputHash: inputHash,
		NewOwner:  newOwner,
		Sender:    crypto.AddressFromPubKey(key.PublicKey()),
		Amount:    amount,
		FeeArea:   feeArea,
		Nonce:     nonce,
		PublicKey: key.PublicKey(),
		Memo:      memo,
	}
	digest := crypto.Hash(t.signingBytes())
	sig, err := key.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	t.Signature = sig
	return t, nil
}

// BuildSubdivision constructs and signs a Subdivision splitting parent
// (owned by key) into its three children.
func BuildSubdivision(key *crypto.PrivateKey, parent geometry.Triangle, fee geometry.Coord, nonce uint64) (*Subdivision, error) {
	owner := crypto.AddressFromPubKey(key.PublicKey())
	parentHash := parent.Hash()
	s := &Subdivision{
		ParentHash:   parentHash,
		Children:     parent.Subdivide(owner),
		OwnerAddress: owner,
		Fee:          fee,
		Nonce:        nonce,
		PublicKey:    key.PublicKey(),
	}
	digest := crypto.Hash(s.signingBytes())
	sig, err := key.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign subdivision: %w", err)
	}
	s.Signature = sig
	return s, nil
}
