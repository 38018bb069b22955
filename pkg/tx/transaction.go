// Package tx defines TrinityChain's transaction model: a closed, tagged
// union of Coinbase, Transfer, and Subdivision variants, their canonical
// signing preimages, and txid derivation. Per spec.md §9 ("Polymorphism"),
// the variant is modeled as a tagged sum dispatched by Tag, not as
// subclasses behind a shared interface — validation logic differs enough
// per variant that unifying it would hide more than it reveals.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/crypto"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Tag identifies which variant a Transaction carries, matching the
// single-byte wire tag from spec.md §6 (0 = Coinbase, 1 = Transfer,
// 2 = Subdivision).
type Tag uint8

const (
	TagCoinbase    Tag = 0
	TagTransfer    Tag = 1
	TagSubdivision Tag = 2
)

func (t Tag) String() string {
	switch t {
	case TagCoinbase:
		return "coinbase"
	case TagTransfer:
		return "transfer"
	case TagSubdivision:
		return "subdivision"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// MaxMemoBytes bounds the Transfer memo field (spec.md §6 MAX_MEMO_BYTES).
const MaxMemoBytes = 256

// Coinbase mints a new triangle. It is never signed: block_height binds it
// to the block that contains it and extra_nonce lets the miner vary its
// canonical hash to dodge a UTXO collision.
type Coinbase struct {
	Output      geometry.Triangle `json:"output"`
	Beneficiary types.Address     `json:"beneficiary"`
	BlockHeight uint64            `json:"block_height"`
	ExtraNonce  uint64            `json:"extra_nonce"`
}

// Transfer re-owns an existing triangle in place: the UTXO hash does not
// change, only the stored Owner field does.
type Transfer struct {
	InputHash types.Hash     `json:"input_hash"`
	NewOwner  types.Address  `json:"new_owner"`
	Sender    types.Address  `json:"sender"`
	Amount    geometry.Coord `json:"amount"`
	FeeArea   geometry.Coord `json:"fee_area"`
	Nonce     uint64         `json:"nonce"`
	Signature []byte         `json:"signature"`
	PublicKey []byte         `json:"public_key"`
	Memo      []byte         `json:"memo,omitempty"`
}

// Subdivision consumes a parent triangle and inserts its three children.
type Subdivision struct {
	ParentHash   types.Hash           `json:"parent_hash"`
	Children     [3]geometry.Triangle `json:"children"`
	OwnerAddress types.Address        `json:"owner_address"`
	Fee          geometry.Coord       `json:"fee"`
	Nonce        uint64               `json:"nonce"`
	Signature    []byte               `json:"signature"`
	PublicKey    []byte               `json:"public_key"`
}

// Transaction is the tagged union. Exactly one of Coinbase/Transfer/
// Subdivision is non-nil, matching Tag.
type Transaction struct {
	Tag         Tag          `json:"tag"`
	Coinbase    *Coinbase    `json:"coinbase,omitempty"`
	Transfer    *Transfer    `json:"transfer,omitempty"`
	Subdivision *Subdivision `json:"subdivision,omitempty"`
}

// NewCoinbase wraps a Coinbase variant in a Transaction.
func NewCoinbase(c *Coinbase) *Transaction {
	return &Transaction{Tag: TagCoinbase, Coinbase: c}
}

// NewTransfer wraps a Transfer variant in a Transaction.
func NewTransfer(tr *Transfer) *Transaction {
	return &Transaction{Tag: TagTransfer, Transfer: tr}
}

// NewSubdivision wraps a Subdivision variant in a Transaction.
func NewSubdivision(s *Subdivision) *Transaction {
	return &Transaction{Tag: TagSubdivision, Subdivision: s}
}

// IsCoinbase reports whether this transaction is the block's coinbase.
func (tx *Transaction) IsCoinbase() bool {
	return tx.Tag == TagCoinbase
}

// signingPreimage returns the canonical byte encoding that is SHA-256'd
// before signing (Transfer/Subdivision) or hashed directly for the txid
// (all variants). It excludes Signature and PublicKey.
func (tx *Transaction) signingPreimage() ([]byte, error) {
	switch tx.Tag {
	case TagCoinbase:
		if tx.Coinbase == nil {
			return nil, fmt.Errorf("%w: coinbase tag with nil payload", ErrMalformed)
		}
		return tx.Coinbase.signingBytes(), nil
	case TagTransfer:
		if tx.Transfer == nil {
			return nil, fmt.Errorf("%w: transfer tag with nil payload", ErrMalformed)
		}
		return tx.Transfer.signingBytes(), nil
	case TagSubdivision:
		if tx.Subdivision == nil {
			return nil, fmt.Errorf("%w: subdivision tag with nil payload", ErrMalformed)
		}
		return tx.Subdivision.signingBytes(), nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownTag, tx.Tag)
	}
}

// signingBytes for Coinbase: tag ‖ output_vertices ‖ beneficiary ‖
// block_height_le ‖ extra_nonce_le. There is no signature to exclude —
// Coinbase is never signed — but the encoding still needs to be canonical
// so its hash (the txid) is deterministic.
func (c *Coinbase) signingBytes() []byte {
	buf := make([]byte, 0, 1+geometry.VerticesSize+types.AddressSize+16)
	buf = append(buf, byte(TagCoinbase))
	buf = c.Output.AppendVertices(buf)
	buf = append(buf, c.Beneficiary[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.BlockHeight)
	buf = binary.LittleEndian.AppendUint64(buf, c.ExtraNonce)
	return buf
}

// signingBytes for Transfer, per spec.md §4.2:
// b"TRANSFER\x00" ‖ input_hash ‖ new_owner ‖ sender ‖ amount_le ‖
// fee_area_le ‖ nonce_le ‖ memo_len_le ‖ memo_bytes.
func (t *Transfer) signingBytes() []byte {
	buf := make([]byte, 0, 9+types.HashSize+2*types.AddressSize+24+4+len(t.Memo))
	buf = append(buf, []byte("TRANSFER\x00")...)
	buf = append(buf, t.InputHash[:]...)
	buf = append(buf, t.NewOwner[:]...)
	buf = append(buf, t.Sender[:]...)
	buf = t.Amount.AppendLE(buf)
	buf = t.FeeArea.AppendLE(buf)
	buf = binary.LittleEndian.AppendUint64(buf, t.Nonce)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Memo)))
	buf = append(buf, t.Memo...)
	return buf
}

// signingBytes for Subdivision, per spec.md §4.2:
// b"SUBDIV\x00\x00\x00" ‖ parent_hash ‖ child0_hash ‖ child1_hash ‖
// child2_hash ‖ owner ‖ fee_le ‖ nonce_le.
func (s *Subdivision) signingBytes() []byte {
	buf := make([]byte, 0, 9+types.HashSize*4+types.AddressSize+16)
	buf = append(buf, []byte("SUBDIV\x00\x00\x00")...)
	buf = append(buf, s.ParentHash[:]...)
	for _, child := range s.Children {
		h := child.Hash()
		buf = append(buf, h[:]...)
	}
	buf = append(buf, s.OwnerAddress[:]...)
	buf = s.Fee.AppendLE(buf)
	buf = binary.LittleEndian.AppendUint64(buf, s.Nonce)
	return buf
}

// Hash computes the txid: SHA-256 over the canonical signing preimage.
// For Transfer/Subdivision this is the same digest that gets signed; for
// Coinbase it is simply the canonical encoding's hash since there is no
// signature.
func (tx *Transaction) Hash() (types.Hash, error) {
	preimage, err := tx.signingPreimage()
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(preimage), nil
}
