package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Encode returns the full wire encoding of a transaction: tag byte
// followed by variant fields in canonical order (spec.md §6), including
// Signature/PublicKey/Memo — unlike signingBytes, which excludes them.
func (tx *Transaction) Encode() ([]byte, error) {
	switch tx.Tag {
	case TagCoinbase:
		if tx.Coinbase == nil {
			return nil, fmt.Errorf("%w: coinbase tag with nil payload", ErrMalformed)
		}
		buf := []byte{byte(TagCoinbase)}
		buf = tx.Coinbase.Output.AppendVertices(buf)
		buf = append(buf, tx.Coinbase.Beneficiary[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, tx.Coinbase.BlockHeight)
		buf = binary.LittleEndian.AppendUint64(buf, tx.Coinbase.ExtraNonce)
		return buf, nil
	case TagTransfer:
		t := tx.Transfer
		if t == nil {
			return nil, fmt.Errorf("%w: transfer tag with nil payload", ErrMalformed)
		}
		buf := []byte{byte(TagTransfer)}
		buf = append(buf, t.InputHash[:]...)
		buf = append(buf, t.NewOwner[:]...)
		buf = append(buf, t.Sender[:]...)
		buf = t.Amount.AppendLE(buf)
		buf = t.FeeArea.AppendLE(buf)
		buf = binary.LittleEndian.AppendUint64(buf, t.Nonce)
		buf = appendBytesLP(buf, t.Signature)
		buf = appendBytesLP(buf, t.PublicKey)
		buf = appendBytesLP(buf, t.Memo)
		return buf, nil
	case TagSubdivision:
		s := tx.Subdivision
		if s == nil {
			return nil, fmt.Errorf("%w: subdivision tag with nil payload", ErrMalformed)
		}
		buf := []byte{byte(TagSubdivision)}
		buf = append(buf, s.ParentHash[:]...)
		for _, child := range s.Children {
			buf = child.AppendVertices(buf)
		}
		buf = append(buf, s.OwnerAddress[:]...)
		buf = s.Fee.AppendLE(buf)
		buf = binary.LittleEndian.AppendUint64(buf, s.Nonce)
		buf = appendBytesLP(buf, s.Signature)
		buf = appendBytesLP(buf, s.PublicKey)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownTag, tx.Tag)
	}
}

// Decode parses the wire encoding produced by Encode. Decoded Coinbase
// and Subdivision-child triangles carry only vertices on the wire: Decode
// sets Owner from the surrounding field (beneficiary for Coinbase,
// owner_address for Subdivision children) and leaves ParentHash/
// SubdivisionDepth zero-valued; those follow from the subdivide()
// relationship and are derived by the caller.
func Decode(b []byte) (*Transaction, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("%w: empty transaction", ErrMalformed)
	}
	tag := Tag(b[0])
	b = b[1:]
	n := 1

	switch tag {
	case TagCoinbase:
		need := geometry.VerticesSize + types.AddressSize + 16
		if len(b) < need {
			return nil, 0, fmt.Errorf("%w: truncated coinbase", ErrMalformed)
		}
		a, bb, c := geometry.DecodeVertices(b[:geometry.VerticesSize])
		b = b[geometry.VerticesSize:]
		var beneficiary types.Address
		copy(beneficiary[:], b[:types.AddressSize])
		b = b[types.AddressSize:]
		height := binary.LittleEndian.Uint64(b[:8])
		b = b[8:]
		extraNonce := binary.LittleEndian.Uint64(b[:8])
		n += need
		return NewCoinbase(&Coinbase{
			Output:      geometry.Triangle{A: a, B: bb, C: c, Owner: beneficiary},
			Beneficiary: beneficiary,
			BlockHeight: height,
			ExtraNonce:  extraNonce,
		}), n, nil

	case TagTransfer:
		need := types.HashSize + 2*types.AddressSize + 8 + 8 + 8
		if len(b) < need {
			return nil, 0, fmt.Errorf("%w: truncated transfer", ErrMalformed)
		}
		var t Transfer
		copy(t.InputHash[:], b[:types.HashSize])
		b = b[types.HashSize:]
		copy(t.NewOwner[:], b[:types.AddressSize])
		b = b[types.AddressSize:]
		copy(t.Sender[:], b[:types.AddressSize])
		b = b[types.AddressSize:]
		t.Amount = geometry.CoordFromBytes(b[:8])
		b = b[8:]
		t.FeeArea = geometry.CoordFromBytes(b[:8])
		b = b[8:]
		t.Nonce = binary.LittleEndian.Uint64(b[:8])
		b = b[8:]
		n += need

		sig, rest, consumed, err := readBytesLP(b)
		if err != nil {
			return nil, 0, err
		}
		t.Signature, b, n = sig, rest, n+consumed

		pub, rest, consumed, err := readBytesLP(b)
		if err != nil {
			return nil, 0, err
		}
		t.PublicKey, b, n = pub, rest, n+consumed

		memo, _, consumed, err := readBytesLP(b)
		if err != nil {
			return nil, 0, err
		}
		t.Memo, n = memo, n+consumed

		return NewTransfer(&t), n, nil

	case TagSubdivision:
		need := types.HashSize + geometry.VerticesSize*3 + types.AddressSize + 16
		if len(b) < need {
			return nil, 0, fmt.Errorf("%w: truncated subdivision", ErrMalformed)
		}
		var s Subdivision
		copy(s.ParentHash[:], b[:types.HashSize])
		b = b[types.HashSize:]
		for i := 0; i < 3; i++ {
			a, bb, c := geometry.DecodeVertices(b[:geometry.VerticesSize])
			b = b[geometry.VerticesSize:]
			s.Children[i] = geometry.Triangle{A: a, B: bb, C: c}
		}
		copy(s.OwnerAddress[:], b[:types.AddressSize])
		b = b[types.AddressSize:]
		for i := range s.Children {
			s.Children[i].Owner = s.OwnerAddress
		}
		s.Fee = geometry.CoordFromBytes(b[:8])
		b = b[8:]
		s.Nonce = binary.LittleEndian.Uint64(b[:8])
		b = b[8:]
		n += need

		sig, rest, consumed, err := readBytesLP(b)
		if err != nil {
			return nil, 0, err
		}
		s.Signature, b, n = sig, rest, n+consumed

		pub, _, consumed, err := readBytesLP(b)
		if err != nil {
			return nil, 0, err
		}
		s.PublicKey, n = pub, n+consumed

		return NewSubdivision(&s), n, nil

	default:
		return nil, 0, fmt.Errorf("%w: tag %d", ErrUnknownTag, tag)
	}
}

func appendBytesLP(dst []byte, b []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

func readBytesLP(b []byte) (value []byte, rest []byte, consumed int, err error) {
	if len(b) < 4 {
		return nil, nil, 0, fmt.Errorf("%w: truncated length-prefixed field", ErrMalformed)
	}
	l := binary.LittleEndian.Uint32(b[:4])
	if uint32(len(b)-4) < l {
		return nil, nil, 0, fmt.Errorf("%w: truncated length-prefixed field body", ErrMalformed)
	}
	value = make([]byte, l)
	copy(value, b[4:4+l])
	return value, b[4+l:], 4 + int(l), nil
}
