// Package block defines block types, wire encoding, and structural validation.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/tx"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Block represents a block in the chain.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}

// Encode serializes the block per the wire format: header bytes, tx_count
// as a varint, then each transaction's own encoding.
func (b *Block) Encode() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, b.Header.SigningBytes()...)
	countBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(countBuf, uint64(len(b.Transactions)))
	buf = append(buf, countBuf[:n]...)
	for i, t := range b.Transactions {
		encoded, err := t.Encode()
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}

// Decode parses a block from its wire format.
func Decode(b []byte) (*Block, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("block: truncated header")
	}
	h, err := decodeHeader(b[:HeaderSize])
	if err != nil {
		return nil, err
	}
	rest := b[HeaderSize:]

	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, fmt.Errorf("block: malformed tx count")
	}
	rest = rest[n:]

	txs := make([]*tx.Transaction, 0, count)
	for i := uint64(0); i < count; i++ {
		t, consumed, err := tx.Decode(rest)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs = append(txs, t)
		rest = rest[consumed:]
	}

	return &Block{Header: h, Transactions: txs}, nil
}
