package block

import (
	"encoding/binary"
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/crypto"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// HeaderSize is the fixed wire size of a Header.
const HeaderSize = 8 + types.HashSize + 8 + 8 + 8 + types.HashSize

// Header contains block metadata. Field order here is the canonical wire
// and hashing order: height, previous_hash, timestamp, difficulty, nonce,
// merkle_root.
type Header struct {
	Height       uint64     `json:"height"`
	PreviousHash types.Hash `json:"previous_hash"`
	Timestamp    int64      `json:"timestamp"`
	Difficulty   uint64     `json:"difficulty"`
	Nonce        uint64     `json:"nonce"`
	MerkleRoot   types.Hash `json:"merkle_root"`
}

// Hash computes the block header hash: SHA-256 of the header in field
// order with all integers little-endian.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// SigningBytes returns the canonical byte encoding of the header.
// Format: height(8) | previous_hash(32) | timestamp(8) | difficulty(8) | nonce(8) | merkle_root(32)
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = append(buf, h.PreviousHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, h.Difficulty)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	buf = append(buf, h.MerkleRoot[:]...)
	return buf
}

// decodeHeader parses a Header from its fixed-size wire encoding.
func decodeHeader(b []byte) (*Header, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("header: want %d bytes, got %d", HeaderSize, len(b))
	}
	h := &Header{}
	off := 0
	h.Height = binary.LittleEndian.Uint64(b[off:])
	off += 8
	copy(h.PreviousHash[:], b[off:off+types.HashSize])
	off += types.HashSize
	h.Timestamp = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	h.Difficulty = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.Nonce = binary.LittleEndian.Uint64(b[off:])
	off += 8
	copy(h.MerkleRoot[:], b[off:off+types.HashSize])
	return h, nil
}
