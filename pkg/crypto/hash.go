// Package crypto provides the cryptographic primitives TrinityChain's
// consensus relies on: SHA-256 hashing and secp256k1/ECDSA signatures.
package crypto

import (
	"crypto/sha256"

	"github.com/trinitychain/trinitychain/pkg/types"
)

// Hash computes the SHA-256 hash of data. SHA-256 is a protocol constant
// mandated everywhere a hash is consensus-relevant (triangle hashes,
// txids, block hashes, PoW targets) — not a library choice.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// AddressFromPubKey derives an address from a compressed public key:
// Address = SHA-256(compressed_pubkey).
func AddressFromPubKey(pubKey []byte) types.Address {
	return types.Address(Hash(pubKey))
}

// HashConcat hashes the concatenation of two hashes. Used to build Merkle
// trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [types.HashSize * 2]byte
	copy(buf[:types.HashSize], a[:])
	copy(buf[types.HashSize:], b[:])
	return Hash(buf[:])
}
