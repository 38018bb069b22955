package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignatureSize is the length of a compact ECDSA signature: a 32-byte R
// scalar followed by a 32-byte S scalar, no recovery byte or DER framing.
const SignatureSize = 64

// Signer signs message hashes with a private key, producing compact
// ECDSA/secp256k1 signatures.
type Signer interface {
	// Sign produces a 64-byte compact ECDSA signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// Verifier verifies compact ECDSA/secp256k1 signatures.
type Verifier interface {
	// Verify checks a compact signature against a hash and compressed
	// public key.
	Verify(hash, signature, publicKey []byte) bool
}

// PrivateKey wraps a secp256k1 private key for ECDSA signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a compact (64-byte, R||S) ECDSA signature over a 32-byte
// hash, per this chain's wire format for Transfer and Subdivision
// signatures.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig := ecdsa.Sign(pk.key, hash)

	out := make([]byte, SignatureSize)
	r := sig.R().Bytes()
	s := sig.S().Bytes()
	copy(out[:32], r[:])
	copy(out[32:], s[:])
	return out, nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a compact (64-byte, R||S) ECDSA signature
// against a 32-byte hash and a compressed public key. Returns false on
// any malformed input rather than an error, matching how callers treat
// signature failures as a rejection, not a fault.
func VerifySignature(hash, signature, publicKey []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow {
		return false
	}

	sig := ecdsa.NewSignature(&r, &s)
	return sig.Verify(hash, pubKey)
}

// ECDSAVerifier implements the Verifier interface.
type ECDSAVerifier struct{}

// Verify checks a compact signature against a hash and compressed public key.
func (v ECDSAVerifier) Verify(hash, signature, publicKey []byte) bool {
	return VerifySignature(hash, signature, publicKey)
}
