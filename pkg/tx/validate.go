package tx

import (
	"errors"
	"fmt"

	"github.com/trinitychain/trinitychain/pkg/crypto"
)

// Standalone validation errors — these do not require UTXO access.
var (
	ErrMalformed        = errors.New("malformed transaction")
	ErrUnknownTag       = errors.New("unknown transaction tag")
	ErrNegativeAmount   = errors.New("amount is negative")
	ErrMemoTooLarge     = errors.New("memo too large")
	ErrZeroAddress      = errors.New("address is zero")
	ErrSignaturePresent = errors.New("coinbase must not be signed")
	ErrMissingSignature = errors.New("signature missing")
	ErrInvalidSignature = errors.New("signature does not verify")
	ErrPubKeyMismatch   = errors.New("public key does not hash to expected address")
	ErrWrongChildCount  = errors.New("subdivision must have exactly 3 children")
	ErrDegenerate       = errors.New("degenerate triangle")

	// Stateful validation errors — require UTXO access, defined here
	// because they're part of the same sentinel-error taxonomy.
	ErrInputNotFound      = errors.New("input UTXO not found")
	ErrOwnerMismatch      = errors.New("stored triangle owner mismatch")
	ErrInsufficientArea   = errors.New("amount + fee exceeds triangle area")
	ErrChildMismatch      = errors.New("subdivision child does not match parent.subdivide()")
	ErrDepthMismatch      = errors.New("subdivision child depth mismatch")
	ErrDepthExceeded      = errors.New("subdivision depth exceeds maximum")
	ErrFeeExceedsChildren = errors.New("subdivision fee exceeds sum of child areas")
	ErrHeightMismatch     = errors.New("coinbase block_height does not match containing block")
	ErrRewardExceeded     = errors.New("coinbase area exceeds block reward plus fees")
)

// Validate performs standalone validation: everything that can be checked
// without consulting the UTXO set (spec.md §4.2 "Standalone validation").
func (tx *Transaction) Validate() error {
	switch tx.Tag {
	case TagCoinbase:
		return tx.Coinbase.validate()
	case TagTransfer:
		return tx.Transfer.validate()
	case TagSubdivision:
		return tx.Subdivision.validate()
	default:
		return fmt.Errorf("%w: tag %d", ErrUnknownTag, tx.Tag)
	}
}

func (c *Coinbase) validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil coinbase", ErrMalformed)
	}
	if !c.Output.IsValid() {
		return ErrDegenerate
	}
	if c.Beneficiary.IsZero() {
		return ErrZeroAddress
	}
	return nil
}

func (t *Transfer) validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil transfer", ErrMalformed)
	}
	if t.Sender.IsZero() {
		return fmt.Errorf("sender: %w", ErrZeroAddress)
	}
	if t.NewOwner.IsZero() {
		return fmt.Errorf("new_owner: %w", ErrZeroAddress)
	}
	if t.Amount < 0 || t.FeeArea < 0 {
		return ErrNegativeAmount
	}
	if len(t.Memo) > MaxMemoBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrMemoTooLarge, len(t.Memo), MaxMemoBytes)
	}
	if len(t.Signature) == 0 {
		return ErrMissingSignature
	}
	expected := crypto.AddressFromPubKey(t.PublicKey)
	if expected != t.Sender {
		return fmt.Errorf("%w: sender %s, pubkey hashes to %s", ErrPubKeyMismatch, t.Sender, expected)
	}
	digest := crypto.Hash(t.signingBytes())
	if !crypto.VerifySignature(digest[:], t.Signature, t.PublicKey) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Subdivision) validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil subdivision", ErrMalformed)
	}
	if s.OwnerAddress.IsZero() {
		return fmt.Errorf("owner_address: %w", ErrZeroAddress)
	}
	if s.Fee < 0 {
		return ErrNegativeAmount
	}
	for i, child := range s.Children {
		if !child.IsValid() {
			return fmt.Errorf("child %d: %w", i, ErrDegenerate)
		}
	}
	if len(s.Signature) == 0 {
		return ErrMissingSignature
	}
	expected := crypto.AddressFromPubKey(s.PublicKey)
	if expected != s.OwnerAddress {
		return fmt.Errorf("%w: owner %s, pubkey hashes to %s", ErrPubKeyMismatch, s.OwnerAddress, expected)
	}
	digest := crypto.Hash(s.signingBytes())
	if !crypto.VerifySignature(digest[:], s.Signature, s.PublicKey) {
		return ErrInvalidSignature
	}
	return nil
}
