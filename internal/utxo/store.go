package utxo

import (
	"encoding/json"
	"fmt"

	"github.com/trinitychain/trinitychain/internal/storage"
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<triangle_hash(32)> -> Triangle JSON
	prefixAddr = []byte("a/") // a/<address(32)><triangle_hash(32)> -> empty (index)
)

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func utxoKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixUTXO)+types.HashSize)
	copy(key, prefixUTXO)
	copy(key[len(prefixUTXO):], hash[:])
	return key
}

func addrKey(addr types.Address, hash types.Hash) []byte {
	key := make([]byte, len(prefixAddr)+types.AddressSize+types.HashSize)
	copy(key, prefixAddr)
	copy(key[len(prefixAddr):], addr[:])
	copy(key[len(prefixAddr)+types.AddressSize:], hash[:])
	return key
}

// GetUTXO retrieves a triangle by its canonical hash, matching
// pkg/tx.UTXOProvider's boundary.
func (s *Store) GetUTXO(hash types.Hash) (geometry.Triangle, bool) {
	data, err := s.db.Get(utxoKey(hash))
	if err != nil {
		return geometry.Triangle{}, false
	}
	var tri geometry.Triangle
	if err := json.Unmarshal(data, &tri); err != nil {
		return geometry.Triangle{}, false
	}
	return tri, true
}

// Put stores a triangle and indexes it by owner address.
func (s *Store) Put(tri geometry.Triangle) error {
	data, err := json.Marshal(tri)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	hash := tri.Hash()
	if err := s.db.Put(utxoKey(hash), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if err := s.db.Put(addrKey(tri.Owner, hash), []byte{}); err != nil {
		return fmt.Errorf("utxo address index put: %w", err)
	}
	return nil
}

// Delete removes a triangle and its address index entry.
func (s *Store) Delete(hash types.Hash) error {
	if tri, ok := s.GetUTXO(hash); ok {
		s.db.Delete(addrKey(tri.Owner, hash))
	}
	if err := s.db.Delete(utxoKey(hash)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// PutBatch writes a triangle's UTXO and address-index entries into a
// caller-supplied batch instead of committing directly, so a whole block's
// UTXO diff can land in a single atomic write alongside the height index,
// undo records and chain metadata (internal/chain's commit path).
func (s *Store) PutBatch(b storage.Batch, tri geometry.Triangle) error {
	data, err := json.Marshal(tri)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	hash := tri.Hash()
	if err := b.Put(utxoKey(hash), data); err != nil {
		return fmt.Errorf("utxo batch put: %w", err)
	}
	if err := b.Put(addrKey(tri.Owner, hash), []byte{}); err != nil {
		return fmt.Errorf("utxo address index batch put: %w", err)
	}
	return nil
}

// DeleteBatch removes a triangle's UTXO and address-index entries via a
// caller-supplied batch. The owner is looked up against the live store
// (not the batch) since a batch has no read-your-writes view here.
func (s *Store) DeleteBatch(b storage.Batch, hash types.Hash) error {
	if tri, ok := s.GetUTXO(hash); ok {
		if err := b.Delete(addrKey(tri.Owner, hash)); err != nil {
			return fmt.Errorf("utxo address index batch delete: %w", err)
		}
	}
	if err := b.Delete(utxoKey(hash)); err != nil {
		return fmt.Errorf("utxo batch delete: %w", err)
	}
	return nil
}

// Has checks if a UTXO exists for the given hash.
func (s *Store) Has(hash types.Hash) (bool, error) {
	return s.db.Has(utxoKey(hash))
}

// GetByAddress returns all triangles owned by addr, backing spec.md §6's
// iter_utxos_by_owner via the address index maintained on Put/Delete.
func (s *Store) GetByAddress(addr types.Address) ([]geometry.Triangle, error) {
	prefix := make([]byte, len(prefixAddr)+types.AddressSize)
	copy(prefix, prefixAddr)
	copy(prefix[len(prefixAddr):], addr[:])

	var out []geometry.Triangle
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		off := len(prefixAddr) + types.AddressSize
		if len(key) < off+types.HashSize {
			return nil
		}
		var hash types.Hash
		copy(hash[:], key[off:off+types.HashSize])
		// An index entry left behind by an owner change is skipped: the
		// stored triangle now belongs to another address.
		if tri, ok := s.GetUTXO(hash); ok && tri.Owner == addr {
			out = append(out, tri)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return out, nil
}

// ClearAll removes every UTXO and index entry, with one DB.Delete per key
// rather than a single batch. Nothing in internal/chain calls it.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixAddr} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return nil
}
