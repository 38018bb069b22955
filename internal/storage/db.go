// Package storage provides database abstractions.
package storage

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch accumulates a set of writes that commit together. A canonical
// chain commit touches several keys at once (the height index, undo
// records, consumed/produced UTXO entries, chain metadata) and spec.md §5.6
// requires that no crash can be observed between them, so internal/chain
// writes those keys through a Batch. Block bodies, the cumulative-work
// cache and utxo.Store's own Put/Delete/ClearAll use individual
// DB.Put/Delete calls.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by a DB that can produce atomic batches.
type Batcher interface {
	NewBatch() Batch
}
