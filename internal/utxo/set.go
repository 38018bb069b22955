// Package utxo manages the UTXO set: the live collection of unspent
// triangles, keyed by their canonical geometric hash.
package utxo

import (
	"github.com/trinitychain/trinitychain/pkg/geometry"
	"github.com/trinitychain/trinitychain/pkg/types"
)

// Set is the interface for UTXO storage, matching pkg/tx.UTXOProvider plus
// the mutation and address-lookup operations the chain and mempool need.
type Set interface {
	GetUTXO(hash types.Hash) (geometry.Triangle, bool)
	Put(tri geometry.Triangle) error
	Delete(hash types.Hash) error
	Has(hash types.Hash) (bool, error)
	GetByAddress(addr types.Address) ([]geometry.Triangle, error)
}
