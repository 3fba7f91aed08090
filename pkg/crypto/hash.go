// Package crypto provides the hashing and signature primitives the
// claimtrie engine needs: content hashing, claim-id derivation, and
// channel signature verification.
package crypto

import (
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// HashConcat hashes the concatenation of two hashes. Used for merkle trees
// and for deriving a claim's ClaimHash from its root outpoint.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// ClaimHashFromOutpoint derives a ClaimHash from the outpoint that first
// created the claim. A claim keeps this id across every update in its
// lifetime even though its controlling UTXO changes.
func ClaimHashFromOutpoint(txHash types.Hash, nout uint32) types.ClaimHash {
	buf := make([]byte, 0, types.HashSize+4)
	buf = append(buf, txHash[:]...)
	buf = append(buf, byte(nout), byte(nout>>8), byte(nout>>16), byte(nout>>24))
	full := Hash(buf)
	var c types.ClaimHash
	copy(c[:], full[:types.ClaimHashSize])
	return c
}
