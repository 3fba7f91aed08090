// Package utxo tracks the unspent-output set and the tx-hash/TxNum mapping
// it's keyed by, staged through a storage.PrefixDB so every change is
// reversible on reorg.
package utxo

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Entry is the value stored for a live UTXO: just the amount. Everything
// else about the output (which script classified it, its claim metadata)
// lives in internal/claimtrie, keyed by the same outpoint.
type Entry struct {
	Value uint64
}

func (e Entry) encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, e.Value)
	return buf
}

func decodeEntry(b []byte) Entry {
	return Entry{Value: binary.BigEndian.Uint64(b)}
}

// utxoKey builds the primary UTXO row key: hashX(11) + tx_num(8) + nout(4).
// Grouping by HashX first means every UTXO belonging to one script sorts
// contiguously, so computing an address's balance is one prefix scan.
func utxoKey(hashX types.HashX, txNum types.TxNum, nout uint32) []byte {
	key := make([]byte, types.HashXSize+8+4)
	copy(key, hashX[:])
	binary.BigEndian.PutUint64(key[types.HashXSize:], uint64(txNum))
	binary.BigEndian.PutUint32(key[types.HashXSize+8:], nout)
	return key
}

// hashXUtxoKey builds the mirror index row key: a 4-byte tx-hash prefix
// (enough to disambiguate in practice, per the teacher's own terse index
// keys) + tx_num(8) + nout(4). Given only a spent outpoint's TxNum and
// nout, this index recovers which HashX the primary row lives under
// without storing the full script.
func hashXUtxoKey(txHash types.Hash, txNum types.TxNum, nout uint32) []byte {
	key := make([]byte, 4+8+4)
	copy(key, txHash[:4])
	binary.BigEndian.PutUint64(key[4:], uint64(txNum))
	binary.BigEndian.PutUint32(key[12:], nout)
	return key
}
