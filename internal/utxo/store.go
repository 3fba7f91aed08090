package utxo

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Store is the UTXO set: a primary row per live output keyed by
// (HashX, TxNum, nout), plus a secondary index mapping a spent outpoint
// back to its HashX without needing the full locking script. Grounded on
// the teacher's internal/utxo/store.go primary-row-plus-secondary-index
// shape, restructured around storage.PrefixDB so every write is staged and
// reversible.
type Store struct {
	db *storage.PrefixDB
}

// NewStore wraps db.
func NewStore(db *storage.PrefixDB) *Store {
	return &Store{db: db}
}

// Add stages a new UTXO. txHash is the creating transaction's hash (used
// only to build the mirror index's short key, not stored in full).
func (s *Store) Add(hashX types.HashX, txHash types.Hash, txNum types.TxNum, nout uint32, value uint64) error {
	if err := s.db.StagePut(storage.ColUTXO, utxoKey(hashX, txNum, nout), Entry{Value: value}.encode()); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if err := s.db.StagePut(storage.ColHashXUtxo, hashXUtxoKey(txHash, txNum, nout), hashX[:]); err != nil {
		return fmt.Errorf("hashx index put: %w", err)
	}
	return nil
}

// Spend stages removal of the UTXO created by (txHash, txNum, nout) and
// returns the HashX and value it carried, so the caller can update
// claimtrie effective-amount bookkeeping for whatever it was backing.
func (s *Store) Spend(txHash types.Hash, txNum types.TxNum, nout uint32) (types.HashX, uint64, error) {
	idxKey := hashXUtxoKey(txHash, txNum, nout)
	hxBytes, err := s.db.Get(storage.ColHashXUtxo, idxKey)
	if err != nil {
		return types.HashX{}, 0, fmt.Errorf("utxo spend: no index entry for tx_num=%d nout=%d: %w", txNum, nout, err)
	}
	var hashX types.HashX
	copy(hashX[:], hxBytes)

	valBytes, err := s.db.Get(storage.ColUTXO, utxoKey(hashX, txNum, nout))
	if err != nil {
		return types.HashX{}, 0, fmt.Errorf("utxo spend: missing primary row for tx_num=%d nout=%d: %w", txNum, nout, err)
	}
	entry := decodeEntry(valBytes)

	if err := s.db.StageDelete(storage.ColUTXO, utxoKey(hashX, txNum, nout)); err != nil {
		return types.HashX{}, 0, err
	}
	if err := s.db.StageDelete(storage.ColHashXUtxo, idxKey); err != nil {
		return types.HashX{}, 0, err
	}
	return hashX, entry.Value, nil
}

// HashXAt looks up the HashX a live UTXO belongs to without spending it,
// for callers (the mempool touch-set tracker) that only need to know whose
// balance an outpoint affects.
func (s *Store) HashXAt(txHash types.Hash, txNum types.TxNum, nout uint32) (types.HashX, error) {
	hxBytes, err := s.db.Get(storage.ColHashXUtxo, hashXUtxoKey(txHash, txNum, nout))
	if err != nil {
		return types.HashX{}, fmt.Errorf("hashx lookup for tx_num=%d nout=%d: %w", txNum, nout, err)
	}
	var hashX types.HashX
	copy(hashX[:], hxBytes)
	return hashX, nil
}

// Outpoint identifies one live UTXO row.
type Outpoint struct {
	TxNum types.TxNum
	Nout  uint32
	Value uint64
}

// ByHashX lists every live UTXO grouped under hashX, in TxNum order.
func (s *Store) ByHashX(hashX types.HashX) ([]Outpoint, error) {
	var out []Outpoint
	err := s.db.Iterate(storage.ColUTXO, hashX[:], false, func(key, value []byte) error {
		if len(key) != types.HashXSize+8+4 {
			return nil
		}
		txNum := types.TxNum(binary.BigEndian.Uint64(key[types.HashXSize : types.HashXSize+8]))
		nout := binary.BigEndian.Uint32(key[types.HashXSize+8:])
		out = append(out, Outpoint{TxNum: txNum, Nout: nout, Value: decodeEntry(value).Value})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan hashX %s: %w", hashX, err)
	}
	return out, nil
}

// Balance sums every live UTXO under hashX.
func (s *Store) Balance(hashX types.HashX) (uint64, error) {
	utxos, err := s.ByHashX(hashX)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total, nil
}
