package utxo

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// TxIndex maps every confirmed transaction between its hash and its dense
// TxNum, the ordinal the rest of the storage layer keys rows by. Assigning
// TxNums is the block processor's job (one per transaction, in block
// order); this type only persists the mapping.
type TxIndex struct {
	db *storage.PrefixDB
}

// NewTxIndex wraps db.
func NewTxIndex(db *storage.PrefixDB) *TxIndex {
	return &TxIndex{db: db}
}

func txNumKey(txNum types.TxNum) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(txNum))
	return key
}

// Put stages the hash<->TxNum mapping for a newly confirmed transaction.
func (t *TxIndex) Put(txHash types.Hash, txNum types.TxNum) error {
	if err := t.db.StagePut(storage.ColTxNum, txHash[:], txNumKey(txNum)); err != nil {
		return fmt.Errorf("tx_num put: %w", err)
	}
	if err := t.db.StagePut(storage.ColTxHash, txNumKey(txNum), txHash[:]); err != nil {
		return fmt.Errorf("tx_hash put: %w", err)
	}
	return nil
}

// Delete unstages a transaction's mapping, used when backing out a block.
func (t *TxIndex) Delete(txHash types.Hash, txNum types.TxNum) error {
	if err := t.db.StageDelete(storage.ColTxNum, txHash[:]); err != nil {
		return err
	}
	return t.db.StageDelete(storage.ColTxHash, txNumKey(txNum))
}

// TxNum looks up the TxNum assigned to txHash.
func (t *TxIndex) TxNum(txHash types.Hash) (types.TxNum, error) {
	v, err := t.db.Get(storage.ColTxNum, txHash[:])
	if err != nil {
		return 0, fmt.Errorf("tx_num lookup for %s: %w", txHash, err)
	}
	return types.TxNum(binary.BigEndian.Uint64(v)), nil
}

// TxHash looks up the hash of the transaction assigned txNum.
func (t *TxIndex) TxHash(txNum types.TxNum) (types.Hash, error) {
	v, err := t.db.Get(storage.ColTxHash, txNumKey(txNum))
	if err != nil {
		return types.Hash{}, fmt.Errorf("tx_hash lookup for %d: %w", txNum, err)
	}
	var h types.Hash
	copy(h[:], v)
	return h, nil
}
