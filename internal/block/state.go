// Package block runs the per-block processing pipeline: per-transaction
// UTXO and claimtrie updates, expiry, activation/takeover resolution, and
// the reorg control loop that keeps local state lined up with the
// upstream daemon.
package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// State is the chain tip this processor has caught up to.
type State struct {
	Height  types.Height
	TipHash types.Hash
	TxCount uint64
}

// IsGenesis reports whether no blocks have been processed yet.
func (s State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}

var tipKey = []byte("tip")

func encodeState(s State) []byte {
	buf := make([]byte, 4+types.HashSize+8)
	binary.BigEndian.PutUint32(buf, uint32(s.Height))
	copy(buf[4:], s.TipHash[:])
	binary.BigEndian.PutUint64(buf[4+types.HashSize:], s.TxCount)
	return buf
}

func decodeState(data []byte) (State, error) {
	if len(data) != 4+types.HashSize+8 {
		return State{}, fmt.Errorf("tip record: want %d bytes, got %d", 4+types.HashSize+8, len(data))
	}
	var s State
	s.Height = types.Height(binary.BigEndian.Uint32(data))
	copy(s.TipHash[:], data[4:4+types.HashSize])
	s.TxCount = binary.BigEndian.Uint64(data[4+types.HashSize:])
	return s, nil
}

// TipStore persists the processor's current chain tip.
type TipStore struct {
	db *storage.PrefixDB
}

func NewTipStore(db *storage.PrefixDB) *TipStore {
	return &TipStore{db: db}
}

// Get returns the current tip, or the genesis zero-value if nothing has
// been committed yet.
func (t *TipStore) Get() (State, error) {
	data, err := t.db.Get(storage.ColTip, tipKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read tip: %w", err)
	}
	return decodeState(data)
}

// Put stages the new tip.
func (t *TipStore) Put(s State) error {
	if err := t.db.StagePut(storage.ColTip, tipKey, encodeState(s)); err != nil {
		return fmt.Errorf("stage tip: %w", err)
	}
	return nil
}
