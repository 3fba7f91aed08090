package block

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

func headerKey(height types.Height) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(height))
	return buf
}

// HeaderStore persists the header of every block the processor has
// advanced past, by height, so backup_block can compare stored hashes
// against the daemon's during reorg detection.
type HeaderStore struct {
	db *storage.PrefixDB
}

func NewHeaderStore(db *storage.PrefixDB) *HeaderStore {
	return &HeaderStore{db: db}
}

func (h *HeaderStore) Put(header wire.Header) error {
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("header marshal: %w", err)
	}
	if err := h.db.StagePut(storage.ColHeader, headerKey(header.Height), data); err != nil {
		return fmt.Errorf("header put: %w", err)
	}
	return nil
}

func (h *HeaderStore) Delete(height types.Height) error {
	if err := h.db.StageDelete(storage.ColHeader, headerKey(height)); err != nil {
		return fmt.Errorf("header delete: %w", err)
	}
	return nil
}

func (h *HeaderStore) Get(height types.Height) (*wire.Header, error) {
	data, err := h.db.Get(storage.ColHeader, headerKey(height))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: height %d", ErrHeaderNotFound, height)
	}
	if err != nil {
		return nil, fmt.Errorf("header get: %w", err)
	}
	var header wire.Header
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("header unmarshal: %w", err)
	}
	return &header, nil
}
