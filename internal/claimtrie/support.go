package claimtrie

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Support is a stake that boosts a claim's effective amount without
// contending for control itself.
type Support struct {
	ClaimHash types.ClaimHash `json:"claim_hash"`
	TxNum     types.TxNum     `json:"tx_num"`
	Nout      uint32          `json:"nout"`

	Amount uint64       `json:"amount"`
	Height types.Height `json:"height"`

	// ChannelHash/SignatureValid mirror Claim's signing fields: a support
	// can itself be signed by a channel.
	ChannelHash    types.ClaimHash `json:"channel_hash"`
	SignatureValid bool            `json:"signature_valid"`
}

func supportKey(claimHash types.ClaimHash, txNum types.TxNum, nout uint32) []byte {
	key := make([]byte, types.ClaimHashSize+8+4)
	copy(key, claimHash[:])
	binary.BigEndian.PutUint64(key[types.ClaimHashSize:], uint64(txNum))
	binary.BigEndian.PutUint32(key[types.ClaimHashSize+8:], nout)
	return key
}

func supportTxoKey(txNum types.TxNum, nout uint32) []byte {
	key := make([]byte, 8+4)
	binary.BigEndian.PutUint64(key, uint64(txNum))
	binary.BigEndian.PutUint32(key[8:], nout)
	return key
}

// SupportStore persists Support records keyed by the claim they target,
// so every support on a claim can be summed with a single prefix scan.
type SupportStore struct {
	db *storage.PrefixDB
}

func NewSupportStore(db *storage.PrefixDB) *SupportStore {
	return &SupportStore{db: db}
}

func (s *SupportStore) Put(sup *Support) error {
	data, err := json.Marshal(sup)
	if err != nil {
		return fmt.Errorf("support marshal: %w", err)
	}
	key := supportKey(sup.ClaimHash, sup.TxNum, sup.Nout)
	if err := s.db.StagePut(storage.ColSupport, key, data); err != nil {
		return fmt.Errorf("support put: %w", err)
	}
	if err := s.db.StagePut(storage.ColSupportByTxo, supportTxoKey(sup.TxNum, sup.Nout), data); err != nil {
		return fmt.Errorf("support by-txo index put: %w", err)
	}
	return nil
}

func (s *SupportStore) Delete(sup *Support) error {
	key := supportKey(sup.ClaimHash, sup.TxNum, sup.Nout)
	if err := s.db.StageDelete(storage.ColSupport, key); err != nil {
		return fmt.Errorf("support delete: %w", err)
	}
	if err := s.db.StageDelete(storage.ColSupportByTxo, supportTxoKey(sup.TxNum, sup.Nout)); err != nil {
		return fmt.Errorf("support by-txo index delete: %w", err)
	}
	return nil
}

// ByTxo looks up the support currently backed by the output (txNum,
// nout), used to classify a spent output as a support spend.
func (s *SupportStore) ByTxo(txNum types.TxNum, nout uint32) (*Support, error) {
	data, err := s.db.Get(storage.ColSupportByTxo, supportTxoKey(txNum, nout))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrSupportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("support by-txo get: %w", err)
	}
	var sup Support
	if err := json.Unmarshal(data, &sup); err != nil {
		return nil, fmt.Errorf("support unmarshal: %w", err)
	}
	return &sup, nil
}

func (s *SupportStore) Get(claimHash types.ClaimHash, txNum types.TxNum, nout uint32) (*Support, error) {
	data, err := s.db.Get(storage.ColSupport, supportKey(claimHash, txNum, nout))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSupportNotFound, claimHash)
	}
	if err != nil {
		return nil, fmt.Errorf("support get: %w", err)
	}
	var sup Support
	if err := json.Unmarshal(data, &sup); err != nil {
		return nil, fmt.Errorf("support unmarshal: %w", err)
	}
	return &sup, nil
}

// ForClaim returns every support currently staked on claimHash.
func (s *SupportStore) ForClaim(claimHash types.ClaimHash) ([]*Support, error) {
	var out []*Support
	err := s.db.Iterate(storage.ColSupport, claimHash[:], false, func(_, value []byte) error {
		var sup Support
		if err := json.Unmarshal(value, &sup); err != nil {
			return fmt.Errorf("support unmarshal: %w", err)
		}
		out = append(out, &sup)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan supports for %s: %w", claimHash, err)
	}
	return out, nil
}

// TotalActiveAmount sums amount across every support currently staked on
// claimHash. Activation delay for individual supports is handled by the
// caller (activation.go) before a support is staged here at all — only
// active supports are ever persisted under ColSupport.
func (s *SupportStore) TotalActiveAmount(claimHash types.ClaimHash) (uint64, error) {
	supports, err := s.ForClaim(claimHash)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, sup := range supports {
		total += sup.Amount
	}
	return total, nil
}
