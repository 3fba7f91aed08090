package claimtrie

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Claim is the current state of one claim, keyed by a ClaimHash that never
// changes across updates even though the controlling outpoint does.
type Claim struct {
	ClaimHash types.ClaimHash `json:"claim_hash"`
	Name      string          `json:"name"`

	// TxNum/Nout identify the output currently backing this claim (the
	// most recent create or update transaction).
	TxNum types.TxNum `json:"tx_num"`
	Nout  uint32      `json:"nout"`

	// RootTxNum/RootNout identify the output that originally created the
	// claim. Short ids resolve to here so a claim keeps the same short id
	// across updates.
	RootTxNum types.TxNum `json:"root_tx_num"`
	RootNout  uint32      `json:"root_nout"`

	Amount uint64      `json:"amount"`
	Height types.Height `json:"height"`

	// ChannelHash is the signing channel's claim id, zero if unsigned.
	ChannelHash    types.ClaimHash `json:"channel_hash"`
	SignatureValid bool            `json:"signature_valid"`

	// RepostedClaimHash is set when this claim's value reposts another
	// claim (SUPPLEMENTED: repost tracking).
	RepostedClaimHash types.ClaimHash `json:"reposted_claim_hash"`

	ExpirationHeight types.Height `json:"expiration_height"`
}

func claimKey(hash types.ClaimHash) []byte {
	return hash[:]
}

func byNameKey(name string, hash types.ClaimHash) []byte {
	key := make([]byte, 0, len(name)+1+types.ClaimHashSize)
	key = append(key, []byte(name)...)
	key = append(key, 0)
	key = append(key, hash[:]...)
	return key
}

// txoKey builds the reverse-index key from a controlling outpoint back to
// its claim hash, so a spent output can be classified as a claim spend
// without scanning every claim.
func txoKey(txNum types.TxNum, nout uint32) []byte {
	key := make([]byte, 8+4)
	for i := 0; i < 8; i++ {
		key[i] = byte(txNum >> (8 * (7 - i)))
	}
	key[8] = byte(nout >> 24)
	key[9] = byte(nout >> 16)
	key[10] = byte(nout >> 8)
	key[11] = byte(nout)
	return key
}

// ClaimStore persists Claim records, primary-keyed by ClaimHash with a
// secondary by-name index for takeover resolution's per-name scans.
type ClaimStore struct {
	db *storage.PrefixDB
}

func NewClaimStore(db *storage.PrefixDB) *ClaimStore {
	return &ClaimStore{db: db}
}

// StageShortIDs stages claim's 1..10 short-id prefix rows, resolving to
// its root outpoint.
func (s *ClaimStore) StageShortIDs(c *Claim) error {
	return stageShortIDs(s.db, c.Name, c.ClaimHash, c.RootTxNum, c.RootNout)
}

// UnstageShortIDs removes every short-id prefix row for claimHash under
// name.
func (s *ClaimStore) UnstageShortIDs(name string, claimHash types.ClaimHash) error {
	return unstageShortIDs(s.db, name, claimHash)
}

// Put stages a claim's create or update, refreshing both its primary row
// and its by-name index entry.
func (s *ClaimStore) Put(c *Claim) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("claim marshal: %w", err)
	}
	if err := s.db.StagePut(storage.ColClaim, claimKey(c.ClaimHash), data); err != nil {
		return fmt.Errorf("claim put: %w", err)
	}
	if err := s.db.StagePut(storage.ColClaimByName, byNameKey(c.Name, c.ClaimHash), c.ClaimHash[:]); err != nil {
		return fmt.Errorf("claim by-name index put: %w", err)
	}
	if err := s.db.StagePut(storage.ColClaimByTxo, txoKey(c.TxNum, c.Nout), c.ClaimHash[:]); err != nil {
		return fmt.Errorf("claim by-txo index put: %w", err)
	}
	return nil
}

// ByTxo looks up the claim currently backed by the output (txNum, nout),
// used to classify a spent output as a claim spend during per-transaction
// scanning.
func (s *ClaimStore) ByTxo(txNum types.TxNum, nout uint32) (*Claim, error) {
	data, err := s.db.Get(storage.ColClaimByTxo, txoKey(txNum, nout))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim by-txo get: %w", err)
	}
	var hash types.ClaimHash
	copy(hash[:], data)
	return s.Get(hash)
}

// Get loads a claim by its hash.
func (s *ClaimStore) Get(hash types.ClaimHash) (*Claim, error) {
	data, err := s.db.Get(storage.ColClaim, claimKey(hash))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("claim get: %w", err)
	}
	var c Claim
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("claim unmarshal: %w", err)
	}
	return &c, nil
}

// Delete stages removal of a claim's primary, by-name, and by-txo rows
// (abandon or expiry).
func (s *ClaimStore) Delete(c *Claim) error {
	if err := s.db.StageDelete(storage.ColClaim, claimKey(c.ClaimHash)); err != nil {
		return fmt.Errorf("claim delete: %w", err)
	}
	if err := s.db.StageDelete(storage.ColClaimByName, byNameKey(c.Name, c.ClaimHash)); err != nil {
		return fmt.Errorf("claim by-name index delete: %w", err)
	}
	return s.DeleteTxoIndex(c)
}

// DeleteTxoIndex stages removal of just c's by-txo index row. A spent
// claim txo loses its by-txo entry the moment it's spent, before the rest
// of the transaction has decided whether that's an abandon or an update.
func (s *ClaimStore) DeleteTxoIndex(c *Claim) error {
	if err := s.db.StageDelete(storage.ColClaimByTxo, txoKey(c.TxNum, c.Nout)); err != nil {
		return fmt.Errorf("claim by-txo index delete: %w", err)
	}
	return nil
}

// ByName returns every claim currently registered under name, in
// claim-hash order.
func (s *ClaimStore) ByName(name string) ([]*Claim, error) {
	var claims []*Claim
	prefix := append([]byte(name), 0)
	err := s.db.Iterate(storage.ColClaimByName, prefix, false, func(_, value []byte) error {
		var hash types.ClaimHash
		copy(hash[:], value)
		c, err := s.Get(hash)
		if err != nil {
			return err
		}
		claims = append(claims, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan name %q: %w", name, err)
	}
	return claims, nil
}
