package claimtrie

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func claimExpirationKey(height types.Height, claimHash types.ClaimHash) []byte {
	buf := make([]byte, 4, 4+types.ClaimHashSize)
	binary.BigEndian.PutUint32(buf, uint32(height))
	return append(buf, claimHash[:]...)
}

// ExpirationIndex schedules claim expirations and finds the ones due at a
// given height, backing the expiry pass in §4.4 step 2.
type ExpirationIndex struct {
	db *storage.PrefixDB
}

func NewExpirationIndex(db *storage.PrefixDB) *ExpirationIndex {
	return &ExpirationIndex{db: db}
}

// Schedule stages claimHash's expiration row.
func (e *ExpirationIndex) Schedule(claimHash types.ClaimHash, expirationHeight types.Height) error {
	key := claimExpirationKey(expirationHeight, claimHash)
	if err := e.db.StagePut(storage.ColClaimExpiration, key, nil); err != nil {
		return fmt.Errorf("schedule expiration: %w", err)
	}
	return nil
}

// Unschedule removes claimHash's expiration row, used on abandon.
func (e *ExpirationIndex) Unschedule(claimHash types.ClaimHash, expirationHeight types.Height) error {
	key := claimExpirationKey(expirationHeight, claimHash)
	if err := e.db.StageDelete(storage.ColClaimExpiration, key); err != nil {
		return fmt.Errorf("unschedule expiration: %w", err)
	}
	return nil
}

// DueAt returns every claim hash whose expiration_height equals height.
func (e *ExpirationIndex) DueAt(height types.Height) ([]types.ClaimHash, error) {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(height))
	var out []types.ClaimHash
	err := e.db.Iterate(storage.ColClaimExpiration, prefix, false, func(key, _ []byte) error {
		if len(key) < 4+types.ClaimHashSize {
			return nil
		}
		var hash types.ClaimHash
		copy(hash[:], key[4:])
		out = append(out, hash)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan expirations at %d: %w", height, err)
	}
	return out, nil
}

// Expirer applies the expiry pass: every claim due at the current height
// is synthesized as a spend and abandoned. Channels are abandoned last so
// a claim signed by a channel that expires in the same block still sees
// its signing channel present while its own abandon runs.
//
// Unlike the original implementation, each non-channel claim is abandoned
// exactly once; the original calls its abandon routine twice per
// non-channel expiration (flagged as a bug, not reproduced here).
type Expirer struct {
	claims   *ClaimStore
	abandon  func(c *Claim) error
	isChannel func(c *Claim) bool
}

func NewExpirer(claims *ClaimStore, abandon func(c *Claim) error, isChannel func(c *Claim) bool) *Expirer {
	return &Expirer{claims: claims, abandon: abandon, isChannel: isChannel}
}

// Run expires every claim due at height.
func (e *Expirer) Run(index *ExpirationIndex, height types.Height) error {
	due, err := index.DueAt(height)
	if err != nil {
		return err
	}

	var channels []*Claim
	for _, hash := range due {
		c, err := e.claims.Get(hash)
		if err != nil {
			continue
		}
		if e.isChannel(c) {
			channels = append(channels, c)
			continue
		}
		if err := e.abandon(c); err != nil {
			return fmt.Errorf("expire claim %s: %w", hash, err)
		}
	}
	for _, c := range channels {
		if err := e.abandon(c); err != nil {
			return fmt.Errorf("expire channel %s: %w", c.ClaimHash, err)
		}
	}
	return nil
}
