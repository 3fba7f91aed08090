package claimtrie

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// RepostStore maintains the forward (reposting claim -> reposted claim)
// and reverse (reposted claim -> set of reposting claims) indexes used to
// answer "what reposts this" and to invalidate a repost when its target
// disappears.
type RepostStore struct {
	db *storage.PrefixDB
}

func NewRepostStore(db *storage.PrefixDB) *RepostStore {
	return &RepostStore{db: db}
}

func repostedClaimKey(reposter, target types.ClaimHash) []byte {
	key := make([]byte, 0, 2*types.ClaimHashSize)
	key = append(key, target[:]...)
	key = append(key, reposter[:]...)
	return key
}

// Put records that reposter reposts target.
func (s *RepostStore) Put(reposter, target types.ClaimHash) error {
	if err := s.db.StagePut(storage.ColRepost, reposter[:], target[:]); err != nil {
		return fmt.Errorf("repost put: %w", err)
	}
	if err := s.db.StagePut(storage.ColRepostedClaim, repostedClaimKey(reposter, target), nil); err != nil {
		return fmt.Errorf("reposted-claim index put: %w", err)
	}
	return nil
}

// Delete removes a repost link, used on abandon, update-away-from-repost,
// or when the reposted claim itself disappears.
func (s *RepostStore) Delete(reposter, target types.ClaimHash) error {
	if err := s.db.StageDelete(storage.ColRepost, reposter[:]); err != nil {
		return fmt.Errorf("repost delete: %w", err)
	}
	if err := s.db.StageDelete(storage.ColRepostedClaim, repostedClaimKey(reposter, target)); err != nil {
		return fmt.Errorf("reposted-claim index delete: %w", err)
	}
	return nil
}

// Target returns what claimHash reposts, if anything.
func (s *RepostStore) Target(claimHash types.ClaimHash) (types.ClaimHash, bool, error) {
	data, err := s.db.Get(storage.ColRepost, claimHash[:])
	if errors.Is(err, storage.ErrKeyNotFound) {
		return types.ClaimHash{}, false, nil
	}
	if err != nil {
		return types.ClaimHash{}, false, fmt.Errorf("repost target lookup: %w", err)
	}
	var target types.ClaimHash
	copy(target[:], data)
	return target, true, nil
}

// Reposters returns every claim that reposts target.
func (s *RepostStore) Reposters(target types.ClaimHash) ([]types.ClaimHash, error) {
	var out []types.ClaimHash
	err := s.db.Iterate(storage.ColRepostedClaim, target[:], false, func(key, _ []byte) error {
		if len(key) < 2*types.ClaimHashSize {
			return nil
		}
		var reposter types.ClaimHash
		copy(reposter[:], key[types.ClaimHashSize:])
		out = append(out, reposter)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan reposters of %s: %w", target, err)
	}
	return out, nil
}
