package claimtrie

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func effectiveAmountKey(claimHash types.ClaimHash) []byte {
	return claimHash[:]
}

func channelCountKey(channelHash types.ClaimHash) []byte {
	return channelHash[:]
}

// CumulativeStore maintains the two rollups takeover resolution reads
// every block: each claim's effective amount (its own stake plus active
// supports) and each channel's count of claims it validly signs.
type CumulativeStore struct {
	db       *storage.PrefixDB
	supports *SupportStore
}

func NewCumulativeStore(db *storage.PrefixDB, supports *SupportStore) *CumulativeStore {
	return &CumulativeStore{db: db, supports: supports}
}

// Rebuild recomputes and stages claim's effective amount from its current
// stake plus every currently active support, and returns the new total.
func (c *CumulativeStore) Rebuild(claim *Claim) (uint64, error) {
	supportTotal, err := c.supports.TotalActiveAmount(claim.ClaimHash)
	if err != nil {
		return 0, err
	}
	total := claim.Amount + supportTotal
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(total >> (8 * (7 - i)))
	}
	if err := c.db.StagePut(storage.ColEffectiveAmount, effectiveAmountKey(claim.ClaimHash), buf); err != nil {
		return 0, fmt.Errorf("stage effective amount: %w", err)
	}
	return total, nil
}

// Clear removes claim's effective-amount row, used on abandon/expiry.
func (c *CumulativeStore) Clear(claimHash types.ClaimHash) error {
	if err := c.db.StageDelete(storage.ColEffectiveAmount, effectiveAmountKey(claimHash)); err != nil {
		return fmt.Errorf("clear effective amount: %w", err)
	}
	return nil
}

// EffectiveAmount reads claim's currently staged-or-committed effective
// amount, 0 if it has none.
func (c *CumulativeStore) EffectiveAmount(claimHash types.ClaimHash) (uint64, error) {
	data, err := c.db.Get(storage.ColEffectiveAmount, effectiveAmountKey(claimHash))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read effective amount: %w", err)
	}
	var total uint64
	for _, b := range data {
		total = total<<8 | uint64(b)
	}
	return total, nil
}

// IncrementChannelCount bumps a channel's count of validly-signed claims.
// A channel that signs more than one claim in the same block revisits
// this key repeatedly before the block commits, so the prior staged
// value is always cleared before restaging the new one rather than
// overwriting it in place.
func (c *CumulativeStore) IncrementChannelCount(channelHash types.ClaimHash, delta int) error {
	current, err := c.channelCount(channelHash)
	if err != nil {
		return err
	}
	next := current + delta
	if next < 0 {
		next = 0
	}
	if err := c.db.StageDelete(storage.ColChannelCount, channelCountKey(channelHash)); err != nil {
		return fmt.Errorf("clear staged channel count: %w", err)
	}
	if next == 0 {
		return nil
	}
	buf := make([]byte, 4)
	for i := 0; i < 4; i++ {
		buf[i] = byte(uint32(next) >> (8 * (3 - i)))
	}
	if err := c.db.StagePut(storage.ColChannelCount, channelCountKey(channelHash), buf); err != nil {
		return fmt.Errorf("stage channel count: %w", err)
	}
	return nil
}

func (c *CumulativeStore) channelCount(channelHash types.ClaimHash) (int, error) {
	data, err := c.db.Get(storage.ColChannelCount, channelCountKey(channelHash))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read channel count: %w", err)
	}
	var total uint32
	for _, b := range data {
		total = total<<8 | uint32(b)
	}
	return int(total), nil
}

// TrendingNotifier is fed every claim whose effective amount changed this
// block, for callers that derive a trending score (SUPPLEMENTED: the
// daemon's claimtrie exposes a comparable notification for search
// indexers to consume; this core only fans it out).
type TrendingNotifier interface {
	NotifyEffectiveAmountChanged(claimHash types.ClaimHash, height types.Height, newAmount uint64)
}

// NoopTrendingNotifier discards every notification, the default when no
// sink is configured.
type NoopTrendingNotifier struct{}

func (NoopTrendingNotifier) NotifyEffectiveAmountChanged(types.ClaimHash, types.Height, uint64) {}
