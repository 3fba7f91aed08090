package claimtrie

import "github.com/Klingon-tech/klingnet-index/pkg/types"

// BlockStaging is the one owned value carrying a single block's
// claimtrie-level mutable state while it's being processed: the set of
// names touched this block (candidates for takeover resolution) and the
// set of claim hashes touched or deleted (reported to search-index
// consumers as `touched_or_deleted`, kept in memory rather than
// persisted since it's only ever read within the same block).
type BlockStaging struct {
	Height types.Height

	touchedNames map[string]bool
	touched      map[types.ClaimHash]bool
	deleted      map[types.ClaimHash]bool

	removedActiveSupportByClaim map[types.ClaimHash]uint64
}

// NewBlockStaging starts a fresh staging area for height.
func NewBlockStaging(height types.Height) *BlockStaging {
	return &BlockStaging{
		Height:                      height,
		touchedNames:                make(map[string]bool),
		touched:                     make(map[types.ClaimHash]bool),
		deleted:                     make(map[types.ClaimHash]bool),
		removedActiveSupportByClaim: make(map[types.ClaimHash]uint64),
	}
}

// TouchName marks name as needing takeover resolution this block.
func (b *BlockStaging) TouchName(name string) {
	b.touchedNames[name] = true
}

// TouchNames returns the set of names accumulated so far, for the
// resolver to consume directly.
func (b *BlockStaging) TouchNames() map[string]bool {
	return b.touchedNames
}

// Touch marks claimHash as touched (created, updated, or affected by a
// takeover) this block.
func (b *BlockStaging) Touch(hash types.ClaimHash) {
	b.touched[hash] = true
}

// Delete marks claimHash as deleted (abandoned or expired) this block. A
// claim that is both touched and deleted in the same block is reported
// only as deleted, matching how a search index should treat it.
func (b *BlockStaging) Delete(hash types.ClaimHash) {
	delete(b.touched, hash)
	b.deleted[hash] = true
}

// RecordRemovedActiveSupport accumulates support amount removed from
// claimHash this block (a spend of an active support),
// read by the support-only takeover sweep in §4.5 step 6.
func (b *BlockStaging) RecordRemovedActiveSupport(claimHash types.ClaimHash, amount uint64) {
	b.removedActiveSupportByClaim[claimHash] += amount
}

// ClaimsWithRemovedSupport returns every claim that had active support
// removed this block.
func (b *BlockStaging) ClaimsWithRemovedSupport() []types.ClaimHash {
	out := make([]types.ClaimHash, 0, len(b.removedActiveSupportByClaim))
	for hash := range b.removedActiveSupportByClaim {
		out = append(out, hash)
	}
	return out
}

// TouchedOrDeleted returns the touched and deleted claim-hash sets
// accumulated this block, for a search-index sink to consume once the
// block finalizes.
func (b *BlockStaging) TouchedOrDeleted() (touched, deleted []types.ClaimHash) {
	for hash := range b.touched {
		touched = append(touched, hash)
	}
	for hash := range b.deleted {
		deleted = append(deleted, hash)
	}
	return touched, deleted
}
