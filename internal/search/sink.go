package search

import (
	"context"
	"sync"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Sink adapts an Index to the block processor's SearchSink interface. It
// mirrors the original's touched_claims_to_send_es / removed_claims_to_send_es
// bookkeeping: claim hashes accumulate across NotifyTouched calls until
// Flush drains them into the index and clears its caches, the same
// clear-after-consume rhythm the original runs once per advance-blocks batch
// and once per backed-out block during a reorg.
type Sink struct {
	mu      sync.Mutex
	index   Index
	touched map[types.ClaimHash]struct{}
	deleted map[types.ClaimHash]struct{}
}

// NewSink wraps index for installation via block.Processor.SetSearchSink.
func NewSink(index Index) *Sink {
	if index == nil {
		index = NoopIndex{}
	}
	return &Sink{
		index:   index,
		touched: make(map[types.ClaimHash]struct{}),
		deleted: make(map[types.ClaimHash]struct{}),
	}
}

// NotifyTouched records the claim hashes a block touched or deleted. A
// claim that reappears as touched after being deleted earlier in the same
// batch (a reorg re-touching a claim a backed-out block had removed) is
// treated as touched, matching the original's
// touched_claims_to_send_es.difference_update(removed_claims_to_send_es).
func (s *Sink) NotifyTouched(height types.Height, touched, deleted []types.ClaimHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range touched {
		s.touched[ch] = struct{}{}
		delete(s.deleted, ch)
	}
	for _, ch := range deleted {
		s.deleted[ch] = struct{}{}
	}
}

// Flush drains the accumulated touched/deleted sets into the index and
// clears its caches, whether or not the drain succeeds — a failed push to
// the search index shouldn't wedge the claim index's own bookkeeping.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	claims := make([]types.ClaimHash, 0, len(s.touched)+len(s.deleted))
	for ch := range s.touched {
		claims = append(claims, ch)
	}
	for ch := range s.deleted {
		claims = append(claims, ch)
	}
	s.touched = make(map[types.ClaimHash]struct{})
	s.deleted = make(map[types.ClaimHash]struct{})
	s.mu.Unlock()

	defer s.index.ClearCaches()
	if len(claims) == 0 {
		return nil
	}
	return s.index.ClaimConsumer(ctx, claims)
}
