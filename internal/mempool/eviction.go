package mempool

import (
	"sort"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Evict removes the oldest-tracked transactions until the pool is at or
// below maxSize. The pool has no fee data to rank by — it mirrors the
// daemon's own acceptance decisions rather than making its own — so age is
// the only ordering it can fall back on.
func (p *Pool) Evict() int {
	p.mu.Lock()
	if len(p.txs) <= p.maxSize {
		p.mu.Unlock()
		return 0
	}

	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return p.txs[hashes[i]].order < p.txs[hashes[j]].order
	})

	var allTouched []types.HashX
	evicted := 0
	for len(p.txs) > p.maxSize && evicted < len(hashes) {
		allTouched = append(allTouched, p.removeLocked(hashes[evicted])...)
		evicted++
	}
	p.mu.Unlock()

	if len(allTouched) > 0 {
		p.sink.NotifyMempoolTouched(allTouched)
	}
	return evicted
}
