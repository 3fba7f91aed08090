// Package prefetch keeps a small cache of raw blocks ahead of the block
// processor, so the advance loop never blocks on a daemon round trip in
// the common case.
package prefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-index/internal/log"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// Source is the subset of the daemon client the prefetcher needs: the
// daemon's current height, and the raw blocks starting at a given height.
type Source interface {
	DaemonHeight(ctx context.Context) (types.Height, error)
	BlocksFrom(ctx context.Context, fromHeight types.Height, count int) ([]*wire.Block, error)
}

const (
	// DefaultMinCacheSize is the byte budget the prefetcher tries to keep
	// filled.
	DefaultMinCacheSize = 10 << 20
	// DefaultPollingDelay is how long the main loop waits between polls
	// once the cache is at or above budget.
	DefaultPollingDelay = 5 * time.Second
	// MaxBatch bounds how many blocks a single daemon round trip asks for.
	MaxBatch = 500
	// seedAvgBlockSize is the estimate used before any real block has been
	// measured.
	seedAvgBlockSize = 10
)

// Prefetcher pulls raw blocks from the daemon in batches sized by a
// rolling average block size, up to a soft byte budget, and hands them off
// to the block processor via TakePrefetched. Grounded on the teacher's
// mutex-guarded polling idiom in internal/mempool/pool.go, generalized from
// an acceptance pool to a forward-only block cache.
type Prefetcher struct {
	mu sync.Mutex

	daemon Source
	genesis *wire.Block

	fetchedHeight types.Height
	cache         []*wire.Block
	cacheBytes    int
	avgBlockSize  float64

	minCacheSize int
	pollingDelay time.Duration

	refill chan struct{}
}

// New builds a Prefetcher starting at startHeight (the height of the next
// block it should fetch). genesis, if non-nil, replaces whatever the
// daemon reports for height 0 with the coin-specific genesis block.
func New(daemon Source, startHeight types.Height, genesis *wire.Block) *Prefetcher {
	return &Prefetcher{
		daemon:        daemon,
		genesis:       genesis,
		fetchedHeight: startHeight,
		avgBlockSize:  seedAvgBlockSize,
		minCacheSize:  DefaultMinCacheSize,
		pollingDelay:  DefaultPollingDelay,
		refill:        make(chan struct{}, 1),
	}
}

// SetMinCacheSize overrides the byte budget the prefetcher tries to keep
// filled.
func (p *Prefetcher) SetMinCacheSize(bytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minCacheSize = bytes
}

// SetPollingDelay overrides the delay between polls once the cache is at
// budget.
func (p *Prefetcher) SetPollingDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollingDelay = d
}

// Run drives the prefetch loop until ctx is canceled. Daemon errors are
// logged and swallowed — the next poll retries — since they're almost
// always transient RPC hiccups, not something the prefetcher can act on.
func (p *Prefetcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		filled, err := p.fillOnce(ctx)
		if err != nil {
			log.Prefetch.Warn().Err(err).Msg("prefetch batch failed, retrying")
		}
		if filled {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.refill:
		case <-time.After(p.pollingDelayLocked()):
		}
	}
}

func (p *Prefetcher) pollingDelayLocked() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollingDelay
}

// fillOnce fetches at most one batch, returning whether it fetched
// anything (so Run can keep filling without waiting for the poll delay).
func (p *Prefetcher) fillOnce(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.cacheBytes >= p.minCacheSize {
		p.mu.Unlock()
		return false, nil
	}
	fetchedHeight := p.fetchedHeight
	budgetBytes := p.minCacheSize - p.cacheBytes
	avgBlockSize := p.avgBlockSize
	p.mu.Unlock()

	daemonHeight, err := p.daemon.DaemonHeight(ctx)
	if err != nil {
		return false, fmt.Errorf("daemon height: %w", err)
	}

	remaining := 0
	if daemonHeight >= fetchedHeight {
		remaining = int(daemonHeight-fetchedHeight) + 1
	}
	byBudget := int(float64(budgetBytes) / avgBlockSize)
	count := minInt(MaxBatch, minInt(remaining, byBudget))
	if count <= 0 {
		return false, nil
	}

	blocks, err := p.daemon.BlocksFrom(ctx, fetchedHeight, count)
	if err != nil {
		return false, fmt.Errorf("fetch blocks from %d count %d: %w", fetchedHeight, count, err)
	}
	if len(blocks) == 0 {
		return false, nil
	}

	if fetchedHeight == 0 && p.genesis != nil {
		blocks[0] = p.genesis
	}

	p.mu.Lock()
	if p.fetchedHeight != fetchedHeight {
		// ResetHeight ran while this batch was in flight.
		p.mu.Unlock()
		return false, nil
	}
	sizes := make([]int, len(blocks))
	total := 0
	for i, blk := range blocks {
		sizes[i] = blk.Size()
		total += sizes[i]
	}
	if len(sizes) >= 10 {
		sum := 0
		for _, s := range sizes {
			sum += s
		}
		p.avgBlockSize = float64(sum) / float64(len(sizes))
	} else {
		for _, s := range sizes {
			p.avgBlockSize = (p.avgBlockSize*9 + float64(s)) / 10
		}
	}

	p.cache = append(p.cache, blocks...)
	p.cacheBytes += total
	p.fetchedHeight += types.Height(len(blocks))
	p.mu.Unlock()

	return true, nil
}

// ResetHeight clears the cache and repositions the prefetcher to fetch
// starting at h, used after a reorg backs the processor out to a new tip.
func (p *Prefetcher) ResetHeight(h types.Height) {
	p.mu.Lock()
	p.cache = nil
	p.cacheBytes = 0
	p.fetchedHeight = h
	p.mu.Unlock()
	p.signalRefill()
}

// TakePrefetched atomically returns and clears the cache, then signals the
// main loop to refill it.
func (p *Prefetcher) TakePrefetched() []*wire.Block {
	p.mu.Lock()
	blocks := p.cache
	p.cache = nil
	p.cacheBytes = 0
	p.mu.Unlock()
	p.signalRefill()
	return blocks
}

func (p *Prefetcher) signalRefill() {
	select {
	case p.refill <- struct{}{}:
	default:
	}
}

// FetchedHeight returns the height of the next block the prefetcher will
// fetch.
func (p *Prefetcher) FetchedHeight() types.Height {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchedHeight
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
