package mempool

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/log"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// Source is the subset of the daemon client the refresh loop needs: the
// current set of transaction hashes sitting in the daemon's mempool, and
// the raw transaction behind any one of them.
type Source interface {
	MempoolHashes(ctx context.Context) ([]types.Hash, error)
	MempoolTransaction(ctx context.Context, txHash types.Hash) (*wire.Transaction, error)
}

// Refresh reconciles the pool against the daemon's current mempool: any
// transaction the pool tracks that the daemon no longer reports has
// disappeared (confirmed, evicted, or replaced) and is dropped; any
// transaction the daemon reports that the pool doesn't yet track is fetched
// and added. Each refresh makes one MempoolHashes call, then one
// MempoolTransaction call per newly seen hash; a hash whose fetch or add
// fails is skipped and tried again on a later refresh.
func (p *Pool) Refresh(ctx context.Context, daemon Source) error {
	current, err := daemon.MempoolHashes(ctx)
	if err != nil {
		return fmt.Errorf("fetch daemon mempool hashes: %w", err)
	}

	present := make(map[types.Hash]struct{}, len(current))
	for _, h := range current {
		present[h] = struct{}{}
	}

	var disappeared []types.Hash
	for _, h := range p.Hashes() {
		if _, ok := present[h]; !ok {
			disappeared = append(disappeared, h)
		}
	}
	if len(disappeared) > 0 {
		p.RemoveConfirmed(disappeared)
	}

	for _, h := range current {
		if p.Has(h) {
			continue
		}
		tx, err := daemon.MempoolTransaction(ctx, h)
		if err != nil {
			log.Mempool.Warn().Str("tx_hash", h.String()).Err(err).Msg("fetch mempool transaction failed")
			continue
		}
		if tx == nil {
			continue
		}
		if _, err := p.Add(tx); err != nil {
			log.Mempool.Debug().Str("tx_hash", h.String()).Err(err).Msg("mempool add rejected")
		}
	}
	return nil
}
