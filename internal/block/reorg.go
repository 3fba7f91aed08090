package block

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-index/internal/log"
	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// HeaderSource is the subset of the daemon client the reorg control loop
// needs: the hash of the block the daemon currently has at height, used to
// find how far the local chain has diverged from the daemon's.
type HeaderSource interface {
	BlockHashAt(ctx context.Context, height types.Height) (types.Hash, error)
}

// SearchSink receives the claim hashes a block touched or deleted, both
// advancing forward and backing out during a reorg, so a search index can
// replay the same changes the claimtrie applied.
type SearchSink interface {
	NotifyTouched(height types.Height, touched, deleted []types.ClaimHash)
}

type noopSearchSink struct{}

func (noopSearchSink) NotifyTouched(types.Height, []types.ClaimHash, []types.ClaimHash) {}

// SetSearchSink installs sink as the receiver of touched-or-deleted
// notifications. A nil sink reverts to the no-op default.
func (p *Processor) SetSearchSink(sink SearchSink) {
	if sink == nil {
		sink = noopSearchSink{}
	}
	p.search = sink
}

// MetricsSink receives counts and timings off the block processing and
// reorg control loop, for export as Prometheus metrics.
type MetricsSink interface {
	IncBlockCount()
	ObserveBlockTime(d time.Duration)
	IncReorgCount()
}

type noopMetricsSink struct{}

func (noopMetricsSink) IncBlockCount()              {}
func (noopMetricsSink) ObserveBlockTime(time.Duration) {}
func (noopMetricsSink) IncReorgCount()              {}

// SetMetricsSink installs sink as the receiver of block/reorg metrics. A
// nil sink reverts to the no-op default.
func (p *Processor) SetMetricsSink(sink MetricsSink) {
	if sink == nil {
		sink = noopMetricsSink{}
	}
	p.metrics = sink
}

// CheckAndAdvanceBlocks applies a batch of prefetched blocks against the
// current tip, per the three-way branch of the reorg control loop:
//
//   - blocks[0] chains from the tip: advance every block in the batch in
//     order.
//   - blocks[0] does not chain from the tip: the daemon has reorged since
//     this batch was fetched. Walk the daemon's canonical chain backwards
//     from the tip to find how many local blocks have diverged, back each
//     of them out with BackupBlock, then return ErrInteriorMismatch so the
//     caller resets its prefetcher and re-fetches against the new tip.
//   - a block partway through the batch does not chain from the tip its
//     predecessor just produced: the daemon reorged again while this batch
//     was still being applied. Return ErrInteriorMismatch without trying to
//     diagnose depth — the caller must reset and retry.
func (p *Processor) CheckAndAdvanceBlocks(ctx context.Context, daemon HeaderSource, blocks []*wire.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	tip, err := p.Tip()
	if err != nil {
		return err
	}

	if !tip.IsGenesis() && blocks[0].Header.PrevHash != tip.TipHash {
		if err := p.reorgToDaemon(ctx, daemon, tip); err != nil {
			return err
		}
		return ErrInteriorMismatch
	}

	for i, blk := range blocks {
		tip, err := p.Tip()
		if err != nil {
			return err
		}
		if !tip.IsGenesis() && blk.Header.PrevHash != tip.TipHash {
			return fmt.Errorf("%w: batch index %d", ErrInteriorMismatch, i)
		}
		if err := p.AdvanceBlock(blk); err != nil {
			return err
		}
	}
	return nil
}

// reorgToDaemon walks backwards from tip comparing this processor's stored
// header hashes against the daemon's canonical chain, then backs out every
// local block that diverges from it.
func (p *Processor) reorgToDaemon(ctx context.Context, daemon HeaderSource, tip State) error {
	var depth types.Height
	height := tip.Height

	for height > 0 {
		daemonHash, err := daemon.BlockHashAt(ctx, height)
		if err != nil {
			return fmt.Errorf("query daemon header at %d: %w", height, err)
		}
		header, err := p.headers.Get(height)
		if err != nil {
			return err
		}
		if header.Hash() == daemonHash {
			break
		}
		depth++
		if depth > p.ReorgLimit {
			return fmt.Errorf("%w: diverges more than %d blocks below height %d", ErrReorgTooDeep, p.ReorgLimit, tip.Height)
		}
		height--
	}

	if depth == 0 {
		return nil
	}
	log.Block.Warn().
		Uint32("depth", uint32(depth)).
		Uint32("fork_height", uint32(height)).
		Msg("reorg detected, backing out local blocks")
	p.metrics.IncReorgCount()

	for i := types.Height(0); i < depth; i++ {
		if err := p.BackupBlock(); err != nil {
			return err
		}
	}
	return nil
}

// BackupBlock reverts the processor's current tip block, inverting its
// claimtrie and UTXO writes via the undo record committed alongside it. It
// refuses to back out past the genesis block, and past any block whose
// commit fell outside ReorgLimit and so carries no undo record (those were
// written with UnsafeCommit on the assumption they would never need
// undoing).
func (p *Processor) BackupBlock() error {
	tip, err := p.Tip()
	if err != nil {
		return err
	}
	if tip.IsGenesis() {
		return fmt.Errorf("%w: cannot back out the genesis block", ErrReorgTooDeep)
	}

	touched, deleted, err := p.touchedOrDeletedAt(tip.Height)
	if err != nil {
		return fmt.Errorf("read undo record for height %d: %w", tip.Height, err)
	}

	if err := p.pdb.Rollback(tip.Height); err != nil {
		return fmt.Errorf("rollback height %d: %w", tip.Height, err)
	}

	newTip, err := p.tip.Get()
	if err != nil {
		return err
	}
	p.nextTxNum = types.TxNum(newTip.TxCount)

	p.search.NotifyTouched(tip.Height, touched, deleted)
	return nil
}

// touchedOrDeletedAt reconstructs the claim hashes a backed-out block's
// undo record would touch or delete once rolled back, since BlockStaging
// itself is in-memory only and long gone by the time a deep reorg backs a
// block out. A claim row with no pre-image (HadOld false) was created or
// last rewritten by this block, so rolling back removes it; a row with a
// pre-image is restored to its prior content, so rolling back still leaves
// it present and just changes what it says.
func (p *Processor) touchedOrDeletedAt(height types.Height) (touched, deleted []types.ClaimHash, err error) {
	entries, err := p.pdb.PeekUndo(height)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[types.ClaimHash]bool)
	for _, e := range entries {
		if e.Col != storage.ColClaim || len(e.Key) != types.ClaimHashSize {
			continue
		}
		var hash types.ClaimHash
		copy(hash[:], e.Key)
		if seen[hash] {
			continue
		}
		seen[hash] = true
		if e.HadOld {
			touched = append(touched, hash)
		} else {
			deleted = append(deleted, hash)
		}
	}
	return touched, deleted, nil
}
