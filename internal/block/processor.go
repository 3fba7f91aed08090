package block

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-index/internal/claimtrie"
	"github.com/Klingon-tech/klingnet-index/internal/log"
	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/internal/utxo"
	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// ExpirationWindow is the number of blocks a claim stays registered
// before it must be renewed, the window scheduled into ExpirationIndex
// on every claim creation and update.
const ExpirationWindow = types.Height(2_102_400)

// Processor owns the per-block staging state and drives advance_block:
// the per-transaction UTXO/claimtrie scan, the expiry pass, activation
// and takeover resolution, and cumulative index updates, all staged
// through the same ReversibleOpStack so a block's writes commit or roll
// back atomically.
type Processor struct {
	pdb *storage.PrefixDB

	utxos   *utxo.Store
	txIndex *utxo.TxIndex

	claims      *claimtrie.ClaimStore
	supports    *claimtrie.SupportStore
	activations *claimtrie.ActivationStore
	takeovers   *claimtrie.TakeoverStore
	cumulative  *claimtrie.CumulativeStore
	reposts     *claimtrie.RepostStore
	expirations *claimtrie.ExpirationIndex
	resolver    *claimtrie.Resolver

	headers *HeaderStore
	tip     *TipStore
	search  SearchSink
	metrics MetricsSink

	// ReorgLimit bounds how many blocks reorgToDaemon walks back before
	// returning ErrReorgTooDeep. AdvanceBlock compares a block's height
	// with the previous tip's, so with a nonzero ReorgLimit every block
	// commits with Commit and writes an undo record; undo records are not
	// pruned.
	ReorgLimit types.Height

	nextTxNum types.TxNum
}

// NewProcessor wires a Processor over db, replaying the next free TxNum
// from the last committed tip.
func NewProcessor(db storage.DB, reorgLimit types.Height) (*Processor, error) {
	pdb := storage.NewPrefixDB(db)
	supports := claimtrie.NewSupportStore(pdb)
	p := &Processor{
		pdb:         pdb,
		utxos:       utxo.NewStore(pdb),
		txIndex:     utxo.NewTxIndex(pdb),
		claims:      claimtrie.NewClaimStore(pdb),
		supports:    supports,
		activations: claimtrie.NewActivationStore(pdb),
		takeovers:   claimtrie.NewTakeoverStore(pdb),
		reposts:     claimtrie.NewRepostStore(pdb),
		expirations: claimtrie.NewExpirationIndex(pdb),
		headers:     NewHeaderStore(pdb),
		tip:         NewTipStore(pdb),
		search:      noopSearchSink{},
		metrics:     noopMetricsSink{},
		ReorgLimit:  reorgLimit,
	}
	p.cumulative = claimtrie.NewCumulativeStore(pdb, supports)
	p.resolver = claimtrie.NewResolver(p.claims, p.supports, p.activations, p.takeovers, p.cumulative, claimtrie.DefaultDelayCurve(), nil)

	tip, err := p.tip.Get()
	if err != nil {
		return nil, err
	}
	p.nextTxNum = types.TxNum(tip.TxCount)
	return p, nil
}

// Tip returns the processor's current chain tip.
func (p *Processor) Tip() (State, error) {
	return p.tip.Get()
}

// TxNum resolves the confirmed tx_num assigned to txHash, satisfying
// mempool.ConfirmedLookup so the mempool touch-set tracker can resolve
// which HashX a spent confirmed outpoint belongs to.
func (p *Processor) TxNum(txHash types.Hash) (types.TxNum, error) {
	return p.txIndex.TxNum(txHash)
}

// HashXAt looks up the HashX owning a confirmed UTXO without spending it,
// the other half of mempool.ConfirmedLookup.
func (p *Processor) HashXAt(txHash types.Hash, txNum types.TxNum, nout uint32) (types.HashX, error) {
	return p.utxos.HashXAt(txHash, txNum, nout)
}

// AdvanceBlock applies one block's transactions to UTXO and claimtrie
// state, per §4.4 steps 1-5, and commits the result. blk.Header.PrevHash
// must match the processor's current tip.
func (p *Processor) AdvanceBlock(blk *wire.Block) error {
	start := time.Now()
	defer func() { p.metrics.ObserveBlockTime(time.Since(start)) }()

	tip, err := p.tip.Get()
	if err != nil {
		return err
	}
	if !tip.IsGenesis() && blk.Header.PrevHash != tip.TipHash {
		return fmt.Errorf("%w: block %s prev %s, tip %s", ErrBadPrevHash, blk.Hash(), blk.Header.PrevHash, tip.TipHash)
	}

	height := blk.Header.Height
	staging := claimtrie.NewBlockStaging(height)

	for _, tx := range blk.Transactions {
		if err := p.applyTransaction(tx, height, staging); err != nil {
			return fmt.Errorf("apply tx %s: %w", tx.Hash(), err)
		}
	}

	expirer := claimtrie.NewExpirer(p.claims, func(c *claimtrie.Claim) error {
		return p.abandonClaim(c, staging)
	}, func(c *claimtrie.Claim) bool {
		return c.Name != "" && c.Name[0] == '@'
	})
	if err := expirer.Run(p.expirations, height); err != nil {
		return fmt.Errorf("expiry pass: %w", err)
	}

	for _, claimHash := range staging.ClaimsWithRemovedSupport() {
		if c, err := p.claims.Get(claimHash); err == nil {
			staging.TouchName(c.Name)
		}
	}

	if err := p.resolver.ResolveNames(height, staging.TouchNames()); err != nil {
		return fmt.Errorf("resolve names: %w", err)
	}

	if err := p.headers.Put(blk.Header); err != nil {
		return err
	}
	newTip := State{Height: height, TipHash: blk.Hash(), TxCount: uint64(p.nextTxNum)}
	if err := p.tip.Put(newTip); err != nil {
		return err
	}

	withinReorgWindow := tip.IsGenesis() || height-tip.Height <= p.ReorgLimit
	if withinReorgWindow {
		if err := p.pdb.Commit(height); err != nil {
			return err
		}
	} else if err := p.pdb.UnsafeCommit(); err != nil {
		return err
	}

	touched, deleted := staging.TouchedOrDeleted()
	p.search.NotifyTouched(height, touched, deleted)
	p.metrics.IncBlockCount()
	return nil
}

// applyTransaction processes one transaction's inputs then outputs. A
// claim spent by one of this transaction's inputs isn't abandoned
// outright: it's held in spentClaims until the outputs are processed, so
// an update_claim output referencing the same claim hash can reclaim it
// instead of losing it to an abandon that runs before the update is seen.
func (p *Processor) applyTransaction(tx *wire.Transaction, height types.Height, staging *claimtrie.BlockStaging) error {
	txHash := tx.Hash()
	txNum := p.nextTxNum
	p.nextTxNum++
	if err := p.txIndex.Put(txHash, txNum); err != nil {
		return err
	}

	spentClaims := make(map[types.ClaimHash]*claimtrie.Claim)

	if !tx.IsCoinbase() {
		for _, in := range tx.Inputs {
			if err := p.applySpend(in, staging, spentClaims); err != nil {
				return err
			}
		}
	}

	for nout, out := range tx.Outputs {
		if err := p.applyOutput(txHash, txNum, uint32(nout), out, height, staging, spentClaims); err != nil {
			return err
		}
	}

	return p.abandonUnclaimedSpends(spentClaims, staging)
}

// abandonUnclaimedSpends abandons whatever claims this transaction spent
// but none of its outputs reclaimed via update_claim. Channels are
// abandoned last, matching the expiry pass, so a claim signed by a
// channel abandoned in the same transaction still sees its signing
// channel present while its own abandon runs.
func (p *Processor) abandonUnclaimedSpends(spentClaims map[types.ClaimHash]*claimtrie.Claim, staging *claimtrie.BlockStaging) error {
	var channels []*claimtrie.Claim
	for _, c := range spentClaims {
		if len(c.Name) > 0 && c.Name[0] == '@' {
			channels = append(channels, c)
			continue
		}
		if err := p.abandonClaim(c, staging); err != nil {
			return err
		}
	}
	for _, c := range channels {
		if err := p.abandonClaim(c, staging); err != nil {
			return err
		}
	}
	return nil
}

// applySpend spends in's previous output. A claim txo's removal is
// deferred: its by-txo index row is dropped immediately since the
// outpoint is gone, but the claim itself is only recorded into
// spentClaims, left to applyUpdateClaim or abandonUnclaimedSpends to
// decide its fate once the rest of the transaction has been seen.
func (p *Processor) applySpend(in wire.Input, staging *claimtrie.BlockStaging, spentClaims map[types.ClaimHash]*claimtrie.Claim) error {
	prevTxNum, err := p.txIndex.TxNum(in.PrevOut.TxHash)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUTXONotFound, in.PrevOut.TxHash)
	}
	if _, _, err := p.utxos.Spend(in.PrevOut.TxHash, prevTxNum, in.PrevOut.Index); err != nil {
		return fmt.Errorf("%w: %s", ErrUTXONotFound, in.PrevOut.TxHash)
	}

	if claim, err := p.claims.ByTxo(prevTxNum, in.PrevOut.Index); err == nil {
		staging.TouchName(claim.Name)
		if err := p.claims.DeleteTxoIndex(claim); err != nil {
			return err
		}
		spentClaims[claim.ClaimHash] = claim
		return nil
	}
	if sup, err := p.supports.ByTxo(prevTxNum, in.PrevOut.Index); err == nil {
		target := claimtrie.ActivationTarget{ClaimHash: sup.ClaimHash, TxNum: sup.TxNum, Nout: sup.Nout, IsSupport: true}
		if c, err := p.claims.Get(sup.ClaimHash); err == nil {
			target.Name = c.Name
		}
		active, err := p.activations.IsActive(target)
		if err != nil {
			return err
		}
		if active {
			staging.RecordRemovedActiveSupport(sup.ClaimHash, sup.Amount)
		}
		if err := p.activations.Deactivate(target); err != nil {
			return err
		}
		if err := p.supports.Delete(sup); err != nil {
			return err
		}
		staging.Touch(sup.ClaimHash)
	}
	return nil
}

// abandonClaim removes a claim and every derived index row for it,
// decrementing its signing channel's pending-claim counter if its
// signature was valid.
func (p *Processor) abandonClaim(c *claimtrie.Claim, staging *claimtrie.BlockStaging) error {
	if err := p.claims.Delete(c); err != nil {
		return err
	}
	if err := p.claims.UnstageShortIDs(c.Name, c.ClaimHash); err != nil {
		return err
	}
	if err := p.expirations.Unschedule(c.ClaimHash, c.ExpirationHeight); err != nil {
		return err
	}
	if err := p.activations.Deactivate(claimtrie.ActivationTarget{Name: c.Name, ClaimHash: c.ClaimHash, TxNum: c.TxNum, Nout: c.Nout}); err != nil {
		return err
	}
	if err := p.cumulative.Clear(c.ClaimHash); err != nil {
		return err
	}
	if !c.RepostedClaimHash.IsZero() {
		if err := p.reposts.Delete(c.ClaimHash, c.RepostedClaimHash); err != nil {
			return err
		}
	}
	if c.SignatureValid && !c.ChannelHash.IsZero() {
		if err := p.cumulative.IncrementChannelCount(c.ChannelHash, -1); err != nil {
			return err
		}
	}
	staging.Delete(c.ClaimHash)
	staging.TouchName(c.Name)
	return nil
}

func (p *Processor) applyOutput(txHash types.Hash, txNum types.TxNum, nout uint32, out wire.Output, height types.Height, staging *claimtrie.BlockStaging, spentClaims map[types.ClaimHash]*claimtrie.Claim) error {
	if out.HashX != (types.HashX{}) {
		if err := p.utxos.Add(out.HashX, txHash, txNum, nout, out.Value); err != nil {
			return err
		}
	}

	switch out.Kind {
	case wire.KindClaimName:
		return p.applyClaimName(txHash, txNum, nout, out, height, staging)
	case wire.KindUpdateClaim:
		return p.applyUpdateClaim(txNum, nout, out, height, staging, spentClaims)
	case wire.KindSupportClaim:
		return p.applySupportClaim(txNum, nout, out, height, staging)
	}
	return nil
}

func (p *Processor) applyClaimName(txHash types.Hash, txNum types.TxNum, nout uint32, out wire.Output, height types.Height, staging *claimtrie.BlockStaging) error {
	meta := out.Claim
	name := claimtrie.NormalizeName(meta.Name)
	claimHash := crypto.ClaimHashFromOutpoint(txHash, nout)

	valid := p.validateSignature(name, meta)
	c := &claimtrie.Claim{
		ClaimHash:         claimHash,
		Name:              name,
		TxNum:             txNum,
		Nout:              nout,
		RootTxNum:         txNum,
		RootNout:          nout,
		Amount:            out.Value,
		Height:            height,
		ChannelHash:       signingChannel(meta),
		SignatureValid:    valid,
		RepostedClaimHash: meta.RepostedClaimHash,
		ExpirationHeight:  height + ExpirationWindow,
	}
	return p.stageNewClaim(c, height, staging)
}

// applyUpdateClaim reclaims a claim this same transaction spent, rather
// than letting it fall through to abandonUnclaimedSpends, and mutates it
// in place: same ClaimHash, new backing txo, root pointers preserved.
func (p *Processor) applyUpdateClaim(txNum types.TxNum, nout uint32, out wire.Output, height types.Height, staging *claimtrie.BlockStaging, spentClaims map[types.ClaimHash]*claimtrie.Claim) error {
	meta := out.Claim
	existing, ok := spentClaims[meta.ClaimHash]
	if !ok {
		// Wonky transaction: the claim this output claims to update wasn't
		// spent by this same transaction, so there's nothing to update.
		return nil
	}
	name := claimtrie.NormalizeName(meta.Name)
	if name != existing.Name {
		log.Block.Warn().
			Str("claim_hash", existing.ClaimHash.String()).
			Str("stored_name", existing.Name).
			Str("update_name", name).
			Msg("update claim name mismatch, dropping update")
		// Leave existing staged in spentClaims; abandonUnclaimedSpends
		// abandons it once the rest of the transaction has been seen.
		return nil
	}
	delete(spentClaims, meta.ClaimHash)

	if err := p.expirations.Unschedule(existing.ClaimHash, existing.ExpirationHeight); err != nil {
		return err
	}
	if err := p.activations.Deactivate(claimtrie.ActivationTarget{
		Name: existing.Name, ClaimHash: existing.ClaimHash, TxNum: existing.TxNum, Nout: existing.Nout,
	}); err != nil {
		return err
	}
	if !existing.RepostedClaimHash.IsZero() {
		if err := p.reposts.Delete(existing.ClaimHash, existing.RepostedClaimHash); err != nil {
			return err
		}
	}
	if existing.SignatureValid && !existing.ChannelHash.IsZero() {
		if err := p.cumulative.IncrementChannelCount(existing.ChannelHash, -1); err != nil {
			return err
		}
	}
	if err := p.claims.Delete(existing); err != nil {
		return err
	}

	valid := p.validateSignature(name, meta)
	c := &claimtrie.Claim{
		ClaimHash:         existing.ClaimHash,
		Name:              name,
		TxNum:             txNum,
		Nout:              nout,
		RootTxNum:         existing.RootTxNum,
		RootNout:          existing.RootNout,
		Amount:            out.Value,
		Height:            height,
		ChannelHash:       signingChannel(meta),
		SignatureValid:    valid,
		RepostedClaimHash: meta.RepostedClaimHash,
		ExpirationHeight:  height + ExpirationWindow,
	}
	return p.stageNewClaim(c, height, staging)
}

func (p *Processor) stageNewClaim(c *claimtrie.Claim, height types.Height, staging *claimtrie.BlockStaging) error {
	if err := p.claims.Put(c); err != nil {
		return err
	}
	// Root pointers never change across an update, so these rows usually
	// restage the same values they already hold; clearing them first keeps
	// that a harmless no-op instead of a put over an already-staged put
	// when the same claim is chain-updated more than once in one block.
	if err := p.claims.UnstageShortIDs(c.Name, c.ClaimHash); err != nil {
		return err
	}
	if err := p.claims.StageShortIDs(c); err != nil {
		return err
	}
	if err := p.expirations.Schedule(c.ClaimHash, c.ExpirationHeight); err != nil {
		return err
	}
	if !c.RepostedClaimHash.IsZero() {
		if err := p.reposts.Put(c.ClaimHash, c.RepostedClaimHash); err != nil {
			return err
		}
	}
	if c.SignatureValid && !c.ChannelHash.IsZero() {
		if err := p.cumulative.IncrementChannelCount(c.ChannelHash, 1); err != nil {
			return err
		}
	}

	delay := p.resolver.DelayFor(c.Name, c.ClaimHash, height, false)
	target := claimtrie.ActivationTarget{Name: c.Name, ClaimHash: c.ClaimHash, TxNum: c.TxNum, Nout: c.Nout, Amount: c.Amount}
	if delay == 0 {
		if err := p.activations.Activate(height, target); err != nil {
			return err
		}
	} else if err := p.activations.Schedule(height+delay, target); err != nil {
		return err
	}

	staging.Touch(c.ClaimHash)
	staging.TouchName(c.Name)
	return nil
}

func (p *Processor) applySupportClaim(txNum types.TxNum, nout uint32, out wire.Output, height types.Height, staging *claimtrie.BlockStaging) error {
	meta := out.Claim
	target, err := p.claims.Get(meta.ClaimHash)
	if err != nil {
		return nil
	}
	valid := p.validateSignature(target.Name, meta)
	sup := &claimtrie.Support{
		ClaimHash:      meta.ClaimHash,
		TxNum:          txNum,
		Nout:           nout,
		Amount:         out.Value,
		Height:         height,
		ChannelHash:    signingChannel(meta),
		SignatureValid: valid,
	}
	if err := p.supports.Put(sup); err != nil {
		return err
	}

	delay := p.resolver.DelayFor(target.Name, target.ClaimHash, height, false)
	at := claimtrie.ActivationTarget{Name: target.Name, ClaimHash: target.ClaimHash, TxNum: txNum, Nout: nout, IsSupport: true, Amount: out.Value}
	if delay == 0 {
		if err := p.activations.Activate(height, at); err != nil {
			return err
		}
	} else if err := p.activations.Schedule(height+delay, at); err != nil {
		return err
	}

	staging.Touch(target.ClaimHash)
	staging.TouchName(target.Name)
	return nil
}

func signingChannel(meta *wire.ClaimMeta) types.ClaimHash {
	if meta.Signature == nil {
		return types.ClaimHash{}
	}
	return meta.Signature.SigningChannelHash
}

// validateSignature resolves the claimed signing channel's public key
// from persisted state and checks meta's signature against it. A claim
// whose channel doesn't exist yet (same-block channel creation ordered
// after its signed claims) is treated as unsigned, matching the upstream
// behavior of resolving signatures only against already-settled state.
func (p *Processor) validateSignature(name string, meta *wire.ClaimMeta) bool {
	if meta.Signature == nil || meta.Signature.IsZero() {
		return false
	}
	channel, err := p.claims.Get(meta.Signature.SigningChannelHash)
	if err != nil {
		return false
	}
	return claimtrie.ValidateSignature(name, meta.Value, meta.Signature, claimtrie.ChannelPubKey(channel, meta.Signature.PubKey))
}
