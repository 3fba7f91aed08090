// Package mempool mirrors the daemon's unconfirmed transaction pool well
// enough to know, for each HashX, which unconfirmed transactions touch it.
// It does not revalidate transactions against consensus or policy rules —
// the daemon already accepted them — it only tracks what changed so a
// client subscribed to a HashX's status can be notified.
package mempool

import (
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// ConfirmedLookup resolves the HashX a confirmed outpoint belongs to, so
// the pool can tell whose balance an unconfirmed spend touches even though
// the wire transaction only carries the spent txid/index.
type ConfirmedLookup interface {
	TxNum(txHash types.Hash) (types.TxNum, error)
	HashXAt(txHash types.Hash, txNum types.TxNum, nout uint32) (types.HashX, error)
}

type entry struct {
	tx    *wire.Transaction
	order uint64
}

// Pool tracks unconfirmed transactions and the set of HashX values each one
// touches, either through an output it creates or an input it spends.
// Grounded on the teacher's internal/mempool/pool.go map-of-maps-under-one-
// mutex shape, generalized from UTXO-validating acceptance to touch-set
// bookkeeping.
type Pool struct {
	mu sync.RWMutex

	txs     map[types.Hash]*entry
	touched map[types.HashX]map[types.Hash]struct{}
	byTx    map[types.Hash][]types.HashX

	confirmed ConfirmedLookup
	maxSize   int
	nextOrder uint64

	policy *Policy
	sink   StatusSink
}

// DefaultMaxSize is used when New is called with maxSize <= 0.
const DefaultMaxSize = 50_000

// New builds a Pool backed by confirmed for resolving spent outpoints.
func New(confirmed ConfirmedLookup, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		txs:       make(map[types.Hash]*entry),
		touched:   make(map[types.HashX]map[types.Hash]struct{}),
		byTx:      make(map[types.Hash][]types.HashX),
		confirmed: confirmed,
		maxSize:   maxSize,
		sink:      noopStatusSink{},
	}
}

// SetStatusSink installs sink as the receiver of touched-HashX
// notifications. A nil sink reverts to the no-op default.
func (p *Pool) SetStatusSink(sink StatusSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sink == nil {
		sink = noopStatusSink{}
	}
	p.sink = sink
}

// Add registers transaction in the pool and returns the HashX values it
// touches. Returns ErrAlreadyExists if the transaction is already tracked
// and ErrPoolFull if the pool is at capacity.
func (p *Pool) Add(tx *wire.Transaction) ([]types.HashX, error) {
	p.mu.RLock()
	policy := p.policy
	p.mu.RUnlock()
	if policy != nil {
		if err := policy.Check(tx); err != nil {
			return nil, err
		}
	}

	hashXs, err := p.resolveTouched(tx)
	if err != nil {
		return nil, fmt.Errorf("resolve touched hashXs: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := tx.Hash()
	if _, ok := p.txs[txHash]; ok {
		return nil, ErrAlreadyExists
	}
	if len(p.txs) >= p.maxSize {
		return nil, ErrPoolFull
	}

	p.nextOrder++
	p.txs[txHash] = &entry{tx: tx, order: p.nextOrder}
	p.byTx[txHash] = hashXs
	for _, hx := range hashXs {
		set, ok := p.touched[hx]
		if !ok {
			set = make(map[types.Hash]struct{})
			p.touched[hx] = set
		}
		set[txHash] = struct{}{}
	}

	p.sink.NotifyMempoolTouched(hashXs)
	return hashXs, nil
}

// resolveTouched computes the HashX set a transaction touches: its own
// outputs' HashX fields, plus the HashX owning each spent confirmed
// outpoint. An input spending another unconfirmed transaction's output is
// resolved from that transaction's own recorded HashX rather than the
// confirmed lookup.
func (p *Pool) resolveTouched(tx *wire.Transaction) ([]types.HashX, error) {
	seen := make(map[types.HashX]struct{})
	var hashXs []types.HashX
	add := func(hx types.HashX) {
		if hx.IsZero() {
			return
		}
		if _, ok := seen[hx]; ok {
			return
		}
		seen[hx] = struct{}{}
		hashXs = append(hashXs, hx)
	}

	for _, out := range tx.Outputs {
		add(out.HashX)
	}

	for _, in := range tx.Inputs {
		if in.PrevOut.IsZero() {
			continue
		}
		if hx, ok := p.parentOutputHashX(in.PrevOut); ok {
			add(hx)
			continue
		}
		txNum, err := p.confirmed.TxNum(in.PrevOut.TxHash)
		if err != nil {
			continue
		}
		hx, err := p.confirmed.HashXAt(in.PrevOut.TxHash, txNum, in.PrevOut.Index)
		if err != nil {
			continue
		}
		add(hx)
	}
	return hashXs, nil
}

func (p *Pool) parentOutputHashX(out wire.Outpoint) (types.HashX, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.txs[out.TxHash]
	if !ok || int(out.Index) >= len(e.tx.Outputs) {
		return types.HashX{}, false
	}
	return e.tx.Outputs[out.Index].HashX, true
}

// Remove drops a transaction from the pool, notifying the status sink of
// the HashX values it had touched.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	hashXs := p.removeLocked(txHash)
	p.mu.Unlock()
	if len(hashXs) > 0 {
		p.sink.NotifyMempoolTouched(hashXs)
	}
}

func (p *Pool) removeLocked(txHash types.Hash) []types.HashX {
	if _, ok := p.txs[txHash]; !ok {
		return nil
	}
	hashXs := p.byTx[txHash]
	delete(p.txs, txHash)
	delete(p.byTx, txHash)
	for _, hx := range hashXs {
		set := p.touched[hx]
		delete(set, txHash)
		if len(set) == 0 {
			delete(p.touched, hx)
		}
	}
	return hashXs
}

// RemoveConfirmed drops every transaction in txHashes, for use once a block
// confirms them and they no longer belong in the unconfirmed pool.
func (p *Pool) RemoveConfirmed(txHashes []types.Hash) {
	p.mu.Lock()
	var allTouched []types.HashX
	for _, h := range txHashes {
		allTouched = append(allTouched, p.removeLocked(h)...)
	}
	p.mu.Unlock()
	if len(allTouched) > 0 {
		p.sink.NotifyMempoolTouched(allTouched)
	}
}

// Has reports whether txHash is currently tracked.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.txs[txHash]
	return ok
}

// Get returns the tracked transaction for txHash, or nil if untracked.
func (p *Pool) Get(txHash types.Hash) *wire.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.txs[txHash]
	if !ok {
		return nil
	}
	return e.tx
}

// Count returns the number of tracked transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns every tracked transaction hash.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// TouchedBy returns the unconfirmed transaction hashes touching hashX.
func (p *Pool) TouchedBy(hashX types.HashX) []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.touched[hashX]
	out := make([]types.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}
