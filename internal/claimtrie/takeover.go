package claimtrie

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Takeover records which claim currently controls a name and since when.
type Takeover struct {
	Name      string          `json:"name"`
	ClaimHash types.ClaimHash `json:"claim_hash"`
	Height    types.Height    `json:"height"`
}

func takeoverKey(name string) []byte {
	return []byte(name)
}

// TakeoverStore persists the one controlling claim per name.
type TakeoverStore struct {
	db *storage.PrefixDB
}

func NewTakeoverStore(db *storage.PrefixDB) *TakeoverStore {
	return &TakeoverStore{db: db}
}

func (s *TakeoverStore) Get(name string) (*Takeover, error) {
	data, err := s.db.Get(storage.ColTakeover, takeoverKey(name))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrNoControllingClaim
	}
	if err != nil {
		return nil, fmt.Errorf("takeover get: %w", err)
	}
	var t Takeover
	if err := decodeTakeover(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TakeoverStore) Put(t *Takeover) error {
	data := encodeTakeover(t)
	if err := s.db.StagePut(storage.ColTakeover, takeoverKey(t.Name), data); err != nil {
		return fmt.Errorf("takeover put: %w", err)
	}
	return nil
}

func (s *TakeoverStore) Delete(name string) error {
	if err := s.db.StageDelete(storage.ColTakeover, takeoverKey(name)); err != nil {
		return fmt.Errorf("takeover delete: %w", err)
	}
	return nil
}

func encodeTakeover(t *Takeover) []byte {
	buf := make([]byte, types.ClaimHashSize+4)
	copy(buf, t.ClaimHash[:])
	h := uint32(t.Height)
	buf[types.ClaimHashSize] = byte(h >> 24)
	buf[types.ClaimHashSize+1] = byte(h >> 16)
	buf[types.ClaimHashSize+2] = byte(h >> 8)
	buf[types.ClaimHashSize+3] = byte(h)
	return buf
}

func decodeTakeover(data []byte, t *Takeover) error {
	if len(data) != types.ClaimHashSize+4 {
		return fmt.Errorf("takeover record: want %d bytes, got %d", types.ClaimHashSize+4, len(data))
	}
	copy(t.ClaimHash[:], data[:types.ClaimHashSize])
	t.Height = types.Height(uint32(data[types.ClaimHashSize])<<24 | uint32(data[types.ClaimHashSize+1])<<16 | uint32(data[types.ClaimHashSize+2])<<8 | uint32(data[types.ClaimHashSize+3]))
	return nil
}

// candidate is one live claim competing for control of a name, with the
// effective amount it would carry if activated at the height being
// resolved.
type candidate struct {
	claimHash types.ClaimHash
	amount    uint64
}

// bestClaim returns the candidate with the highest effective amount,
// breaking ties by the deterministic ClaimHash ordering (largest hash
// wins) since two claims can never tie on both a real blockchain but the
// algorithm must still be total.
func bestClaim(candidates []candidate) (candidate, bool) {
	if len(candidates) == 0 {
		return candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.amount > best.amount {
			best = c
			continue
		}
		if c.amount == best.amount && best.claimHash.Less(c.claimHash) {
			best = c
		}
	}
	return best, true
}

// Resolver runs the activation and takeover algorithm of §4.5 for one
// block, reading and writing through the same staged stores the rest of
// block processing uses.
type Resolver struct {
	claims      *ClaimStore
	supports    *SupportStore
	activations *ActivationStore
	takeovers   *TakeoverStore
	cumulative  *CumulativeStore
	curve       DelayCurve
	notifier    TrendingNotifier
}

func NewResolver(claims *ClaimStore, supports *SupportStore, activations *ActivationStore, takeovers *TakeoverStore, cumulative *CumulativeStore, curve DelayCurve, notifier TrendingNotifier) *Resolver {
	if notifier == nil {
		notifier = NoopTrendingNotifier{}
	}
	return &Resolver{
		claims: claims, supports: supports, activations: activations,
		takeovers: takeovers, cumulative: cumulative, curve: curve, notifier: notifier,
	}
}

// DelayFor computes the activation delay a freshly-staged claim or
// support on name should receive at height, per §4.5's exceptions: 0 if
// there is no controlling claim, if the staged item is the controlling
// claim itself, or if the controlling claim is being abandoned this
// block.
func (r *Resolver) DelayFor(name string, claimHash types.ClaimHash, height types.Height, controllingAbandoned bool) types.Height {
	t, err := r.takeovers.Get(name)
	if err != nil {
		return 0
	}
	if controllingAbandoned {
		return 0
	}
	if t.ClaimHash == claimHash {
		return 0
	}
	return r.curve.Delay(height - t.Height)
}

// ResolveNames runs activation and takeover resolution at height for the
// given set of names touched this block, per §4.5 steps 1-6.
func (r *Resolver) ResolveNames(height types.Height, names map[string]bool) error {
	checked := make(map[string]bool)

	due, err := r.activations.DueAt(height)
	if err != nil {
		return err
	}
	for _, t := range due {
		names[t.Name] = true
	}

	for name := range names {
		if err := r.resolveName(height, name); err != nil {
			return fmt.Errorf("resolve name %q: %w", name, err)
		}
		checked[name] = true
	}
	return nil
}

// earlyTakeoverProbe implements §4.5 step 4: if a pending future
// activation for name would, once active, out-amount everything in the
// current activation set, it takes over now instead of waiting for its
// scheduled height.
func (r *Resolver) earlyTakeoverProbe(height types.Height, name string, currentBest uint64) ([]candidate, error) {
	heights, targets, err := r.activations.PendingInWindow(name, height+1, height+1+r.curve.MaxTakeoverDelay)
	if err != nil {
		return nil, err
	}
	var early []candidate
	for i, t := range targets {
		if t.IsSupport {
			continue
		}
		claim, err := r.claims.Get(t.ClaimHash)
		if err != nil {
			continue
		}
		supportTotal, err := r.supports.TotalActiveAmount(t.ClaimHash)
		if err != nil {
			return nil, err
		}
		projected := claim.Amount + supportTotal
		if projected > currentBest {
			if err := r.activations.Unschedule(heights[i], t); err != nil {
				return nil, err
			}
			if err := r.activations.Activate(height, t); err != nil {
				return nil, err
			}
			early = append(early, candidate{claimHash: t.ClaimHash, amount: projected})
		}
	}
	return early, nil
}

func (r *Resolver) resolveName(height types.Height, name string) error {
	claims, err := r.claims.ByName(name)
	if err != nil {
		return err
	}

	if len(claims) == 0 {
		if err := r.takeovers.Delete(name); err != nil {
			return err
		}
		return nil
	}

	var candidates []candidate
	for _, c := range claims {
		active, err := r.activations.IsActive(ActivationTarget{Name: name, ClaimHash: c.ClaimHash, TxNum: c.TxNum, Nout: c.Nout})
		if err != nil {
			return err
		}
		if !active {
			continue
		}
		amount, err := r.cumulative.Rebuild(c)
		if err != nil {
			return err
		}
		candidates = append(candidates, candidate{claimHash: c.ClaimHash, amount: amount})
		r.notifier.NotifyEffectiveAmountChanged(c.ClaimHash, height, amount)
	}

	if len(candidates) == 0 {
		return r.takeovers.Delete(name)
	}

	var currentMax uint64
	for _, c := range candidates {
		if c.amount > currentMax {
			currentMax = c.amount
		}
	}
	early, err := r.earlyTakeoverProbe(height, name, currentMax)
	if err != nil {
		return err
	}
	candidates = append(candidates, early...)

	winner, _ := bestClaim(candidates)

	current, err := r.takeovers.Get(name)
	if errors.Is(err, ErrNoControllingClaim) {
		return r.takeovers.Put(&Takeover{Name: name, ClaimHash: winner.claimHash, Height: height})
	}
	if err != nil {
		return err
	}

	if winner.claimHash == current.ClaimHash {
		return nil
	}

	var currentAmount uint64
	for _, c := range candidates {
		if c.claimHash == current.ClaimHash {
			currentAmount = c.amount
		}
	}
	controllingGone := currentAmount == 0
	if controllingGone || winner.amount > currentAmount {
		return r.takeovers.Put(&Takeover{Name: name, ClaimHash: winner.claimHash, Height: height})
	}
	return nil
}
