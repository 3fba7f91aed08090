package claimtrie

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// ActivationDelay parameters. NewProcessor always uses them through
// DefaultDelayCurve; the delay fields of config.ClaimtrieConfig are not
// passed to it. These match the publicly documented mainnet values; the spec leaves the
// delay curve as an external coin parameter with no value given.
const (
	DefaultDelayFactor      = 32
	DefaultMaxTakeoverDelay = types.Height(4032)
)

// DelayCurve computes a challenger's activation delay from the age of the
// name's current controlling claim.
type DelayCurve struct {
	Factor          uint32
	MaxTakeoverDelay types.Height
}

func DefaultDelayCurve() DelayCurve {
	return DelayCurve{Factor: DefaultDelayFactor, MaxTakeoverDelay: DefaultMaxTakeoverDelay}
}

// Delay returns the activation delay for a claim or support arriving
// `age` blocks after the name's controlling claim was accepted.
func (c DelayCurve) Delay(age types.Height) types.Height {
	d := types.Height(uint32(age) / c.Factor)
	if d > c.MaxTakeoverDelay {
		return c.MaxTakeoverDelay
	}
	return d
}

// ActivationTarget identifies what's being activated: a claim, or a
// support on a claim.
type ActivationTarget struct {
	Name      string          `json:"name"`
	ClaimHash types.ClaimHash `json:"claim_hash"`
	TxNum     types.TxNum     `json:"tx_num"`
	Nout      uint32          `json:"nout"`
	IsSupport bool            `json:"is_support"`
	Amount    uint64          `json:"amount"`
}

func activationKey(name string, claimHash types.ClaimHash, txNum types.TxNum, nout uint32) []byte {
	key := make([]byte, 0, len(name)+1+types.ClaimHashSize+8+4)
	key = append(key, []byte(name)...)
	key = append(key, 0)
	key = append(key, claimHash[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(txNum))
	key = binary.BigEndian.AppendUint32(key, nout)
	return key
}

func pendingActivationKey(height types.Height, name string, claimHash types.ClaimHash, txNum types.TxNum, nout uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(height))
	return append(buf, activationKey(name, claimHash, txNum, nout)...)
}

// ActivationStore schedules and resolves delayed activations for claims
// and supports, per §4.5.
type ActivationStore struct {
	db *storage.PrefixDB
}

func NewActivationStore(db *storage.PrefixDB) *ActivationStore {
	return &ActivationStore{db: db}
}

// Schedule stages a pending activation for target at activationHeight. A
// delay of 0 schedules it for the current height, effectively immediate.
func (s *ActivationStore) Schedule(activationHeight types.Height, target ActivationTarget) error {
	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("activation target marshal: %w", err)
	}
	key := pendingActivationKey(activationHeight, target.Name, target.ClaimHash, target.TxNum, target.Nout)
	if err := s.db.StagePut(storage.ColPendingActivation, key, data); err != nil {
		return fmt.Errorf("schedule activation: %w", err)
	}
	return nil
}

// Unschedule removes a previously staged pending activation, used when the
// early-takeover probe rewrites a target's activation height.
func (s *ActivationStore) Unschedule(activationHeight types.Height, target ActivationTarget) error {
	key := pendingActivationKey(activationHeight, target.Name, target.ClaimHash, target.TxNum, target.Nout)
	if err := s.db.StageDelete(storage.ColPendingActivation, key); err != nil {
		return fmt.Errorf("unschedule activation: %w", err)
	}
	return nil
}

// DueAt returns every target scheduled to activate exactly at height.
func (s *ActivationStore) DueAt(height types.Height) ([]ActivationTarget, error) {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(height))
	var out []ActivationTarget
	err := s.db.Iterate(storage.ColPendingActivation, prefix, false, func(_, value []byte) error {
		var t ActivationTarget
		if err := json.Unmarshal(value, &t); err != nil {
			return fmt.Errorf("activation target unmarshal: %w", err)
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan due activations at %d: %w", height, err)
	}
	return out, nil
}

// PendingInWindow returns every claim/support target scheduled to activate
// for name within [from, to], used by the early-takeover probe.
func (s *ActivationStore) PendingInWindow(name string, from, to types.Height) ([]types.Height, []ActivationTarget, error) {
	var heights []types.Height
	var targets []ActivationTarget
	for h := from; h <= to; h++ {
		due, err := s.DueAt(h)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range due {
			if t.Name != name {
				continue
			}
			heights = append(heights, h)
			targets = append(targets, t)
		}
	}
	return heights, targets, nil
}

// Activate marks target as active as of height, persisting the
// currently-active record used by effective-amount computation.
func (s *ActivationStore) Activate(height types.Height, target ActivationTarget) error {
	data, err := json.Marshal(struct {
		Height types.Height `json:"height"`
	}{Height: height})
	if err != nil {
		return fmt.Errorf("active record marshal: %w", err)
	}
	key := activationKey(target.Name, target.ClaimHash, target.TxNum, target.Nout)
	if err := s.db.StagePut(storage.ColActivation, key, data); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// Deactivate removes target's active record, used on spend/abandon.
func (s *ActivationStore) Deactivate(target ActivationTarget) error {
	key := activationKey(target.Name, target.ClaimHash, target.TxNum, target.Nout)
	if err := s.db.StageDelete(storage.ColActivation, key); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	return nil
}

// IsActive reports whether target currently has an active record.
func (s *ActivationStore) IsActive(target ActivationTarget) (bool, error) {
	key := activationKey(target.Name, target.ClaimHash, target.TxNum, target.Nout)
	return s.db.Has(storage.ColActivation, key)
}
