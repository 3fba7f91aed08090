package mempool

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// DefaultMaxTxSize is the maximum transaction size in signing bytes the
// pool will track. The daemon has already accepted the transaction by the
// time it reaches the pool; this is a defense against a misbehaving or
// compromised daemon feeding the indexer something absurd, not a consensus
// rule.
const DefaultMaxTxSize = 100_000

// Policy bounds what the pool is willing to track, independent of whatever
// acceptance rules the daemon itself applies.
type Policy struct {
	MaxTxSize int
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{MaxTxSize: DefaultMaxTxSize}
}

// Check reports whether transaction passes policy.
func (p *Policy) Check(transaction *wire.Transaction) error {
	size := len(transaction.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	return nil
}

// SetPolicy installs policy as the acceptance gate applied before a
// transaction is tracked. A nil policy disables policy checking.
func (p *Pool) SetPolicy(policy *Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}
