package mempool

import "errors"

var (
	// ErrAlreadyExists is returned when a transaction is already tracked.
	ErrAlreadyExists = errors.New("mempool: transaction already tracked")
	// ErrPoolFull is returned when the pool is at capacity and the
	// incoming transaction does not displace an older entry.
	ErrPoolFull = errors.New("mempool: pool at capacity")
)
