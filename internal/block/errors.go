package block

import "errors"

var (
	// ErrHeaderNotFound is returned when a height has no stored header.
	ErrHeaderNotFound = errors.New("block: header not found")
	// ErrUTXONotFound is returned when a transaction spends an output this
	// processor never recorded.
	ErrUTXONotFound = errors.New("block: spent output not found")
	// ErrBadPrevHash is returned when a block's PrevHash does not match
	// the processor's current tip.
	ErrBadPrevHash = errors.New("block: prev_hash does not match current tip")
	// ErrReorgTooDeep is returned when a reorg would unwind more than
	// ReorgLimit blocks.
	ErrReorgTooDeep = errors.New("block: reorg exceeds reorg limit")
	// ErrInteriorMismatch is returned when a batch of blocks diverges from
	// the daemon partway through, rather than at its first block — the
	// daemon reorged again mid-batch and the whole batch must be retried.
	ErrInteriorMismatch = errors.New("block: interior batch mismatch, retry")
)
