package storage

import "errors"

// ErrInvariantViolated marks a programming error in how the op stack was
// driven — e.g. rolling back while a block is still staged. It should
// never be reachable from untrusted input.
var ErrInvariantViolated = errors.New("storage: invariant violated")

// ErrCorrupt marks on-disk state that doesn't parse the way the op stack
// wrote it — a missing or malformed undo record.
var ErrCorrupt = errors.New("storage: corrupt undo record")
