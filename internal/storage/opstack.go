package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

type opKind uint8

const (
	opPut opKind = iota
	opDelete
)

// stagedOp is one write staged against the database, along with enough of
// its pre-image to invert it.
type stagedOp struct {
	Col      Column
	Key      []byte
	Kind     opKind
	Value    []byte
	HadOld   bool
	OldValue []byte
}

// UndoEntry is the serialized form of a stagedOp written alongside a
// block's commit, replayed in reverse by Rollback. A caller can also read
// the record back with PeekUndo, without applying it, to see exactly what
// a commit changed.
type UndoEntry struct {
	Col      Column
	Key      []byte
	HadOld   bool
	OldValue []byte
}

// ReversibleOpStack accumulates the writes a single block (or mempool
// refresh pass) wants to make, and can commit them atomically with an undo
// record, or apply them without one, or roll a prior commit back out. It is
// the one owned value that carries a block's mutable staging state (§9
// "large mutable per-block state as a single owned value").
type ReversibleOpStack struct {
	db     DB
	staged map[string]*stagedOp
	order  []string
}

// NewReversibleOpStack creates an op stack writing through to db.
func NewReversibleOpStack(db DB) *ReversibleOpStack {
	return &ReversibleOpStack{db: db, staged: make(map[string]*stagedOp)}
}

// Get reads a value, preferring anything already staged in this block over
// what's committed, so later stages of the same block see earlier writes.
func (s *ReversibleOpStack) Get(col Column, key []byte) ([]byte, error) {
	rk := rawKey(col, key)
	if op, ok := s.staged[string(rk)]; ok {
		if op.Kind == opDelete {
			return nil, ErrKeyNotFound
		}
		return op.Value, nil
	}
	return s.db.Get(rk)
}

// Has reports whether a key is visible, staged or committed.
func (s *ReversibleOpStack) Has(col Column, key []byte) (bool, error) {
	_, err := s.Get(col, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *ReversibleOpStack) captureOld(rk []byte) (bool, []byte) {
	v, err := s.db.Get(rk)
	if err != nil {
		return false, nil
	}
	return true, v
}

// stage records a write against key, returning ErrInvariantViolated if it
// would stage a put over an already-staged put for the same key with no
// intervening delete — two puts for the same key in one block almost
// always means a caller forgot to abandon or delete the prior value
// first, rather than a legitimate double-write.
func (s *ReversibleOpStack) stage(col Column, key []byte, kind opKind, value []byte) error {
	rk := rawKey(col, key)
	sk := string(rk)
	op, exists := s.staged[sk]
	if exists && op.Kind == opPut && kind == opPut {
		return fmt.Errorf("%w: put over already-staged put for key %q in column %d", ErrInvariantViolated, key, col)
	}
	if !exists {
		hadOld, oldVal := s.captureOld(rk)
		op = &stagedOp{Col: col, Key: append([]byte(nil), key...), HadOld: hadOld, OldValue: oldVal}
		s.staged[sk] = op
		s.order = append(s.order, sk)
	}
	op.Kind = kind
	if kind == opPut {
		op.Value = append([]byte(nil), value...)
	} else {
		op.Value = nil
	}
	return nil
}

// StagePut stages a write. The pre-image (or its absence) is captured the
// first time this key is touched in the current staging window, so a
// later StageDelete of the same key still inverts back to the value that
// was committed before this block started. Returns ErrInvariantViolated
// if a put is already staged for this key with no intervening delete.
func (s *ReversibleOpStack) StagePut(col Column, key, value []byte) error {
	return s.stage(col, key, opPut, value)
}

// StageDelete stages a deletion.
func (s *ReversibleOpStack) StageDelete(col Column, key []byte) error {
	return s.stage(col, key, opDelete, nil)
}

// Iterate walks keys under (col, prefix) in ascending or descending order,
// merging staged writes over the committed state so callers always see a
// consistent view of the in-progress block.
func (s *ReversibleOpStack) Iterate(col Column, prefix []byte, reverse bool, fn func(key, value []byte) error) error {
	fullPrefix := rawKey(col, prefix)
	merged := make(map[string][]byte)

	walk := func(k, v []byte) error {
		stripped := append([]byte(nil), k[1:]...)
		merged[string(stripped)] = append([]byte(nil), v...)
		return nil
	}
	if err := s.db.ForEach(fullPrefix, walk); err != nil {
		return err
	}

	for _, op := range s.staged {
		if op.Col != col || !bytes.HasPrefix(op.Key, prefix) {
			continue
		}
		if op.Kind == opDelete {
			delete(merged, string(op.Key))
		} else {
			merged[string(op.Key)] = op.Value
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports whether there are staged, uncommitted writes.
func (s *ReversibleOpStack) Pending() bool {
	return len(s.order) > 0
}

func (s *ReversibleOpStack) reset() {
	s.staged = make(map[string]*stagedOp)
	s.order = nil
}

func (s *ReversibleOpStack) applyStaged(put func(k, v []byte) error, del func(k []byte) error) ([]UndoEntry, error) {
	entries := make([]UndoEntry, 0, len(s.order))
	for _, sk := range s.order {
		op := s.staged[sk]
		rk := rawKey(op.Col, op.Key)
		if op.Kind == opPut {
			if err := put(rk, op.Value); err != nil {
				return nil, err
			}
		} else {
			if err := del(rk); err != nil {
				return nil, err
			}
		}
		entries = append(entries, UndoEntry{Col: op.Col, Key: op.Key, HadOld: op.HadOld, OldValue: op.OldValue})
	}
	return entries, nil
}

// Commit atomically applies every staged write and persists an undo record
// for height, so a later Rollback(height) can invert exactly this set of
// writes. Committing with nothing staged is a no-op.
func (s *ReversibleOpStack) Commit(height types.Height) error {
	if !s.Pending() {
		return nil
	}
	if batcher, ok := s.db.(Batcher); ok {
		b := batcher.NewBatch()
		entries, err := s.applyStaged(b.Put, b.Delete)
		if err != nil {
			return err
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal undo record: %w", err)
		}
		if err := b.Put(undoRecordKey(height), data); err != nil {
			return err
		}
		if err := b.Commit(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		s.reset()
		return nil
	}

	entries, err := s.applyStaged(s.db.Put, s.db.Delete)
	if err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal undo record: %w", err)
	}
	if err := s.db.Put(undoRecordKey(height), data); err != nil {
		return err
	}
	s.reset()
	return nil
}

// UnsafeCommit applies every staged write without recording an undo entry.
// Used during initial bulk sync, where falling behind the daemon's tip far
// enough to need a reorg is not a concern for blocks this deep.
func (s *ReversibleOpStack) UnsafeCommit() error {
	if !s.Pending() {
		return nil
	}
	if batcher, ok := s.db.(Batcher); ok {
		b := batcher.NewBatch()
		if _, err := s.applyStaged(b.Put, b.Delete); err != nil {
			return err
		}
		if err := b.Commit(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		s.reset()
		return nil
	}
	if _, err := s.applyStaged(s.db.Put, s.db.Delete); err != nil {
		return err
	}
	s.reset()
	return nil
}

func decodeUndoEntries(data []byte) ([]UndoEntry, error) {
	var entries []UndoEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return entries, nil
}

// PeekUndo decodes the undo record committed at height without applying
// it, so a caller can inspect exactly what that commit changed before
// deciding whether, or how, to roll it back.
func (s *ReversibleOpStack) PeekUndo(height types.Height) ([]UndoEntry, error) {
	data, err := s.db.Get(undoRecordKey(height))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: no undo record at height %d", ErrCorrupt, height)
	}
	if err != nil {
		return nil, err
	}
	return decodeUndoEntries(data)
}

// Rollback inverts the writes committed at height, replaying the undo
// record in reverse order, then discards the record. It refuses to run
// while a block is mid-staging: reorgs only ever happen between blocks.
func (s *ReversibleOpStack) Rollback(height types.Height) error {
	if s.Pending() {
		return fmt.Errorf("%w: rollback requested with a block still staged", ErrInvariantViolated)
	}
	rk := undoRecordKey(height)
	data, err := s.db.Get(rk)
	if errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("%w: no undo record at height %d", ErrCorrupt, height)
	}
	if err != nil {
		return err
	}
	entries, err := decodeUndoEntries(data)
	if err != nil {
		return err
	}

	invert := func(put func(k, v []byte) error, del func(k []byte) error) error {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			raw := rawKey(e.Col, e.Key)
			if e.HadOld {
				if err := put(raw, e.OldValue); err != nil {
					return err
				}
			} else {
				if err := del(raw); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if batcher, ok := s.db.(Batcher); ok {
		b := batcher.NewBatch()
		if err := invert(b.Put, b.Delete); err != nil {
			return err
		}
		if err := b.Delete(rk); err != nil {
			return err
		}
		return b.Commit()
	}
	if err := invert(s.db.Put, s.db.Delete); err != nil {
		return err
	}
	return s.db.Delete(rk)
}
