package storage

import "github.com/Klingon-tech/klingnet-index/pkg/types"

// PrefixDB is the column-tagged façade every higher layer programs
// against: it owns one ReversibleOpStack per underlying DB and exposes
// reads that merge staged and committed state transparently, per §4.2.
type PrefixDB struct {
	db  DB
	Ops *ReversibleOpStack
}

// NewPrefixDB wraps db with a fresh op stack.
func NewPrefixDB(db DB) *PrefixDB {
	return &PrefixDB{db: db, Ops: NewReversibleOpStack(db)}
}

// Get reads a column value, staged-or-committed.
func (p *PrefixDB) Get(col Column, key []byte) ([]byte, error) {
	return p.Ops.Get(col, key)
}

// Has reports whether a column key is visible.
func (p *PrefixDB) Has(col Column, key []byte) (bool, error) {
	return p.Ops.Has(col, key)
}

// StagePut stages a write against col.
func (p *PrefixDB) StagePut(col Column, key, value []byte) error {
	return p.Ops.StagePut(col, key, value)
}

// StageDelete stages a deletion against col.
func (p *PrefixDB) StageDelete(col Column, key []byte) error {
	return p.Ops.StageDelete(col, key)
}

// Iterate walks col's keys under prefix, ascending or descending.
func (p *PrefixDB) Iterate(col Column, prefix []byte, reverse bool, fn func(key, value []byte) error) error {
	return p.Ops.Iterate(col, prefix, reverse, fn)
}

// Commit flushes staged writes atomically with an undo record for height.
func (p *PrefixDB) Commit(height types.Height) error {
	return p.Ops.Commit(height)
}

// UnsafeCommit flushes staged writes with no undo record.
func (p *PrefixDB) UnsafeCommit() error {
	return p.Ops.UnsafeCommit()
}

// Rollback inverts the commit made at height.
func (p *PrefixDB) Rollback(height types.Height) error {
	return p.Ops.Rollback(height)
}

// PeekUndo decodes the undo record committed at height without applying
// it.
func (p *PrefixDB) PeekUndo(height types.Height) ([]UndoEntry, error) {
	return p.Ops.PeekUndo(height)
}

// Close closes the underlying database.
func (p *PrefixDB) Close() error {
	return p.db.Close()
}
