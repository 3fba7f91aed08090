package storage

import (
	"sort"
	"strings"
)

// MemoryDB implements DB using an in-memory map. Used by fast-iteration
// tests; ForEach/ForEachReverse sort matching keys on every call, which is
// fine at test scale and keeps the implementation trivial.
type MemoryDB struct {
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryDB) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *MemoryDB) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *MemoryDB) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryDB) matchingKeys(prefix []byte) []string {
	p := string(prefix)
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	for _, k := range m.matchingKeys(prefix) {
		if err := fn([]byte(k), m.data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryDB) ForEachReverse(prefix []byte, fn func(key, value []byte) error) error {
	keys := m.matchingKeys(prefix)
	for i := len(keys) - 1; i >= 0; i-- {
		if err := fn([]byte(keys[i]), m.data[keys[i]]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryDB) Close() error {
	return nil
}

// memoryBatch buffers writes and applies them on Commit. MemoryDB has no
// real atomicity concern (single goroutine, no disk) but it implements
// Batcher so tests exercise the same code path as BadgerDB.
type memoryBatch struct {
	db  *MemoryDB
	ops []memoryOp
}

type memoryOp struct {
	key    []byte
	value  []byte
	delete bool
}

func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), delete: true})
	return nil
}

func (b *memoryBatch) Commit() error {
	for _, op := range b.ops {
		if op.delete {
			b.db.Delete(op.key)
		} else {
			b.db.Put(op.key, op.value)
		}
	}
	return nil
}
