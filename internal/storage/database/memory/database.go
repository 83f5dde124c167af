// Package memory implements database.DB in process memory.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/LeJamon/shalltest/internal/storage/database"
)

type DB struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func New() *DB {
	return &DB{data: make(map[string][]byte)}
}

func (m *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, database.ErrDBClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, database.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *DB) Write(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return database.ErrDBClosed
	}
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *DB) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return database.ErrDBClosed
	}
	delete(m.data, string(key))
	return nil
}

func (m *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	for _, op := range ops {
		if op.Type != database.BatchPut && op.Type != database.BatchDelete {
			return database.UnknownOpError(op.Type)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return database.ErrDBClosed
	}
	for _, op := range ops {
		if op.Type == database.BatchPut {
			m.data[string(op.Key)] = append([]byte(nil), op.Value...)
		} else {
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

// Iterator snapshots the matching range, so later writes are not observed.
func (m *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, database.ErrDBClosed
	}

	var keys []string
	for k := range m.data {
		kb := []byte(k)
		if start != nil && bytes.Compare(kb, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(kb, end) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([][2][]byte, len(keys))
	for i, k := range keys {
		entries[i] = [2][]byte{[]byte(k), append([]byte(nil), m.data[k]...)}
	}
	return &Iterator{entries: entries, pos: -1}, nil
}

func (m *DB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

type Iterator struct {
	entries [][2][]byte
	pos     int
}

func (it *Iterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		it.pos = len(it.entries)
		return false
	}
	it.pos++
	return true
}

func (it *Iterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos][0]
}

func (it *Iterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return it.entries[it.pos][1]
}

func (it *Iterator) Error() error { return nil }
func (it *Iterator) Close() error { return nil }
