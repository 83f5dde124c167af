// Package leveldb implements database.DB on top of goleveldb.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type DB struct {
	db *leveldb.DB
}

// Open opens (creating if needed) a LevelDB database in dir.
func Open(dir string) (*DB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %s: %w", dir, err)
	}
	return &DB{db: db}, nil
}

// OpenMemory opens a LevelDB instance backed by memory only.
func OpenMemory() (*DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory leveldb: %w", err)
	}
	return &DB{db: db}, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return database.ErrKeyNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return database.ErrDBClosed
	default:
		return err
	}
}

func (l *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err != nil {
		return nil, mapErr(err)
	}
	return val, nil
}

func (l *DB) Write(ctx context.Context, key, value []byte) error {
	return mapErr(l.db.Put(key, value, nil))
}

func (l *DB) Delete(ctx context.Context, key []byte) error {
	return mapErr(l.db.Delete(key, nil))
}

func (l *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			batch.Put(op.Key, op.Value)
		case database.BatchDelete:
			batch.Delete(op.Key)
		default:
			return database.UnknownOpError(op.Type)
		}
	}
	return mapErr(l.db.Write(batch, nil))
}

func (l *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	iter := l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	if err := iter.Error(); err != nil {
		iter.Release()
		return nil, mapErr(err)
	}
	return &Iterator{iter: iter}, nil
}

func (l *DB) Close() error {
	err := l.db.Close()
	if errors.Is(err, leveldb.ErrClosed) {
		return nil
	}
	return err
}

type Iterator struct {
	iter interface {
		Next() bool
		Key() []byte
		Value() []byte
		Error() error
		Release()
	}
	key, value []byte
}

func (it *Iterator) Next() bool {
	if !it.iter.Next() {
		it.key, it.value = nil, nil
		return false
	}
	it.key = append([]byte(nil), it.iter.Key()...)
	it.value = append([]byte(nil), it.iter.Value()...)
	return true
}

func (it *Iterator) Key() []byte   { return it.key }
func (it *Iterator) Value() []byte { return it.value }
func (it *Iterator) Error() error  { return mapErr(it.iter.Error()) }

func (it *Iterator) Close() error {
	it.iter.Release()
	return nil
}
