// Package boltstore is the durable Store backing surrealkv:// endpoints.
//
// Records live in one bbolt file, in nested buckets namespace → database →
// table. bbolt holds an exclusive file lock, so one path serves one open
// store at a time.
package boltstore

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/forgo/surreal/internal/storage"
)

// Store persists records in a bbolt database file.
type Store struct {
	db *bolt.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if absent) the bbolt file at path. The open fails
// after one second if another process holds the file lock.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ns, db, table, id string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		nsb, err := tx.CreateBucketIfNotExists([]byte(ns))
		if err != nil {
			return err
		}
		dbb, err := nsb.CreateBucketIfNotExists([]byte(db))
		if err != nil {
			return err
		}
		tb, err := dbb.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		return tb.Put([]byte(id), data)
	})
	return translate(err)
}

func (s *Store) Get(ns, db, table, id string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		tb := tableBucket(tx, ns, db, table)
		if tb == nil {
			return storage.ErrNotFound
		}
		data := tb.Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) Delete(ns, db, table, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		tb := tableBucket(tx, ns, db, table)
		if tb == nil || tb.Get([]byte(id)) == nil {
			return storage.ErrNotFound
		}
		return tb.Delete([]byte(id))
	})
	return translate(err)
}

func (s *Store) Scan(ns, db, table string) ([]storage.Record, error) {
	var out []storage.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		tb := tableBucket(tx, ns, db, table)
		if tb == nil {
			return nil
		}
		// Bucket iteration is already key-ordered.
		return tb.ForEach(func(k, v []byte) error {
			data := make([]byte, len(v))
			copy(data, v)
			out = append(out, storage.Record{ID: string(k), Data: data})
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func tableBucket(tx *bolt.Tx, ns, db, table string) *bolt.Bucket {
	nsb := tx.Bucket([]byte(ns))
	if nsb == nil {
		return nil
	}
	dbb := nsb.Bucket([]byte(db))
	if dbb == nil {
		return nil
	}
	return dbb.Bucket([]byte(table))
}

func translate(err error) error {
	switch err {
	case nil:
		return nil
	case storage.ErrNotFound:
		return storage.ErrNotFound
	case bolt.ErrDatabaseNotOpen:
		return storage.ErrClosed
	default:
		return err
	}
}
