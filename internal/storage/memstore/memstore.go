// Package memstore is the ephemeral in-process Store backing mem://
// endpoints. All data is lost when the store is closed.
package memstore

import (
	"sort"
	"sync"

	"github.com/forgo/surreal/internal/storage"
)

type tableKey struct {
	ns, db, table string
}

// Store keeps records in process memory, guarded by one RWMutex.
type Store struct {
	mu     sync.RWMutex
	tables map[tableKey]map[string][]byte
	closed bool
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[tableKey]map[string][]byte)}
}

func (s *Store) Put(ns, db, table, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	key := tableKey{ns, db, table}
	t, ok := s.tables[key]
	if !ok {
		t = make(map[string][]byte)
		s.tables[key] = t
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	t[id] = buf
	return nil
}

func (s *Store) Get(ns, db, table, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	data, ok := s.tables[tableKey{ns, db, table}][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (s *Store) Delete(ns, db, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	t := s.tables[tableKey{ns, db, table}]
	if _, ok := t[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t, id)
	return nil
}

func (s *Store) Scan(ns, db, table string) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	t := s.tables[tableKey{ns, db, table}]
	out := make([]storage.Record, 0, len(t))
	for id, data := range t {
		buf := make([]byte, len(data))
		copy(buf, data)
		out = append(out, storage.Record{ID: id, Data: buf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.closed = true
	s.tables = nil
	return nil
}
