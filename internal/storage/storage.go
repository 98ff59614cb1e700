// Package storage defines the record store behind the embedded engine.
//
// A Store holds opaque encoded records addressed by namespace, database,
// table and record key. Two implementations exist: memstore (ephemeral,
// backing mem:// endpoints) and boltstore (durable, backing surrealkv://
// endpoints).
package storage

import "errors"

var (
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("storage: store closed")
)

// Record is one stored record: its key within the table plus its encoded
// payload.
type Record struct {
	ID   string
	Data []byte
}

// Store is the persistence contract of the embedded engine. Implementations
// must be safe for concurrent use. Any error other than ErrNotFound and
// ErrClosed means the backing medium failed and the store can no longer be
// trusted.
type Store interface {
	// Put stores data under the given address, overwriting any existing
	// record.
	Put(ns, db, table, id string, data []byte) error

	// Get returns the record payload, or ErrNotFound.
	Get(ns, db, table, id string) ([]byte, error)

	// Delete removes a record. Deleting an absent record returns
	// ErrNotFound.
	Delete(ns, db, table, id string) error

	// Scan returns every record of a table ordered by record key. A table
	// that was never written scans empty.
	Scan(ns, db, table string) ([]Record, error)

	// Close releases the store. Further calls return ErrClosed.
	Close() error
}
