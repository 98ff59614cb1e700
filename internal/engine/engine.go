package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/forgo/surreal/internal/storage"
	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// Version is the version string reported by embedded endpoints.
const Version = "surrealdb-embedded-2.0.0"

const errCode = -32000 // generic engine failure, mirroring the server's RPC errors

// Engine executes data operations for one embedded connection.
type Engine struct {
	store storage.Store
	log   *slog.Logger

	mu     sync.Mutex
	ns, db string
	vars   map[string]values.Value
	users  map[string][]byte // scope key → bcrypt hash
	tokens map[string]string // token → scope key
	subs   map[values.UUID]*subscription
	push   chan values.Notification
	closed bool
}

// New returns an engine over the given store.
func New(store storage.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:  store,
		log:    log,
		vars:   make(map[string]values.Value),
		users:  make(map[string][]byte),
		tokens: make(map[string]string),
		subs:   make(map[values.UUID]*subscription),
	}
}

func failed(format string, args ...any) *wire.Error {
	return &wire.Error{Code: errCode, Message: fmt.Sprintf(format, args...)}
}

// storeErr classifies a storage failure: a missing record is handled by the
// callers, anything else means the backing medium is broken and the engine
// can no longer guarantee its invariants.
func storeErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrClosed) {
		return err
	}
	return &wire.Fatal{Err: err}
}

// Use selects the session namespace and/or database. Selecting a database
// requires a namespace, either already selected or given in the same call.
func (e *Engine) Use(ns, db string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	if ns != "" {
		e.ns = ns
	}
	if db != "" {
		if e.ns == "" {
			return failed("cannot select database %q before a namespace", db)
		}
		e.db = db
	}
	return nil
}

// Session returns the selected namespace and database.
func (e *Engine) Session() (ns, db string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ns, e.db
}

// Let binds a session variable readable as $name in queries.
func (e *Engine) Let(name string, v values.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	e.vars[name] = v
	return nil
}

// Unset removes a session variable.
func (e *Engine) Unset(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	delete(e.vars, name)
	return nil
}

// VersionString returns the engine version.
func (e *Engine) VersionString() string { return Version }

// Create inserts a new record. resource is a table name or "table:id";
// without an explicit id a random one is generated. Returns the stored
// record.
func (e *Engine) Create(resource string, content *values.Object) (values.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return values.Value{}, wire.ErrClosed
	}
	if err := e.needSession(); err != nil {
		return values.Value{}, err
	}
	table, id, hasID, err := splitResource(resource)
	if err != nil {
		return values.Value{}, err
	}
	if !hasID {
		id = values.RandomID()
	}
	thing := values.Thing{Table: table, ID: id}

	if hasID {
		if _, err := e.store.Get(e.ns, e.db, table, id.String()); err == nil {
			return values.Value{}, failed("record %s already exists", thing)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return values.Value{}, storeErr(err)
		}
	}

	record := buildRecord(thing, content)
	if err := e.putRecord(thing, record); err != nil {
		return values.Value{}, err
	}
	e.notify(table, values.ActionCreate, record)
	return record, nil
}

// Update replaces the content of existing records. A whole-table resource
// updates every record; a specific absent record yields None without
// creating it.
func (e *Engine) Update(resource string, content *values.Object) (values.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return values.Value{}, wire.ErrClosed
	}
	if err := e.needSession(); err != nil {
		return values.Value{}, err
	}
	table, id, hasID, err := splitResource(resource)
	if err != nil {
		return values.Value{}, err
	}

	if hasID {
		thing := values.Thing{Table: table, ID: id}
		if _, err := e.store.Get(e.ns, e.db, table, id.String()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return values.NewNone(), nil
			}
			return values.Value{}, storeErr(err)
		}
		record := buildRecord(thing, content)
		if err := e.putRecord(thing, record); err != nil {
			return values.Value{}, err
		}
		e.notify(table, values.ActionUpdate, record)
		return record, nil
	}

	recs, err := e.store.Scan(e.ns, e.db, table)
	if err != nil {
		return values.Value{}, storeErr(err)
	}
	out := make([]values.Value, 0, len(recs))
	for _, rec := range recs {
		old, err := decodeRecord(rec.Data)
		if err != nil {
			return values.Value{}, err
		}
		thing := recordThing(old, table, rec.ID)
		record := buildRecord(thing, content)
		if err := e.putRecord(thing, record); err != nil {
			return values.Value{}, err
		}
		e.notify(table, values.ActionUpdate, record)
		out = append(out, record)
	}
	return values.NewArray(out), nil
}

// Select reads a whole table (returning an array) or one record (returning
// the record, or None when absent).
func (e *Engine) Select(resource string) (values.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return values.Value{}, wire.ErrClosed
	}
	if err := e.needSession(); err != nil {
		return values.Value{}, err
	}
	table, id, hasID, err := splitResource(resource)
	if err != nil {
		return values.Value{}, err
	}

	if hasID {
		data, err := e.store.Get(e.ns, e.db, table, id.String())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return values.NewNone(), nil
			}
			return values.Value{}, storeErr(err)
		}
		return decodeRecord(data)
	}

	recs, err := e.store.Scan(e.ns, e.db, table)
	if err != nil {
		return values.Value{}, storeErr(err)
	}
	out := make([]values.Value, 0, len(recs))
	for _, rec := range recs {
		v, err := decodeRecord(rec.Data)
		if err != nil {
			return values.Value{}, err
		}
		out = append(out, v)
	}
	return values.NewArray(out), nil
}

// Delete removes a whole table or one record, returning what was removed.
func (e *Engine) Delete(resource string) (values.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return values.Value{}, wire.ErrClosed
	}
	if err := e.needSession(); err != nil {
		return values.Value{}, err
	}
	table, id, hasID, err := splitResource(resource)
	if err != nil {
		return values.Value{}, err
	}

	if hasID {
		data, err := e.store.Get(e.ns, e.db, table, id.String())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return values.NewNone(), nil
			}
			return values.Value{}, storeErr(err)
		}
		record, err := decodeRecord(data)
		if err != nil {
			return values.Value{}, err
		}
		if err := e.store.Delete(e.ns, e.db, table, id.String()); err != nil {
			return values.Value{}, storeErr(err)
		}
		e.notify(table, values.ActionDelete, record)
		return record, nil
	}

	recs, err := e.store.Scan(e.ns, e.db, table)
	if err != nil {
		return values.Value{}, storeErr(err)
	}
	out := make([]values.Value, 0, len(recs))
	for _, rec := range recs {
		record, err := decodeRecord(rec.Data)
		if err != nil {
			return values.Value{}, err
		}
		if err := e.store.Delete(e.ns, e.db, table, rec.ID); err != nil {
			return values.Value{}, storeErr(err)
		}
		e.notify(table, values.ActionDelete, record)
		out = append(out, record)
	}
	return values.NewArray(out), nil
}

// Close tears the engine down: every live subscription observes end of
// stream and the store is released.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wire.ErrClosed
	}
	e.closed = true
	for id, sub := range e.subs {
		close(sub.ch)
		delete(e.subs, id)
	}
	if e.push != nil {
		close(e.push)
		e.push = nil
	}
	return e.store.Close()
}

func (e *Engine) needSession() error {
	if e.ns == "" || e.db == "" {
		return failed("no namespace/database selected")
	}
	return nil
}

func (e *Engine) putRecord(thing values.Thing, record values.Value) error {
	data, err := values.Marshal(record)
	if err != nil {
		return failed("encode record %s: %v", thing, err)
	}
	if err := e.store.Put(e.ns, e.db, thing.Table, thing.ID.String(), data); err != nil {
		return storeErr(err)
	}
	return nil
}

// buildRecord assembles the stored record object: caller content with the
// id field pinned to the record's Thing.
func buildRecord(thing values.Thing, content *values.Object) values.Value {
	obj := values.NewObject()
	if content != nil {
		obj = content.Clone()
	}
	obj.Insert("id", values.NewThing(thing))
	return values.NewObjectValue(obj)
}

func decodeRecord(data []byte) (values.Value, error) {
	v, err := values.Unmarshal(data)
	if err != nil {
		// A record we wrote ourselves no longer decodes: the store is not
		// trustworthy anymore.
		return values.Value{}, &wire.Fatal{Err: fmt.Errorf("decode stored record: %w", err)}
	}
	return v, nil
}

func recordThing(record values.Value, table, fallbackID string) values.Thing {
	if obj, ok := record.Object(); ok {
		if idv, ok := obj.Get("id"); ok {
			if t, ok := idv.Thing(); ok {
				return t
			}
		}
	}
	return values.Thing{Table: table, ID: values.StringID(fallbackID)}
}

// splitResource parses "table" or "table:id".
func splitResource(resource string) (table string, id values.ID, hasID bool, err error) {
	if resource == "" {
		return "", values.ID{}, false, failed("empty resource")
	}
	thing, perr := values.ParseThing(resource)
	if perr == nil {
		return thing.Table, thing.ID, true, nil
	}
	if containsColon(resource) {
		return "", values.ID{}, false, failed("malformed record reference %q", resource)
	}
	return resource, values.ID{}, false, nil
}

func containsColon(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return true
		}
	}
	return false
}
