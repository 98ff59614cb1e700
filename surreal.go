package surreal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/forgo/surreal/internal/wire"
	"github.com/forgo/surreal/pkg/values"
)

// DB is a handle on one database connection. It is safe for concurrent use
// by multiple goroutines.
//
// A handle has three states. It starts Open. Any operation that returns a
// *FatalError transitions it to Poisoned, permanently: every later call on
// the handle, from any goroutine, panics. Close transitions it to Closed,
// after which operations return ErrClosed. Values previously returned by
// the handle stay valid after Close.
type DB struct {
	endpoint string
	tr       transport

	poisoned atomic.Bool

	mu     sync.Mutex
	ns, db string
	closed bool
}

// Connect opens a connection to the database at endpoint. The scheme
// selects the backend: mem:// for an ephemeral in-process store,
// surrealkv://<path> for a durable embedded store, ws:// or wss:// for a
// remote server. A malformed endpoint or unreachable backend is a
// recoverable error; no handle is returned.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*DB, error) {
	cfg := newConfig(opts)
	tr, err := dial(ctx, endpoint, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{endpoint: endpoint, tr: tr}, nil
}

// Endpoint returns the endpoint this handle was opened with.
func (db *DB) Endpoint() string { return db.endpoint }

// Close releases the connection. The handle must not be used afterwards;
// results previously returned remain valid. Closing twice returns
// ErrClosed.
func (db *DB) Close(ctx context.Context) error {
	db.checkPoison()
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrClosed
	}
	db.closed = true
	db.mu.Unlock()
	return db.fault(db.tr.Close(ctx))
}

// UseNS selects the namespace for subsequent operations.
func (db *DB) UseNS(ctx context.Context, ns string) error {
	_, err := db.send(ctx, wire.MethodUse, values.NewStrand(ns), values.NewNone())
	if err != nil {
		return err
	}
	db.mu.Lock()
	db.ns = ns
	db.mu.Unlock()
	return nil
}

// UseDB selects the database for subsequent operations. A namespace must
// have been selected first; otherwise ErrNamespaceNotSelected is returned.
func (db *DB) UseDB(ctx context.Context, name string) error {
	db.mu.Lock()
	ns := db.ns
	db.mu.Unlock()
	if ns == "" {
		return fmt.Errorf("%w: cannot use database %q", ErrNamespaceNotSelected, name)
	}
	_, err := db.send(ctx, wire.MethodUse, values.NewNone(), values.NewStrand(name))
	if err != nil {
		return err
	}
	db.mu.Lock()
	db.db = name
	db.mu.Unlock()
	return nil
}

// Version returns the backend's version string.
func (db *DB) Version(ctx context.Context) (string, error) {
	v, err := db.send(ctx, wire.MethodVersion)
	if err != nil {
		return "", err
	}
	s, ok := v.Strand()
	if !ok {
		return "", &QueryError{Message: fmt.Sprintf("version returned %s, want string", v.Kind())}
	}
	return s, nil
}

// Create inserts a new record. resource names a table (a random id is
// assigned) or a specific "table:id". content may be nil for an empty
// record. Returns the stored record.
func (db *DB) Create(ctx context.Context, resource string, content *values.Object) (*values.Object, error) {
	params := []values.Value{resourceValue(resource)}
	if content != nil {
		params = append(params, values.NewObjectValue(content))
	}
	v, err := db.send(ctx, wire.MethodCreate, params...)
	if err != nil {
		return nil, err
	}
	if arr, ok := v.Array(); ok {
		if len(arr) == 0 {
			return nil, &QueryError{Message: "create returned no record"}
		}
		v = arr[0]
	}
	obj, ok := v.Object()
	if !ok {
		return nil, &QueryError{Message: fmt.Sprintf("create returned %s, want object", v.Kind())}
	}
	return obj, nil
}

// Select reads a whole table or one record. A table yields all its records;
// a "table:id" resource yields at most one value. An empty result is a nil
// slice, not an error.
func (db *DB) Select(ctx context.Context, resource string) ([]values.Value, error) {
	v, err := db.send(ctx, wire.MethodSelect, resourceValue(resource))
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// Update replaces the content of existing records and returns the affected
// values. Updating an absent record yields an empty result.
func (db *DB) Update(ctx context.Context, resource string, content *values.Object) ([]values.Value, error) {
	params := []values.Value{resourceValue(resource)}
	if content != nil {
		params = append(params, values.NewObjectValue(content))
	}
	v, err := db.send(ctx, wire.MethodUpdate, params...)
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// Delete removes a whole table or one record and returns what was removed.
func (db *DB) Delete(ctx context.Context, resource string) ([]values.Value, error) {
	v, err := db.send(ctx, wire.MethodDelete, resourceValue(resource))
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// QueryResult is the outcome of one statement in a query batch. Err is nil
// when the statement succeeded; a failing statement does not affect its
// siblings in the same call.
type QueryResult struct {
	Result values.Value
	Err    *QueryError
}

// Query executes a (possibly multi-statement) query with bound variables.
// The returned slice has one entry per statement; inspect each entry's Err.
// The call-level error is reserved for transport and protocol failures.
func (db *DB) Query(ctx context.Context, sql string, vars *values.Object) ([]QueryResult, error) {
	params := []values.Value{values.NewStrand(sql)}
	if vars != nil {
		params = append(params, values.NewObjectValue(vars))
	}
	v, err := db.send(ctx, wire.MethodQuery, params...)
	if err != nil {
		return nil, err
	}
	arr, ok := v.Array()
	if !ok {
		return nil, &QueryError{Message: fmt.Sprintf("query returned %s, want array", v.Kind())}
	}
	out := make([]QueryResult, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.Object()
		if !ok {
			return nil, &QueryError{Message: fmt.Sprintf("statement result is %s, want object", item.Kind())}
		}
		var qr QueryResult
		status := ""
		if sv, ok := obj.Get("status"); ok {
			status, _ = sv.Strand()
		}
		result, _ := obj.Get("result")
		if status == "OK" {
			qr.Result = result
		} else {
			msg := result.String()
			if s, ok := result.Strand(); ok {
				msg = s
			}
			qr.Err = &QueryError{Message: msg}
		}
		out = append(out, qr)
	}
	return out, nil
}

// Live registers a live query against resource (a whole table) and returns
// the stream of its notifications. The call itself returns no data; pull
// notifications from the stream.
func (db *DB) Live(ctx context.Context, resource string) (*Stream, error) {
	db.checkPoison()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	id, ch, err := db.tr.Live(ctx, resource)
	if err != nil {
		return nil, db.fault(err)
	}
	return &Stream{
		id: id,
		ch: ch,
		kill: func(ctx context.Context) error {
			db.checkPoison()
			if err := db.checkOpen(); err != nil {
				return err
			}
			return db.fault(db.tr.Kill(ctx, id))
		},
	}, nil
}

// Auth carries credentials for SignUp and SignIn. Namespace and Database
// may be empty for root-level access.
type Auth struct {
	Namespace string
	Database  string
	Username  string
	Password  string
}

func (a Auth) object() values.Value {
	obj := values.NewObject()
	if a.Namespace != "" {
		obj.InsertString("ns", a.Namespace)
	}
	if a.Database != "" {
		obj.InsertString("db", a.Database)
	}
	obj.InsertString("user", a.Username)
	obj.InsertString("pass", a.Password)
	return values.NewObjectValue(obj)
}

// SignUp registers credentials and returns a session token.
func (db *DB) SignUp(ctx context.Context, auth Auth) (string, error) {
	return db.tokenCall(ctx, wire.MethodSignUp, auth)
}

// SignIn authenticates and returns a session token.
func (db *DB) SignIn(ctx context.Context, auth Auth) (string, error) {
	return db.tokenCall(ctx, wire.MethodSignIn, auth)
}

func (db *DB) tokenCall(ctx context.Context, method string, auth Auth) (string, error) {
	v, err := db.send(ctx, method, auth.object())
	if err != nil {
		return "", err
	}
	token, ok := v.Strand()
	if !ok {
		return "", &QueryError{Message: fmt.Sprintf("%s returned %s, want token", method, v.Kind())}
	}
	return token, nil
}

// Authenticate validates a previously issued token.
func (db *DB) Authenticate(ctx context.Context, token string) error {
	_, err := db.send(ctx, wire.MethodAuthenticate, values.NewStrand(token))
	return err
}

// Invalidate revokes a session token.
func (db *DB) Invalidate(ctx context.Context, token string) error {
	_, err := db.send(ctx, wire.MethodInvalidate, values.NewStrand(token))
	return err
}

// Let binds a session variable readable as $name in queries.
func (db *DB) Let(ctx context.Context, name string, v values.Value) error {
	_, err := db.send(ctx, wire.MethodLet, values.NewStrand(name), v)
	return err
}

// Unset removes a session variable.
func (db *DB) Unset(ctx context.Context, name string) error {
	_, err := db.send(ctx, wire.MethodUnset, values.NewStrand(name))
	return err
}

func (db *DB) send(ctx context.Context, method string, params ...values.Value) (values.Value, error) {
	db.checkPoison()
	if err := db.checkOpen(); err != nil {
		return values.Value{}, err
	}
	v, err := db.tr.Send(ctx, method, params...)
	return v, db.fault(err)
}

func (db *DB) checkOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

// checkPoison enforces the fail-fast contract: a handle that has produced a
// fatal error must not be used again, and doing so is a programmer error.
func (db *DB) checkPoison() {
	if db.poisoned.Load() {
		panic("surreal: use of poisoned connection handle")
	}
}

// fault maps transport-level errors onto the public error kinds, poisoning
// the handle on fatal ones.
func (db *DB) fault(err error) error {
	if err == nil {
		return nil
	}
	var fatal *wire.Fatal
	if errors.As(err, &fatal) {
		db.poisoned.Store(true)
		return &FatalError{Err: fatal.Err}
	}
	if errors.Is(err, wire.ErrClosed) {
		return ErrClosed
	}
	var rpcErr *wire.Error
	if errors.As(err, &rpcErr) {
		return &QueryError{Code: rpcErr.Code, Message: rpcErr.Message}
	}
	return err
}

// resourceValue encodes a resource string: "table:id" as a record
// reference, anything else as a plain table name.
func resourceValue(resource string) values.Value {
	if thing, err := values.ParseThing(resource); err == nil {
		return values.NewThing(thing)
	}
	return values.NewStrand(resource)
}

// normalize flattens an operation result: arrays stay as-is, None becomes
// empty, a single value becomes a one-element slice.
func normalize(v values.Value) []values.Value {
	if arr, ok := v.Array(); ok {
		return arr
	}
	if v.IsNone() {
		return nil
	}
	return []values.Value{v}
}
