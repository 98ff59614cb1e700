// Package surreal is a multi-model database client with embedded and
// remote backends behind one handle.
//
// # Connecting
//
// The endpoint scheme selects the backend:
//
//	db, err := surreal.Connect(ctx, "mem://")             // ephemeral, in-process
//	db, err := surreal.Connect(ctx, "surrealkv://app.db") // durable, embedded
//	db, err := surreal.Connect(ctx, "ws://localhost:8000")// remote server
//
// Select a namespace before a database; the order is enforced:
//
//	if err := db.UseNS(ctx, "app"); err != nil { ... }
//	if err := db.UseDB(ctx, "main"); err != nil { ... }
//
// # Data operations
//
//	content := values.NewObject()
//	content.InsertString("name", "tobie")
//	rec, err := db.Create(ctx, "person", content)
//
//	rows, err := db.Select(ctx, "person")
//	results, err := db.Query(ctx, "SELECT * FROM person", nil)
//
// Each statement of a multi-statement Query reports its own error, so a
// partially failing batch still yields the results of its succeeding
// statements.
//
// # Live queries
//
//	stream, err := db.Live(ctx, "person")
//	for {
//	    n, ok := stream.Next(ctx)
//	    if !ok {
//	        break // stream closed or killed
//	    }
//	    fmt.Println(n.Action, n.Data)
//	}
//
// A Stream is exclusive: hand it between goroutines freely, but never call
// it from two at once.
//
// # Error model
//
// Operations return ordinary errors that map onto a small status lattice
// via StatusOf: recoverable failures (*QueryError) leave the handle usable;
// ErrClosed marks a handle or stream that ended without fault; *FatalError
// reports an internal invariant failure and permanently poisons the handle,
// after which any use panics. A fatal result means internal state is already
// beyond recovery.
//
// # Raw access
//
// OpenRPC exposes the CBOR wire protocol directly for callers that build
// their own envelopes; see RPC.
package surreal
