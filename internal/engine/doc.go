// Package engine is the embedded database behind mem:// and surrealkv://
// endpoints. It implements the RPC surface of a SurrealDB server (session
// state, record operations, live queries and minimal authentication) on
// top of a storage.Store.
//
// The engine is not a query planner. Query executes a small fixed set of
// statement forms (see query.go); each statement reports its own success or
// failure so a partially failing batch still returns the results of its
// succeeding statements.
//
// One Engine serves one connection and carries that connection's session
// (namespace, database, variables, authentication). It is safe for
// concurrent use by multiple goroutines of the owning connection.
package engine
