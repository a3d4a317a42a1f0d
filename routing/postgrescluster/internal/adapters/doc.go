// Package adapters provides internal database adapter implementations for
// the postgrescluster package. The adapters wrap the supported drivers
// (pgx pool, sqlx, database/sql) behind one narrow interface so the cluster
// can execute routed statements without caring which driver backs a handle.
//
// The adapters are deliberately dumb: primary/replica placement is decided
// by the routing package before an adapter is ever picked, so no adapter
// carries replica logic of its own.
package adapters
