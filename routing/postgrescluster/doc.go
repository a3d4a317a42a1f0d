// Package postgrescluster wires the routing decision engine to physical
// Postgres connections. A Cluster owns one connection per registered
// (shard, role) pair, any mix of pgx pools, sqlx handles and database/sql
// handles, and executes statements on whichever connection the routing
// package decides should serve them.
//
// The cluster classifies nothing itself: callers pass the operation kind,
// and the routing context (transaction, migration, forced blocks, shard
// selection) carried on the context does the rest.
//
// The Migrator applies ordered DDL steps to every shard's primary under
// migration context and tracks applied versions in a schema_migrations
// table per shard.
package postgrescluster
