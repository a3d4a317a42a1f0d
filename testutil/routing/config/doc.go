// Package config provides PostgreSQL connection configuration for cluster testing.
//
// This package contains factory functions for creating database connections
// using the cluster's supported PostgreSQL adapters (pgx.Pool, sql.DB, sqlx.DB)
// with pre-configured DSNs for the default shard and the numbered test shards,
// each with a primary and an optional replica node.
package config
