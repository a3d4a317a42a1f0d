package config

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// SQLDBPrimaryConfig creates a configured *sql.DB for the primary of a
// numbered test shard.
func SQLDBPrimaryConfig(index int) *sql.DB {
	return sqlDBConfig(ShardPrimaryDSN(index))
}

// SQLDBReplicaConfig creates a configured *sql.DB for the replica of a
// numbered test shard.
func SQLDBReplicaConfig(index int) *sql.DB {
	return sqlDBConfig(ShardReplicaDSN(index))
}

// SQLDBDefaultShardConfig creates a configured *sql.DB for the unsharded
// test database.
func SQLDBDefaultShardConfig() *sql.DB {
	return sqlDBConfig(DefaultShardPrimaryDSN())
}

func sqlDBConfig(dsn string) *sql.DB {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection, error: ", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(context.Background()); pingErr != nil {
		log.Fatal("Failed to ping database, error: ", pingErr)
	}

	return db
}
