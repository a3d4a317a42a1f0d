package config

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// SQLXPrimaryConfig creates a configured *sqlx.DB for the primary of a
// numbered test shard.
func SQLXPrimaryConfig(index int) *sqlx.DB {
	return sqlxConfig(ShardPrimaryDSN(index))
}

// SQLXReplicaConfig creates a configured *sqlx.DB for the replica of a
// numbered test shard.
func SQLXReplicaConfig(index int) *sqlx.DB {
	return sqlxConfig(ShardReplicaDSN(index))
}

// SQLXDefaultShardConfig creates a configured *sqlx.DB for the unsharded
// test database.
func SQLXDefaultShardConfig() *sqlx.DB {
	return sqlxConfig(DefaultShardPrimaryDSN())
}

func sqlxConfig(dsn string) *sqlx.DB {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", dsn)
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
