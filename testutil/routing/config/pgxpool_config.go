package config

import (
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXPoolPrimaryConfig creates a pgxpool.Config for the primary of a
// numbered test shard.
func PGXPoolPrimaryConfig(index int) *pgxpool.Config {
	return pgxPoolConfig(ShardPrimaryDSN(index))
}

// PGXPoolReplicaConfig creates a pgxpool.Config for the replica of a
// numbered test shard.
func PGXPoolReplicaConfig(index int) *pgxpool.Config {
	return pgxPoolConfig(ShardReplicaDSN(index))
}

// PGXPoolDefaultShardConfig creates a pgxpool.Config for the unsharded test
// database.
func PGXPoolDefaultShardConfig() *pgxpool.Config {
	return pgxPoolConfig(DefaultShardPrimaryDSN())
}

func pgxPoolConfig(dsn string) *pgxpool.Config {
	const defaultMaxConnections = int32(20)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal("Failed to create a config, error: ", err)
	}

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig
}
