package postgrescluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import

	"github.com/bestie/active-record-shards/routing"
)

const (
	defaultVersionTableName = "schema_migrations"
	dialectPostgres         = "postgres"
	colVersion              = "version"
	colName                 = "name"
	colAppliedAt            = "applied_at"

	logMsgMigrationApplied  = "migration applied"
	logAttrVersion          = "version"
	logAttrMigrationName    = "migration_name"
	metricMigrationDuration = "migration_apply_duration_seconds"
)

// Migration is one ordered DDL step. Versions must be positive and unique
// within one Apply call.
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// MigratorOption defines a functional option for configuring a Migrator.
type MigratorOption func(*Migrator) error

// WithVersionTableName sets the bookkeeping table name for the Migrator.
func WithVersionTableName(tableName string) MigratorOption {
	return func(m *Migrator) error {
		if tableName == "" {
			return ErrEmptyVersionTableName
		}

		m.versionTableName = tableName

		return nil
	}
}

// Migrator applies ordered DDL steps to every shard's primary under
// migration context and tracks applied versions per shard. Failure on one
// shard aborts the run and reports the shard.
type Migrator struct {
	cluster          *Cluster
	versionTableName string
}

// NewMigrator creates a migrator over the given cluster with optional configuration.
func NewMigrator(cluster *Cluster, options ...MigratorOption) (*Migrator, error) {
	if cluster == nil {
		return nil, ErrNilRouter
	}

	migrator := &Migrator{
		cluster:          cluster,
		versionTableName: defaultVersionTableName,
	}

	for _, option := range options {
		if err := option(migrator); err != nil {
			return nil, err
		}
	}

	return migrator, nil
}

// EnsureVersionTable creates the bookkeeping table on every shard's primary
// if it does not exist yet.
func (m *Migrator) EnsureVersionTable(ctx context.Context) error {
	ctx = routing.WithMigration(ctx)

	return routing.OnAllShards(ctx, m.cluster.Router().Registry(), func(ctx context.Context, key routing.ShardKey) error {
		return m.ensureVersionTableOnShard(ctx, key)
	})
}

func (m *Migrator) ensureVersionTableOnShard(ctx context.Context, shard routing.ShardKey) error {
	_, adapter, adapterErr := m.cluster.adapterForShard(shard, routing.RolePrimary)
	if adapterErr != nil {
		return m.shardFailure(shard, adapterErr)
	}

	if _, execErr := adapter.Exec(ctx, m.buildCreateVersionTableSQL()); execErr != nil {
		return m.shardFailure(shard, execErr)
	}

	return nil
}

// Apply runs every not-yet-applied migration on every shard's primary, in
// version order, recording each applied version in the bookkeeping table.
// Entering migration context here is idempotent: callers already inside a
// migration scope are not deflected.
func (m *Migrator) Apply(ctx context.Context, migrations ...Migration) error {
	ordered, validateErr := orderedMigrations(migrations)
	if validateErr != nil {
		return validateErr
	}

	ctx = routing.WithMigration(ctx)

	return routing.OnAllShards(ctx, m.cluster.Router().Registry(), func(ctx context.Context, key routing.ShardKey) error {
		return m.applyToShard(ctx, key, ordered)
	})
}

func (m *Migrator) applyToShard(ctx context.Context, shard routing.ShardKey, ordered []Migration) error {
	start := time.Now()

	if ensureErr := m.ensureVersionTableOnShard(ctx, shard); ensureErr != nil {
		return ensureErr
	}

	applied, appliedErr := m.AppliedVersions(ctx, shard)
	if appliedErr != nil {
		return appliedErr
	}

	appliedSet := make(map[int64]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}

	_, adapter, adapterErr := m.cluster.adapterForShard(shard, routing.RolePrimary)
	if adapterErr != nil {
		return m.shardFailure(shard, adapterErr)
	}

	for _, migration := range ordered {
		if appliedSet[migration.Version] {
			continue
		}

		if _, execErr := adapter.Exec(ctx, migration.SQL); execErr != nil {
			return m.shardFailure(shard, fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Name, execErr))
		}

		insertSQL, buildErr := m.buildInsertVersionSQL(migration)
		if buildErr != nil {
			return m.shardFailure(shard, buildErr)
		}

		if _, insertErr := adapter.Exec(ctx, insertSQL); insertErr != nil {
			return m.shardFailure(shard, insertErr)
		}

		m.logMigrationApplied(ctx, shard, migration)
	}

	m.recordShardMigrated(ctx, shard, time.Since(start))

	return nil
}

// AppliedVersions returns the migration versions recorded on the shard's
// primary, ascending.
func (m *Migrator) AppliedVersions(ctx context.Context, shard routing.ShardKey) ([]int64, error) {
	ctx = routing.WithMigration(ctx)

	_, adapter, adapterErr := m.cluster.adapterForShard(shard, routing.RolePrimary)
	if adapterErr != nil {
		return nil, m.shardFailure(shard, adapterErr)
	}

	selectSQL, buildErr := m.buildSelectVersionsSQL()
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := adapter.Query(ctx, selectSQL)
	if queryErr != nil {
		return nil, m.shardFailure(shard, queryErr)
	}
	defer func() { _ = rows.Close() }()

	versions := make([]int64, 0)
	for rows.Next() {
		var version int64
		if scanErr := rows.Scan(&version); scanErr != nil {
			return nil, m.shardFailure(shard, scanErr)
		}

		versions = append(versions, version)
	}

	return versions, nil
}

func (m *Migrator) buildCreateVersionTableSQL() string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s bigint PRIMARY KEY, %s text NOT NULL, %s timestamptz NOT NULL DEFAULT now())`,
		m.versionTableName, colVersion, colName, colAppliedAt,
	)
}

func (m *Migrator) buildInsertVersionSQL(migration Migration) (string, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(m.versionTableName).
		Cols(colVersion, colName).
		Vals(goqu.Vals{migration.Version, migration.Name})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (m *Migrator) buildSelectVersionsSQL() (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(m.versionTableName).
		Select(colVersion).
		Order(goqu.I(colVersion).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (m *Migrator) shardFailure(shard routing.ShardKey, cause error) error {
	return errors.Join(ErrMigrationFailed, fmt.Errorf("shard %q", shard), cause)
}

func (m *Migrator) logMigrationApplied(ctx context.Context, shard routing.ShardKey, migration Migration) {
	args := []any{
		logAttrShard, string(shard),
		logAttrVersion, migration.Version,
		logAttrMigrationName, migration.Name,
	}

	if m.cluster.contextualLogger != nil {
		m.cluster.contextualLogger.InfoContext(ctx, logMsgMigrationApplied, args...)
		return
	}

	if m.cluster.logger != nil {
		m.cluster.logger.Info(logMsgMigrationApplied, args...)
	}
}

func (m *Migrator) recordShardMigrated(ctx context.Context, shard routing.ShardKey, duration time.Duration) {
	if m.cluster.metricsCollector == nil {
		return
	}

	labels := map[string]string{logAttrShard: string(shard)}

	if contextualCollector, ok := m.cluster.metricsCollector.(routing.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricMigrationDuration, duration, labels)
		return
	}

	m.cluster.metricsCollector.RecordDuration(metricMigrationDuration, duration, labels)
}

// orderedMigrations validates and sorts migrations by version.
func orderedMigrations(migrations []Migration) ([]Migration, error) {
	seen := make(map[int64]bool, len(migrations))

	for _, migration := range migrations {
		if migration.Version <= 0 {
			return nil, errors.Join(ErrInvalidMigration, fmt.Errorf("version %d must be positive", migration.Version))
		}

		if migration.SQL == "" {
			return nil, errors.Join(ErrInvalidMigration, fmt.Errorf("migration %d has no sql", migration.Version))
		}

		if seen[migration.Version] {
			return nil, errors.Join(ErrInvalidMigration, fmt.Errorf("duplicate version %d", migration.Version))
		}

		seen[migration.Version] = true
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	return ordered, nil
}
