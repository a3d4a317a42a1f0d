package postgrescluster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/bestie/active-record-shards/routing"
	"github.com/bestie/active-record-shards/routing/postgrescluster/internal/adapters"
)

const (
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgDBExecFailed      = "database statement execution failed"
	logMsgRowsAffectedErr   = "failed to get rows affected count"
	logMsgAdapterMissing    = "no connection attached for decided handle"
	logMsgSQLExecuted       = "executed sql for: "
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrModel            = "model"
	logAttrShard            = "shard"
	logAttrRole             = "role"
	logAttrHandleID         = "handle_id"
	logAttrDurationMS       = "duration_ms"
	logActionQuery          = "query"
	logActionExec           = "exec"
	spanNameQuery           = "postgrescluster.query"
	spanNameExec            = "postgrescluster.exec"
	spanAttrOperation       = "operation"
	spanAttrModel           = "model"
	spanAttrShard           = "shard"
	spanAttrRole            = "role"
	spanAttrErrorType       = "error_type"
	spanAttrRowsAffected    = "rows_affected"
	statusSuccess           = "success"
	statusError             = "error"
	metricQueryDuration     = "cluster_query_duration_seconds"
	metricExecDuration      = "cluster_exec_duration_seconds"
	metricClusterErrors     = "cluster_errors_total"
	errorTypeAdapterMissing = "adapter_missing"
	errorTypeQuery          = "query"
	errorTypeExec           = "exec"
	errorTypeRouting        = "routing"
)

// Rows is the result of a routed query.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// Cluster owns the physical connections of a sharded Postgres topology,
// one per registered (shard, role) handle, and executes statements on the
// connection the Router decides should serve them.
type Cluster struct {
	router           *routing.Router
	adapters         map[string]adapters.DBAdapter // keyed by handle ID
	ownedAdapters    []*adapters.PGXAdapter        // pools dialed by OpenFromConfig
	logger           routing.Logger
	contextualLogger routing.ContextualLogger
	metricsCollector routing.MetricsCollector
	tracingCollector routing.TracingCollector
}

// NewCluster creates a cluster over the given router with optional
// configuration. Connections are attached afterwards with the AttachXxx
// methods, one per registered handle.
func NewCluster(router *routing.Router, options ...Option) (*Cluster, error) {
	if router == nil {
		return nil, ErrNilRouter
	}

	cluster := &Cluster{
		router:   router,
		adapters: make(map[string]adapters.DBAdapter),
	}

	for _, option := range options {
		if err := option(cluster); err != nil {
			return nil, err
		}
	}

	return cluster, nil
}

// OpenFromConfig builds the registry and router from the YAML topology and
// dials one pgx pool per configured node. The cluster owns those pools;
// Close releases them.
func OpenFromConfig(ctx context.Context, cfg routing.Config, options ...Option) (*Cluster, error) {
	registry, buildErr := cfg.BuildRegistry()
	if buildErr != nil {
		return nil, buildErr
	}

	router, routerErr := routing.NewRouter(registry)
	if routerErr != nil {
		return nil, routerErr
	}

	cluster, clusterErr := NewCluster(router, options...)
	if clusterErr != nil {
		return nil, clusterErr
	}

	for _, key := range registry.ShardKeys() {
		primary, primaryErr := registry.HandleFor(key, routing.RolePrimary)
		if primaryErr != nil {
			return nil, primaryErr
		}

		if err := cluster.dialAndAttach(ctx, primary); err != nil {
			cluster.Close()
			return nil, err
		}

		replica, replicaErr := registry.HandleFor(key, routing.RoleReplica)
		if replicaErr != nil {
			if errors.Is(replicaErr, routing.ErrReplicaNotRegistered) {
				continue // replica-routed reads fall back to the primary
			}
			cluster.Close()
			return nil, replicaErr
		}

		if err := cluster.dialAndAttach(ctx, replica); err != nil {
			cluster.Close()
			return nil, err
		}
	}

	return cluster, nil
}

func (c *Cluster) dialAndAttach(ctx context.Context, handle routing.Handle) error {
	pool, poolErr := pgxpool.New(ctx, handle.DSN())
	if poolErr != nil {
		return errors.Join(ErrOpeningPoolFailed, fmt.Errorf("handle %s", handle), poolErr)
	}

	adapter := adapters.NewPGXAdapter(pool)
	c.adapters[handle.ID()] = adapter
	c.ownedAdapters = append(c.ownedAdapters, adapter)

	return nil
}

// Router returns the router this cluster executes against.
func (c *Cluster) Router() *routing.Router {
	return c.router
}

// AttachPGXPool attaches a pgx pool as the connection for the given shard
// and role. The pool stays owned by the caller.
func (c *Cluster) AttachPGXPool(shard routing.ShardKey, role routing.Role, pool *pgxpool.Pool) error {
	if pool == nil {
		return ErrNilDatabaseConnection
	}

	return c.attach(shard, role, adapters.NewPGXAdapter(pool))
}

// AttachSQLX attaches a sqlx handle as the connection for the given shard
// and role. The handle stays owned by the caller.
func (c *Cluster) AttachSQLX(shard routing.ShardKey, role routing.Role, db *sqlx.DB) error {
	if db == nil {
		return ErrNilDatabaseConnection
	}

	return c.attach(shard, role, adapters.NewSQLXAdapter(db))
}

// AttachSQLDB attaches a database/sql handle as the connection for the
// given shard and role. The handle stays owned by the caller.
func (c *Cluster) AttachSQLDB(shard routing.ShardKey, role routing.Role, db *sql.DB) error {
	if db == nil {
		return ErrNilDatabaseConnection
	}

	return c.attach(shard, role, adapters.NewSQLAdapter(db))
}

func (c *Cluster) attach(shard routing.ShardKey, role routing.Role, adapter adapters.DBAdapter) error {
	handle, handleErr := c.router.Registry().HandleFor(shard, role)
	if handleErr != nil {
		return handleErr
	}

	if _, exists := c.adapters[handle.ID()]; exists {
		return errors.Join(ErrAdapterAlreadyAttached, fmt.Errorf("handle %s", handle))
	}

	c.adapters[handle.ID()] = adapter

	return nil
}

// Close releases the pools dialed by OpenFromConfig. Connections attached
// by the caller are untouched.
func (c *Cluster) Close() {
	for _, adapter := range c.ownedAdapters {
		adapter.Close()
	}

	c.ownedAdapters = nil
}

// Query routes and executes a read-shaped statement for the model. The
// operation kind is the caller's classification; the routing context on ctx
// can override the placement.
func (c *Cluster) Query(ctx context.Context, model string, op routing.OperationKind, sqlQuery string) (Rows, error) {
	return c.QueryForRecord(ctx, model, op, nil, sqlQuery)
}

// QueryForRecord is Query with record context for shard key resolution.
func (c *Cluster) QueryForRecord(ctx context.Context, model string, op routing.OperationKind, record any, sqlQuery string) (Rows, error) {
	tracing, ctx := c.startTracing(ctx, spanNameQuery, model, op)

	handle, adapter, routeErr := c.route(ctx, model, op, record)
	if routeErr != nil {
		tracing.finishError(errorTypeFor(routeErr))
		c.countError(ctx, errorTypeFor(routeErr))

		return nil, routeErr
	}

	start := time.Now()
	rows, queryErr := adapter.Query(ctx, sqlQuery)
	duration := time.Since(start)
	c.logQueryWithDuration(ctx, sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		c.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery, logAttrHandleID, handle.ID())
		c.recordDuration(ctx, metricQueryDuration, duration, statusError)
		c.countError(ctx, errorTypeQuery)
		tracing.finishError(errorTypeQuery)

		return nil, errors.Join(ErrQueryFailed, queryErr)
	}

	c.recordDuration(ctx, metricQueryDuration, duration, statusSuccess)
	tracing.finishSuccess(handle, duration)

	return rows, nil
}

// Exec routes and executes a write-shaped statement for the model and
// returns the number of affected rows.
func (c *Cluster) Exec(ctx context.Context, model string, op routing.OperationKind, sqlQuery string) (int64, error) {
	return c.ExecForRecord(ctx, model, op, nil, sqlQuery)
}

// ExecForRecord is Exec with record context for shard key resolution.
func (c *Cluster) ExecForRecord(ctx context.Context, model string, op routing.OperationKind, record any, sqlQuery string) (int64, error) {
	tracing, ctx := c.startTracing(ctx, spanNameExec, model, op)

	handle, adapter, routeErr := c.route(ctx, model, op, record)
	if routeErr != nil {
		tracing.finishError(errorTypeFor(routeErr))
		c.countError(ctx, errorTypeFor(routeErr))

		return 0, routeErr
	}

	start := time.Now()
	result, execErr := adapter.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	c.logQueryWithDuration(ctx, sqlQuery, logActionExec, duration)

	if execErr != nil {
		c.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery, logAttrHandleID, handle.ID())
		c.recordDuration(ctx, metricExecDuration, duration, statusError)
		c.countError(ctx, errorTypeExec)
		tracing.finishError(errorTypeExec)

		return 0, errors.Join(ErrExecFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		c.logError(ctx, logMsgRowsAffectedErr, rowsAffectedErr)
		tracing.finishError(errorTypeExec)

		return 0, errors.Join(ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	c.recordDuration(ctx, metricExecDuration, duration, statusSuccess)
	tracing.finishSuccessWithRows(handle, duration, rowsAffected)

	return rowsAffected, nil
}

// route decides the handle for the operation and resolves its attached
// adapter. A missing adapter for a decided handle is a configuration error
// surfaced as such, never a silent fallback to another connection.
func (c *Cluster) route(ctx context.Context, model string, op routing.OperationKind, record any) (routing.Handle, adapters.DBAdapter, error) {
	handle, decideErr := c.router.DecideForRecord(ctx, model, op, record)
	if decideErr != nil {
		return routing.Handle{}, nil, decideErr
	}

	adapter, ok := c.adapters[handle.ID()]
	if !ok {
		err := errors.Join(ErrAdapterNotAttached, fmt.Errorf("handle %s", handle))
		c.logError(ctx, logMsgAdapterMissing, err, logAttrModel, model, logAttrShard, string(handle.Shard()), logAttrRole, handle.Role().String())

		return routing.Handle{}, nil, err
	}

	return handle, adapter, nil
}

// adapterForShard resolves the adapter serving a shard role directly,
// bypassing model policies. Used by the Migrator, which addresses shards,
// not models.
func (c *Cluster) adapterForShard(shard routing.ShardKey, role routing.Role) (routing.Handle, adapters.DBAdapter, error) {
	handle, handleErr := c.router.Registry().ConnectionFor(shard, role)
	if handleErr != nil {
		return routing.Handle{}, nil, handleErr
	}

	adapter, ok := c.adapters[handle.ID()]
	if !ok {
		return routing.Handle{}, nil, errors.Join(ErrAdapterNotAttached, fmt.Errorf("handle %s", handle))
	}

	return handle, adapter, nil
}

func errorTypeFor(err error) string {
	if errors.Is(err, ErrAdapterNotAttached) {
		return errorTypeAdapterMissing
	}

	return errorTypeRouting
}
