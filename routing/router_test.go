package routing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestie/active-record-shards/routing"
	"github.com/bestie/active-record-shards/testutil/routing/helper"
)

func buildTestRegistry(t *testing.T) *routing.Registry {
	t.Helper()

	registry := routing.NewRegistry()

	require.NoError(t, registry.RegisterShardWithReplica(
		routing.DefaultShard,
		"postgres://app@db0:5432/appdata",
		"postgres://app@db0-ro:5432/appdata",
	))
	require.NoError(t, registry.RegisterShardWithReplica(
		"shard_3",
		"postgres://app@db3:5432/appdata",
		"postgres://app@db3-ro:5432/appdata",
	))
	require.NoError(t, registry.RegisterShard(
		"shard_lonely",
		"postgres://app@db9:5432/appdata",
	))

	require.NoError(t, registry.RegisterModel("Account", routing.UnshardedPolicy().OnReplicaByDefault()))
	require.NoError(t, registry.RegisterModel("Invoice", routing.UnshardedPolicy()))
	require.NoError(t, registry.RegisterModel("Order",
		routing.ShardedPolicy().WithResolver(routing.ShardKeyFromField("region"))))
	require.NoError(t, registry.RegisterModel("Report",
		routing.ShardedPolicy().WithStaticShard("shard_3").OnReplicaByDefault()))

	return registry
}

func buildTestRouter(t *testing.T) *routing.Router {
	t.Helper()

	router, err := routing.NewRouter(buildTestRegistry(t))
	require.NoError(t, err)

	return router
}

func Test_NewRouter_RejectsNilRegistry(t *testing.T) {
	_, err := routing.NewRouter(nil)
	assert.ErrorIs(t, err, routing.ErrNilRegistry)
}

//nolint:funlen
func Test_Router_Decide_PriorityChain(t *testing.T) {
	tests := []struct {
		name         string
		ctx          func() context.Context
		model        string
		op           routing.OperationKind
		expectedRole routing.Role
	}{
		{
			name:         "read_on_replica_default_model_goes_to_replica",
			ctx:          context.Background,
			model:        "Account",
			op:           routing.OpRead,
			expectedRole: routing.RoleReplica,
		},
		{
			name:         "read_on_primary_default_model_goes_to_primary",
			ctx:          context.Background,
			model:        "Invoice",
			op:           routing.OpRead,
			expectedRole: routing.RolePrimary,
		},
		{
			name:         "write_goes_to_primary_despite_replica_default",
			ctx:          context.Background,
			model:        "Account",
			op:           routing.OpWrite,
			expectedRole: routing.RolePrimary,
		},
		{
			name: "write_goes_to_primary_inside_forced_replica_block",
			ctx: func() context.Context {
				return routing.WithForcedRole(context.Background(), routing.RoleReplica)
			},
			model:        "Account",
			op:           routing.OpWrite,
			expectedRole: routing.RolePrimary,
		},
		{
			name: "read_inside_transaction_goes_to_primary",
			ctx: func() context.Context {
				return routing.WithTransaction(context.Background())
			},
			model:        "Account",
			op:           routing.OpRead,
			expectedRole: routing.RolePrimary,
		},
		{
			name: "transaction_outranks_enclosing_forced_replica_block",
			ctx: func() context.Context {
				ctx := routing.WithForcedRole(context.Background(), routing.RoleReplica)
				return routing.WithTransaction(ctx)
			},
			model:        "Account",
			op:           routing.OpRead,
			expectedRole: routing.RolePrimary,
		},
		{
			name: "forced_replica_block_applies_to_plain_read",
			ctx: func() context.Context {
				return routing.WithForcedRole(context.Background(), routing.RoleReplica)
			},
			model:        "Invoice",
			op:           routing.OpRead,
			expectedRole: routing.RoleReplica,
		},
		{
			name: "forced_primary_block_applies_to_replica_default_model",
			ctx: func() context.Context {
				return routing.WithForcedRole(context.Background(), routing.RolePrimary)
			},
			model:        "Account",
			op:           routing.OpRead,
			expectedRole: routing.RolePrimary,
		},
		{
			name:         "per_call_force_replica_is_honored",
			ctx:          context.Background,
			model:        "Invoice",
			op:           routing.OpForceReplica,
			expectedRole: routing.RoleReplica,
		},
		{
			name: "per_call_force_replica_outranks_transaction",
			ctx: func() context.Context {
				return routing.WithTransaction(context.Background())
			},
			model:        "Invoice",
			op:           routing.OpForceReplica,
			expectedRole: routing.RoleReplica,
		},
		{
			name: "migration_outranks_forced_replica_block",
			ctx: func() context.Context {
				ctx := routing.WithForcedRole(context.Background(), routing.RoleReplica)
				return routing.WithMigration(ctx)
			},
			model:        "Account",
			op:           routing.OpRead,
			expectedRole: routing.RolePrimary,
		},
		{
			name: "migration_outranks_per_call_force_replica",
			ctx: func() context.Context {
				return routing.WithMigration(context.Background())
			},
			model:        "Account",
			op:           routing.OpForceReplica,
			expectedRole: routing.RolePrimary,
		},
		{
			name: "migration_inside_transaction_still_goes_to_primary",
			ctx: func() context.Context {
				ctx := routing.WithTransaction(context.Background())
				return routing.WithMigration(ctx)
			},
			model:        "Account",
			op:           routing.OpRead,
			expectedRole: routing.RolePrimary,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := buildTestRouter(t)

			handle, err := router.Decide(tc.ctx(), tc.model, tc.op)

			require.NoError(t, err)
			assert.Equal(t, tc.expectedRole, handle.Role())
		})
	}
}

func Test_Router_Decide_UnshardedModelUsesDefaultShard(t *testing.T) {
	router := buildTestRouter(t)

	handle, err := router.Decide(context.Background(), "Account", routing.OpRead)

	require.NoError(t, err)
	assert.Equal(t, routing.DefaultShard, handle.Shard())
	assert.Equal(t, routing.RoleReplica, handle.Role())
}

func Test_Router_DecideForRecord_ResolvesShardFromRecord(t *testing.T) {
	router := buildTestRouter(t)
	record := map[string]any{"region": "shard_3", "id": 42}

	handle, err := router.DecideForRecord(context.Background(), "Order", routing.OpWrite, record)

	require.NoError(t, err)
	assert.Equal(t, routing.ShardKey("shard_3"), handle.Shard())
	assert.Equal(t, routing.RolePrimary, handle.Role())
}

func Test_Router_DecideForRecord_UnknownShardKeySurfaces(t *testing.T) {
	router := buildTestRouter(t)
	record := map[string]any{"region": "shard_42"}

	_, err := router.DecideForRecord(context.Background(), "Order", routing.OpWrite, record)

	assert.ErrorIs(t, err, routing.ErrShardUnknown)
}

func Test_Router_DecideForRecord_MissingShardColumnSurfaces(t *testing.T) {
	router := buildTestRouter(t)
	record := map[string]any{"id": 42}

	_, err := router.DecideForRecord(context.Background(), "Order", routing.OpRead, record)

	assert.ErrorIs(t, err, routing.ErrShardKeyUnresolved)
}

func Test_Router_Decide_ShardedModelWithoutRecordOrSelectionFails(t *testing.T) {
	router := buildTestRouter(t)

	_, err := router.Decide(context.Background(), "Order", routing.OpRead)

	assert.ErrorIs(t, err, routing.ErrShardKeyUnresolved)
}

func Test_Router_Decide_UnknownModelSurfaces(t *testing.T) {
	router := buildTestRouter(t)

	_, err := router.Decide(context.Background(), "Ghost", routing.OpRead)

	assert.ErrorIs(t, err, routing.ErrModelUnknown)
}

func Test_Router_Decide_StaticShardPolicy(t *testing.T) {
	router := buildTestRouter(t)

	handle, err := router.Decide(context.Background(), "Report", routing.OpRead)

	require.NoError(t, err)
	assert.Equal(t, routing.ShardKey("shard_3"), handle.Shard())
	assert.Equal(t, routing.RoleReplica, handle.Role())
}

func Test_Router_Decide_ShardSelectionBeatsResolver(t *testing.T) {
	router := buildTestRouter(t)
	ctx := routing.WithShard(context.Background(), "shard_lonely")
	record := map[string]any{"region": "shard_3"}

	handle, err := router.DecideForRecord(ctx, "Order", routing.OpWrite, record)

	require.NoError(t, err)
	assert.Equal(t, routing.ShardKey("shard_lonely"), handle.Shard())
}

func Test_Router_Decide_ReplicaFallbackForShardWithoutReplica(t *testing.T) {
	router := buildTestRouter(t)
	ctx := routing.WithShard(context.Background(), "shard_lonely")

	handle, err := router.Decide(ctx, "Order", routing.OpForceReplica)

	require.NoError(t, err)
	assert.Equal(t, routing.RolePrimary, handle.Role())
	assert.Equal(t, routing.ShardKey("shard_lonely"), handle.Shard())
}

func Test_Router_Decide_SameHandleForRepeatedCallsInTransaction(t *testing.T) {
	router := buildTestRouter(t)
	ctx := routing.WithTransaction(context.Background())

	first, err := router.Decide(ctx, "Account", routing.OpRead)
	require.NoError(t, err)

	second, err := router.Decide(ctx, "Account", routing.OpWrite)
	require.NoError(t, err)

	third, err := router.Decide(ctx, "Account", routing.OpRead)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, first.ID(), third.ID())
	assert.Equal(t, routing.RolePrimary, first.Role())
}

func Test_Router_Decide_LogsAndCountsDecisions(t *testing.T) {
	loggerSpy := helper.NewLoggerSpy()
	metricsSpy := helper.NewMetricsCollectorSpy()

	router, err := routing.NewRouter(
		buildTestRegistry(t),
		routing.WithLogger(loggerSpy),
		routing.WithMetrics(metricsSpy),
	)
	require.NoError(t, err)

	_, err = router.Decide(context.Background(), "Account", routing.OpRead)
	require.NoError(t, err)

	entries := loggerSpy.EntriesWithMsg("routing decision made")
	require.Len(t, entries, 1)
	assert.Equal(t, "debug", entries[0].Level)

	counters := metricsSpy.CounterRecordsFor("routing_decisions_total")
	require.Len(t, counters, 1)
	assert.Equal(t, "read", counters[0].Labels["operation"])
	assert.Equal(t, "replica", counters[0].Labels["role"])
	assert.Equal(t, string(routing.DefaultShard), counters[0].Labels["shard"])
}

func Test_Router_Decide_CountsResolutionErrors(t *testing.T) {
	metricsSpy := helper.NewMetricsCollectorSpy()

	router, err := routing.NewRouter(
		buildTestRegistry(t),
		routing.WithMetrics(metricsSpy),
	)
	require.NoError(t, err)

	_, decideErr := router.Decide(context.Background(), "Order", routing.OpRead)
	require.Error(t, decideErr)

	counters := metricsSpy.CounterRecordsFor("routing_errors_total")
	require.Len(t, counters, 1)
	assert.Equal(t, "shard_resolution", counters[0].Labels["error_type"])
}

func Test_Router_Decide_NeverDefaultsOnResolutionFailure(t *testing.T) {
	router := buildTestRouter(t)

	handle, err := router.Decide(context.Background(), "Order", routing.OpWrite)

	require.Error(t, err)
	assert.True(t, handle.IsZero(), "a failed decision must not yield a usable handle")
	assert.False(t, errors.Is(err, routing.ErrShardUnknown))
}
