package routing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestie/active-record-shards/routing"
)

func Test_CurrentState_EmptyContext(t *testing.T) {
	state := routing.CurrentState(context.Background())

	assert.False(t, state.InTransaction)
	assert.False(t, state.InMigration)
	assert.False(t, state.HasForcedRole)
	assert.False(t, state.HasShard)
}

func Test_WithTransaction_SetsFlag(t *testing.T) {
	ctx := routing.WithTransaction(context.Background())

	assert.True(t, routing.CurrentState(ctx).InTransaction)
}

func Test_WithMigration_SetsFlag(t *testing.T) {
	ctx := routing.WithMigration(context.Background())

	assert.True(t, routing.CurrentState(ctx).InMigration)
}

func Test_WithForcedRole_SetsRole(t *testing.T) {
	ctx := routing.WithForcedRole(context.Background(), routing.RoleReplica)

	state := routing.CurrentState(ctx)
	assert.True(t, state.HasForcedRole)
	assert.Equal(t, routing.RoleReplica, state.ForcedRole)
}

func Test_WithForcedRole_InnerScopeShadowsOuter(t *testing.T) {
	outer := routing.WithForcedRole(context.Background(), routing.RoleReplica)
	inner := routing.WithForcedRole(outer, routing.RolePrimary)

	assert.Equal(t, routing.RolePrimary, routing.CurrentState(inner).ForcedRole)
	assert.Equal(t, routing.RoleReplica, routing.CurrentState(outer).ForcedRole)
}

func Test_WithShard_SelectsShard(t *testing.T) {
	ctx := routing.WithShard(context.Background(), "shard_7")

	shard, ok := routing.CurrentShard(ctx)
	require.True(t, ok)
	assert.Equal(t, routing.ShardKey("shard_7"), shard)
}

func Test_InTransaction_NestedScopesRestoreExactly(t *testing.T) {
	base := context.Background()

	err := routing.InTransaction(base, func(outer context.Context) error {
		assert.True(t, routing.CurrentState(outer).InTransaction)

		innerErr := routing.InTransaction(outer, func(inner context.Context) error {
			assert.True(t, routing.CurrentState(inner).InTransaction)
			return nil
		})
		require.NoError(t, innerErr)

		// after the inner scope the outer scope is still a transaction
		assert.True(t, routing.CurrentState(outer).InTransaction)

		return nil
	})
	require.NoError(t, err)

	// only after the outer scope exits is the base free of the flag
	assert.False(t, routing.CurrentState(base).InTransaction)
}

func Test_InTransaction_ScopeEndsOnError(t *testing.T) {
	base := context.Background()
	scopeFailure := errors.New("scope failure")

	err := routing.InTransaction(base, func(ctx context.Context) error {
		assert.True(t, routing.CurrentState(ctx).InTransaction)
		return scopeFailure
	})

	assert.ErrorIs(t, err, scopeFailure)
	assert.False(t, routing.CurrentState(base).InTransaction)
}

func Test_InTransaction_ScopeEndsOnPanic(t *testing.T) {
	base := context.Background()

	assert.Panics(t, func() {
		_ = routing.InTransaction(base, func(ctx context.Context) error {
			panic("boom")
		})
	})

	assert.False(t, routing.CurrentState(base).InTransaction)
}

func Test_InMigration_ScopesFlag(t *testing.T) {
	base := context.Background()

	err := routing.InMigration(base, func(ctx context.Context) error {
		assert.True(t, routing.CurrentState(ctx).InMigration)
		return nil
	})

	require.NoError(t, err)
	assert.False(t, routing.CurrentState(base).InMigration)
}

func Test_OnPrimary_OnReplica_ScopeForcedRole(t *testing.T) {
	base := context.Background()

	err := routing.OnReplica(base, func(replicaCtx context.Context) error {
		state := routing.CurrentState(replicaCtx)
		assert.True(t, state.HasForcedRole)
		assert.Equal(t, routing.RoleReplica, state.ForcedRole)

		return routing.OnPrimary(replicaCtx, func(primaryCtx context.Context) error {
			assert.Equal(t, routing.RolePrimary, routing.CurrentState(primaryCtx).ForcedRole)
			return nil
		})
	})

	require.NoError(t, err)
	assert.False(t, routing.CurrentState(base).HasForcedRole)
}

func Test_OnShard_ScopesShardSelection(t *testing.T) {
	base := context.Background()

	err := routing.OnShard(base, "shard_2", func(ctx context.Context) error {
		shard, ok := routing.CurrentShard(ctx)
		require.True(t, ok)
		assert.Equal(t, routing.ShardKey("shard_2"), shard)
		return nil
	})

	require.NoError(t, err)

	_, ok := routing.CurrentShard(base)
	assert.False(t, ok)
}

func Test_Role_String(t *testing.T) {
	assert.Equal(t, "primary", routing.RolePrimary.String())
	assert.Equal(t, "replica", routing.RoleReplica.String())
	assert.Equal(t, "unknown", routing.Role(99).String())
}

func Test_OperationKind_String(t *testing.T) {
	assert.Equal(t, "read", routing.OpRead.String())
	assert.Equal(t, "write", routing.OpWrite.String())
	assert.Equal(t, "force_replica", routing.OpForceReplica.String())
	assert.Equal(t, "force_primary", routing.OpForcePrimary.String())
	assert.Equal(t, "unknown", routing.OperationKind(99).String())
}
