package routing_test

import (
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestie/active-record-shards/routing"
)

func Test_Registry_RegisterShard_Validation(t *testing.T) {
	tests := []struct {
		name        string
		register    func(r *routing.Registry) error
		expectedErr error
	}{
		{
			name: "empty_shard_key_rejected",
			register: func(r *routing.Registry) error {
				return r.RegisterShard("", "postgres://app@db:5432/appdata")
			},
			expectedErr: routing.ErrEmptyShardKey,
		},
		{
			name: "empty_primary_dsn_rejected",
			register: func(r *routing.Registry) error {
				return r.RegisterShard("shard_1", "")
			},
			expectedErr: routing.ErrEmptyConnectionDSN,
		},
		{
			name: "empty_replica_dsn_rejected",
			register: func(r *routing.Registry) error {
				return r.RegisterShardWithReplica("shard_1", "postgres://app@db:5432/appdata", "")
			},
			expectedErr: routing.ErrEmptyConnectionDSN,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.register(routing.NewRegistry())
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_Registry_RegisterShard_IdenticalReRegistrationIsNoOp(t *testing.T) {
	registry := routing.NewRegistry()

	require.NoError(t, registry.RegisterShardWithReplica("shard_1", "postgres://a", "postgres://b"))
	require.NoError(t, registry.RegisterShardWithReplica("shard_1", "postgres://a", "postgres://b"))

	handle, err := registry.ConnectionFor("shard_1", routing.RolePrimary)
	require.NoError(t, err)
	assert.Equal(t, "postgres://a", handle.DSN())
}

func Test_Registry_RegisterShard_ConflictingReRegistrationFails(t *testing.T) {
	registry := routing.NewRegistry()

	require.NoError(t, registry.RegisterShardWithReplica("shard_1", "postgres://a", "postgres://b"))

	err := registry.RegisterShardWithReplica("shard_1", "postgres://other", "postgres://b")
	assert.ErrorIs(t, err, routing.ErrShardAlreadyRegistered)
}

func Test_Registry_RegisterModel_ConflictingPolicyFails(t *testing.T) {
	registry := routing.NewRegistry()

	require.NoError(t, registry.RegisterModel("Account", routing.UnshardedPolicy()))

	// identical policy is idempotent
	require.NoError(t, registry.RegisterModel("Account", routing.UnshardedPolicy()))

	err := registry.RegisterModel("Account", routing.UnshardedPolicy().OnReplicaByDefault())
	assert.ErrorIs(t, err, routing.ErrModelAlreadyRegistered)
}

func Test_Registry_ConnectionFor_UnknownShardFails(t *testing.T) {
	registry := routing.NewRegistry()

	_, err := registry.ConnectionFor("shard_404", routing.RolePrimary)
	assert.ErrorIs(t, err, routing.ErrShardUnknown)
}

func Test_Registry_ConnectionFor_ReplicaFallsBackToPrimary(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterShard("shard_1", "postgres://a"))

	primary, err := registry.ConnectionFor("shard_1", routing.RolePrimary)
	require.NoError(t, err)

	replica, err := registry.ConnectionFor("shard_1", routing.RoleReplica)
	require.NoError(t, err)

	assert.Equal(t, primary.ID(), replica.ID())
	assert.Equal(t, routing.RolePrimary, replica.Role())
}

func Test_Registry_ConnectionFor_ExistingReplicaIsHonored(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterShardWithReplica("shard_1", "postgres://a", "postgres://b"))

	replica, err := registry.ConnectionFor("shard_1", routing.RoleReplica)
	require.NoError(t, err)

	assert.Equal(t, routing.RoleReplica, replica.Role())
	assert.Equal(t, "postgres://b", replica.DSN())
}

func Test_Registry_HandleFor_NoReplicaFallback(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterShard("shard_1", "postgres://a"))

	_, err := registry.HandleFor("shard_1", routing.RoleReplica)
	assert.ErrorIs(t, err, routing.ErrReplicaNotRegistered)
}

func Test_Registry_ResolveShardKey_Precedence(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterModel("Order",
		routing.ShardedPolicy().
			WithResolver(routing.ShardKeyFromField("region")).
			WithStaticShard("shard_static")))

	t.Run("context_selection_beats_resolver", func(t *testing.T) {
		ctx := routing.WithShard(context.Background(), "shard_ctx")
		record := map[string]any{"region": "shard_rec"}

		key, err := registry.ResolveShardKey(ctx, "Order", record)
		require.NoError(t, err)
		assert.Equal(t, routing.ShardKey("shard_ctx"), key)
	})

	t.Run("resolver_beats_static_shard", func(t *testing.T) {
		record := map[string]any{"region": "shard_rec"}

		key, err := registry.ResolveShardKey(context.Background(), "Order", record)
		require.NoError(t, err)
		assert.Equal(t, routing.ShardKey("shard_rec"), key)
	})

	t.Run("static_shard_applies_without_record", func(t *testing.T) {
		key, err := registry.ResolveShardKey(context.Background(), "Order", nil)
		require.NoError(t, err)
		assert.Equal(t, routing.ShardKey("shard_static"), key)
	})
}

func Test_Registry_ResolveShardKey_UnshardedIgnoresContextSelection(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterModel("Account", routing.UnshardedPolicy()))

	ctx := routing.WithShard(context.Background(), "shard_ctx")

	key, err := registry.ResolveShardKey(ctx, "Account", nil)
	require.NoError(t, err)
	assert.Equal(t, routing.DefaultShard, key)
}

func Test_Registry_ResolveShardKey_UnknownModelFails(t *testing.T) {
	registry := routing.NewRegistry()

	_, err := registry.ResolveShardKey(context.Background(), "Ghost", nil)
	assert.ErrorIs(t, err, routing.ErrModelUnknown)
}

func Test_Registry_SetDefaultShard(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.SetDefaultShard("main"))
	require.NoError(t, registry.RegisterModel("Account", routing.UnshardedPolicy()))

	key, err := registry.ResolveShardKey(context.Background(), "Account", nil)
	require.NoError(t, err)
	assert.Equal(t, routing.ShardKey("main"), key)

	assert.ErrorIs(t, registry.SetDefaultShard(""), routing.ErrEmptyShardKey)
}

func Test_Registry_ShardKeys_SortedAndComplete(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterShard("shard_b", "postgres://b"))
	require.NoError(t, registry.RegisterShard("shard_a", "postgres://a"))
	require.NoError(t, registry.RegisterShard("shard_c", "postgres://c"))

	assert.Equal(t,
		[]routing.ShardKey{"shard_a", "shard_b", "shard_c"},
		registry.ShardKeys())
}

func Test_Registry_Snapshot_RendersTopologyAndPolicies(t *testing.T) {
	registry := routing.NewRegistry()
	require.NoError(t, registry.RegisterShardWithReplica("shard_1", "postgres://user:secret@a", "postgres://user:secret@b"))
	require.NoError(t, registry.RegisterModel("Account", routing.UnshardedPolicy().OnReplicaByDefault()))

	snapshot, err := registry.Snapshot()
	require.NoError(t, err)

	doc := struct {
		DefaultShard string `json:"default_shard"`
		Shards       []struct {
			Key             string `json:"key"`
			PrimaryHandleID string `json:"primary_handle_id"`
			ReplicaHandleID string `json:"replica_handle_id"`
		} `json:"shards"`
		Models []struct {
			Name             string `json:"name"`
			ReplicaByDefault bool   `json:"replica_by_default"`
		} `json:"models"`
	}{}
	require.NoError(t, jsoniter.Unmarshal(snapshot, &doc))

	assert.Equal(t, string(routing.DefaultShard), doc.DefaultShard)
	require.Len(t, doc.Shards, 1)
	assert.Equal(t, "shard_1", doc.Shards[0].Key)
	assert.NotEmpty(t, doc.Shards[0].PrimaryHandleID)
	assert.NotEmpty(t, doc.Shards[0].ReplicaHandleID)
	require.Len(t, doc.Models, 1)
	assert.True(t, doc.Models[0].ReplicaByDefault)

	// credentials must never leak into the snapshot
	assert.NotContains(t, string(snapshot), "secret")
}
