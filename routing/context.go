package routing

import "context"

// ShardKey identifies a logical shard within the registered topology.
type ShardKey string

// DefaultShard is the shard key that serves unsharded models unless the
// registry was configured with a different default.
const DefaultShard ShardKey = "default"

// contextKey is a private type to prevent context key collisions.
type contextKey string

// TransactionKey is the context key used to mark a transaction scope.
const TransactionKey contextKey = "routing.in_transaction"

// MigrationKey is the context key used to mark a migration scope.
const MigrationKey contextKey = "routing.in_migration"

// ForcedRoleKey is the context key used to store a forced primary/replica role.
const ForcedRoleKey contextKey = "routing.forced_role"

// ShardSelectionKey is the context key used to store an ambient shard selection.
const ShardSelectionKey contextKey = "routing.shard_selection"

// State is a read-only snapshot of the routing state carried by a context.
// It is consumed by the Router when computing a decision.
type State struct {
	InTransaction bool
	InMigration   bool
	ForcedRole    Role
	HasForcedRole bool
	Shard         ShardKey
	HasShard      bool
}

// WithTransaction returns a context that marks every enclosed operation as
// running inside a transaction: reads included, everything is routed to the
// primary so all statements observe one connection's state.
//
// Nesting is a no-op for the flag's truth value. Scope restore is inherent
// to context immutability: the caller keeps using the outer context after
// the inner scope ends, so the flag can never be left stuck on, including
// on error or panic paths.
func WithTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, TransactionKey, true)
}

// WithMigration returns a context that marks every enclosed operation as a
// schema operation. Migration mode takes absolute priority over every other
// mode, active transactions and forced-replica blocks included, because
// schema operations must always see the real schema on the primary, never a
// potentially lagging replica.
func WithMigration(ctx context.Context) context.Context {
	return context.WithValue(ctx, MigrationKey, true)
}

// WithForcedRole returns a context that directs every enclosed operation to
// the given role. An active transaction or migration scope still outranks
// the forced role; an inner WithForcedRole shadows an outer one.
func WithForcedRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ForcedRoleKey, role)
}

// WithShard returns a context that selects the given shard for every
// enclosed operation on a sharded model, taking precedence over the model's
// own shard key resolution.
func WithShard(ctx context.Context, key ShardKey) context.Context {
	return context.WithValue(ctx, ShardSelectionKey, key)
}

// CurrentState extracts the routing state snapshot from the context.
// A context without any routing scopes yields the zero State, which routes
// by operation kind and model policy alone.
func CurrentState(ctx context.Context) State {
	state := State{}

	if inTx, ok := ctx.Value(TransactionKey).(bool); ok {
		state.InTransaction = inTx
	}

	if inMigration, ok := ctx.Value(MigrationKey).(bool); ok {
		state.InMigration = inMigration
	}

	if role, ok := ctx.Value(ForcedRoleKey).(Role); ok {
		state.ForcedRole = role
		state.HasForcedRole = true
	}

	if shard, ok := ctx.Value(ShardSelectionKey).(ShardKey); ok {
		state.Shard = shard
		state.HasShard = true
	}

	return state
}

// CurrentShard extracts the ambient shard selection from the context.
func CurrentShard(ctx context.Context) (ShardKey, bool) {
	shard, ok := ctx.Value(ShardSelectionKey).(ShardKey)
	return shard, ok
}

// InTransaction runs fn with a transaction-scoped context. The scope ends
// when fn returns, on success and failure alike.
//
// Example usage:
//
//	err := routing.InTransaction(ctx, func(ctx context.Context) error {
//		// every decision made with this ctx targets the primary
//		return doWork(ctx)
//	})
func InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithTransaction(ctx))
}

// InMigration runs fn with a migration-scoped context.
func InMigration(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithMigration(ctx))
}

// OnPrimary runs fn with every enclosed operation forced to the primary.
func OnPrimary(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithForcedRole(ctx, RolePrimary))
}

// OnReplica runs fn with every enclosed operation forced to the replica.
func OnReplica(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithForcedRole(ctx, RoleReplica))
}

// OnShard runs fn with the given shard selected for every enclosed operation.
func OnShard(ctx context.Context, key ShardKey, fn func(ctx context.Context) error) error {
	return fn(WithShard(ctx, key))
}
