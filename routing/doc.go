// Package routing provides the core abstractions for shard-aware and
// replica-aware connection routing.
//
// This package defines the decision engine that host-framework integration
// code consults for every data-access operation: given the operation kind
// (read/write/forced), the routing state carried by the context, and the
// registered topology, it computes which physical connection handle should
// serve the operation.
//
// The routing state that can override normal placement is carried on
// context.Context, never on ambient global state:
//   - Transaction scope: every statement inside a transaction is routed to
//     the primary, reads included.
//   - Migration scope: schema operations are routed to the primary and are
//     never deflected by transactions or forced blocks.
//   - Forced blocks: all enclosed operations target a caller-chosen role.
//   - Shard selection: all enclosed operations for sharded models target a
//     caller-chosen shard.
//
// Key types:
//   - Registry: the static topology (shards, roles, handles) and per-model
//     routing policies
//   - Router: the single source of truth for "which connection serves this
//     operation"
//   - ModelPolicy: per-model configuration (sharded, replica-by-default,
//     shard key resolution)
//
// Common usage pattern:
//
//	reg := routing.NewRegistry()
//	_ = reg.RegisterShardWithReplica("shard_1", primaryDSN, replicaDSN)
//	_ = reg.RegisterModel("Account", routing.UnshardedPolicy().OnReplicaByDefault())
//
//	router, _ := routing.NewRouter(reg)
//	handle, err := router.Decide(ctx, "Account", routing.OpRead)
//	if err != nil {
//		// handle error
//	}
//	// acquire the physical connection for handle and run the statement
package routing
