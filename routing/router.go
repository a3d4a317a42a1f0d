package routing

import (
	"context"
)

const (
	logMsgDecisionMade         = "routing decision made"
	logMsgShardResolutionError = "shard resolution failed"
	logMsgConnectionLookupErr  = "connection lookup failed"
	logAttrModel               = "model"
	logAttrOperation           = "operation"
	logAttrRole                = "role"
	logAttrShard               = "shard"
	logAttrHandleID            = "handle_id"
	logAttrError               = "error"
	logAttrReason              = "reason"

	metricRoutingDecisions = "routing_decisions_total"
	metricRoutingErrors    = "routing_errors_total"

	labelOperation = "operation"
	labelRole      = "role"
	labelShard     = "shard"
	labelReason    = "reason"
	labelErrorType = "error_type"

	reasonMigration    = "migration"
	reasonForcedOp     = "forced_operation"
	reasonTransaction  = "transaction"
	reasonForcedScope  = "forced_scope"
	reasonWrite        = "write"
	reasonModelDefault = "model_default"

	errorTypeShardResolution  = "shard_resolution"
	errorTypeConnectionLookup = "connection_lookup"
)

// Router is the single source of truth for which connection serves a given
// data-access operation. A decision never blocks and never performs I/O; it
// only consults the context's routing state and the registry.
type Router struct {
	registry         *Registry
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// Option defines a functional option for configuring the Router.
type Option func(*Router) error

// WithLogger sets the logger for the Router.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: every routing decision with model, operation, role, shard and handle
// Error level: shard resolution and connection lookup failures.
func WithLogger(logger Logger) Option {
	return func(r *Router) error {
		r.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Router.
// The collector will receive decision counters labeled by operation, role and
// shard, and error counters labeled by error type.
func WithMetrics(collector MetricsCollector) Option {
	return func(r *Router) error {
		r.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Router.
// Routing decisions themselves are not spanned (they never block); the
// collector is handed on to execution layers built on top of the Router.
func WithTracing(collector TracingCollector) Option {
	return func(r *Router) error {
		r.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Router.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(r *Router) error {
		r.contextualLogger = logger
		return nil
	}
}

// NewRouter creates a new Router over the given registry with optional configuration.
func NewRouter(registry *Registry, options ...Option) (*Router, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	router := &Router{registry: registry}

	for _, option := range options {
		if err := option(router); err != nil {
			return nil, err
		}
	}

	return router, nil
}

// Registry returns the registry this router decides against.
func (r *Router) Registry() *Registry {
	return r.registry
}

// TracingCollector returns the configured tracing collector, nil if none.
func (r *Router) TracingCollector() TracingCollector {
	return r.tracingCollector
}

// Decide computes the connection handle that must serve the operation for a
// model without record context. Sharded models need an ambient shard
// selection or a static shard for this to resolve; use DecideForRecord when
// a record is at hand.
func (r *Router) Decide(ctx context.Context, model string, op OperationKind) (Handle, error) {
	return r.DecideForRecord(ctx, model, op, nil)
}

// DecideForRecord computes the connection handle that must serve the
// operation, deriving the shard key from the record where the model's
// policy requires it.
//
// The role is chosen by a fixed priority chain:
//
//  1. migration scope: always the primary, never deflected by transactions
//     or forced blocks
//  2. per-call force (OpForcePrimary / OpForceReplica)
//  3. transaction scope: always the primary, so every statement of the
//     transaction observes one connection's state
//  4. enclosing forced-role block
//  5. writes: the primary
//  6. reads: the replica if the model's policy says replica-by-default,
//     the primary otherwise
//
// Shard resolution failures surface to the caller and are never silently
// defaulted, since masking them risks writing to the wrong shard.
func (r *Router) DecideForRecord(ctx context.Context, model string, op OperationKind, record any) (Handle, error) {
	role, reason := decideRole(CurrentState(ctx), op, r.registry, model)

	shardKey, resolveErr := r.registry.ResolveShardKey(ctx, model, record)
	if resolveErr != nil {
		r.logDecisionError(ctx, logMsgShardResolutionError, resolveErr, model, op)
		r.countDecisionError(ctx, errorTypeShardResolution)

		return Handle{}, resolveErr
	}

	handle, lookupErr := r.registry.ConnectionFor(shardKey, role)
	if lookupErr != nil {
		r.logDecisionError(ctx, logMsgConnectionLookupErr, lookupErr, model, op)
		r.countDecisionError(ctx, errorTypeConnectionLookup)

		return Handle{}, lookupErr
	}

	r.logDecision(ctx, model, op, reason, handle)
	r.countDecision(ctx, op, reason, handle)

	return handle, nil
}

// decideRole applies the priority chain to pick primary or replica.
// The chain's order is behavior, not style: transactions must never split
// statements across primary and replica, and migrations must never be
// redirected by any other scope.
func decideRole(state State, op OperationKind, registry *Registry, model string) (Role, string) {
	if state.InMigration {
		return RolePrimary, reasonMigration
	}

	switch op {
	case OpForcePrimary:
		return RolePrimary, reasonForcedOp
	case OpForceReplica:
		return RoleReplica, reasonForcedOp
	case OpRead, OpWrite:
		// fall through to contextual rules
	}

	if state.InTransaction {
		return RolePrimary, reasonTransaction
	}

	if state.HasForcedRole {
		return state.ForcedRole, reasonForcedScope
	}

	if op == OpWrite {
		return RolePrimary, reasonWrite
	}

	if policy, err := registry.PolicyFor(model); err == nil && policy.ReplicaByDefault() {
		return RoleReplica, reasonModelDefault
	}

	return RolePrimary, reasonModelDefault
}
