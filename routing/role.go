package routing

// Role identifies which side of a shard's primary/replica pair a connection
// handle belongs to.
type Role int

const (
	// RolePrimary is the writable, authoritative connection of a shard.
	RolePrimary Role = iota

	// RoleReplica is a read-only, potentially lagging copy of a shard's data.
	RoleReplica
)

// String provides a string representation of Role for logging and debugging.
func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleReplica:
		return "replica"
	default:
		return "unknown"
	}
}

// OperationKind classifies a data-access operation for routing purposes.
// The caller (the host-framework integration layer) classifies every
// operation before asking the Router for a decision; the Router never
// inspects SQL itself.
type OperationKind int

const (
	// OpRead is a plain read; it follows the model's replica-default policy
	// unless a contextual override applies.
	OpRead OperationKind = iota

	// OpWrite always targets the primary of the resolved shard.
	OpWrite

	// OpForceReplica is a per-call override targeting the replica.
	// Only migration mode outranks it.
	OpForceReplica

	// OpForcePrimary is a per-call override targeting the primary.
	// Only migration mode outranks it.
	OpForcePrimary
)

// String provides a string representation of OperationKind for logging and debugging.
func (o OperationKind) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpForceReplica:
		return "force_replica"
	case OpForcePrimary:
		return "force_primary"
	default:
		return "unknown"
	}
}
