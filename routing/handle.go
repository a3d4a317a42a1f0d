package routing

import (
	"fmt"

	"github.com/google/uuid"
)

// Handle is an opaque identifier for one physical database connection of the
// topology. It is created by the Registry during shard registration and is
// immutable afterwards; the generated ID lets logs, metrics labels and tests
// assert physical-connection identity.
type Handle struct {
	id    string
	shard ShardKey
	role  Role
	dsn   string
}

func newHandle(shard ShardKey, role Role, dsn string) Handle {
	return Handle{
		id:    uuid.NewString(),
		shard: shard,
		role:  role,
		dsn:   dsn,
	}
}

// ID returns the unique identifier of this handle.
func (h Handle) ID() string {
	return h.id
}

// Shard returns the shard this handle belongs to.
func (h Handle) Shard() ShardKey {
	return h.shard
}

// Role returns whether this handle points at the shard's primary or replica.
func (h Handle) Role() Role {
	return h.role
}

// DSN returns the connection string this handle was registered with.
func (h Handle) DSN() string {
	return h.dsn
}

// IsZero reports whether the handle is the zero value, i.e. was never
// registered.
func (h Handle) IsZero() bool {
	return h.id == ""
}

// String provides a string representation of Handle for logging and debugging.
// The DSN is deliberately omitted since it may carry credentials.
func (h Handle) String() string {
	return fmt.Sprintf("%s/%s (%s)", h.shard, h.role, h.id)
}
