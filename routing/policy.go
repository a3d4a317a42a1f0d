package routing

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ShardKeyResolver derives the shard key for one record of a sharded model.
// The record is whatever the host framework hands through at query time,
// typically a map of column values or a raw JSON document.
type ShardKeyResolver func(record any) (ShardKey, error)

// ModelPolicy is the per-model routing configuration: whether the model is
// sharded, whether its plain reads default to the replica, and how a shard
// key is derived for its records. Policies are set once at model bootstrap
// and are read-only afterwards.
type ModelPolicy struct {
	sharded          bool
	replicaByDefault bool
	staticShard      ShardKey
	resolver         ShardKeyResolver
}

// UnshardedPolicy creates a policy for a model that lives on the default
// shard and routes reads to the primary unless told otherwise.
func UnshardedPolicy() ModelPolicy {
	return ModelPolicy{}
}

// ShardedPolicy creates a policy for a model whose records are spread
// across shards. The shard key is derived per record via WithResolver, or
// pinned to one shard via WithStaticShard.
func ShardedPolicy() ModelPolicy {
	return ModelPolicy{sharded: true}
}

// OnReplicaByDefault returns a copy of the policy that routes plain reads
// to the replica when no transaction, migration or forced block applies.
func (p ModelPolicy) OnReplicaByDefault() ModelPolicy {
	p.replicaByDefault = true
	return p
}

// WithResolver returns a copy of the policy using fn to derive the shard
// key from a record. Only meaningful for sharded models.
func (p ModelPolicy) WithResolver(fn ShardKeyResolver) ModelPolicy {
	p.resolver = fn
	return p
}

// WithStaticShard returns a copy of the policy pinning the model to one
// shard. A resolver, if also set, takes precedence when a record is present.
func (p ModelPolicy) WithStaticShard(key ShardKey) ModelPolicy {
	p.staticShard = key
	return p
}

// Sharded reports whether the model's records are spread across shards.
func (p ModelPolicy) Sharded() bool {
	return p.sharded
}

// ReplicaByDefault reports whether plain reads default to the replica.
func (p ModelPolicy) ReplicaByDefault() bool {
	return p.replicaByDefault
}

// StaticShard returns the pinned shard key, empty if none was set.
func (p ModelPolicy) StaticShard() ShardKey {
	return p.staticShard
}

// HasResolver reports whether a per-record shard key resolver is set.
func (p ModelPolicy) HasResolver() bool {
	return p.resolver != nil
}

// equivalent reports whether two policies describe the same routing
// behavior for registration idempotency checks. Resolver functions are not
// comparable; two policies are only considered equivalent when neither
// carries one.
func (p ModelPolicy) equivalent(other ModelPolicy) bool {
	return p.sharded == other.sharded &&
		p.replicaByDefault == other.replicaByDefault &&
		p.staticShard == other.staticShard &&
		p.resolver == nil && other.resolver == nil
}

// ShardKeyFromField creates a resolver that reads the shard key from a
// column of a map-shaped record. A missing or empty column yields
// ErrShardKeyUnresolved.
func ShardKeyFromField(column string) ShardKeyResolver {
	return func(record any) (ShardKey, error) {
		values, ok := record.(map[string]any)
		if !ok {
			return "", errors.Join(
				ErrShardKeyUnresolved,
				fmt.Errorf("record is %T, expected map[string]any", record),
			)
		}

		return shardKeyFromValue(column, values[column])
	}
}

// ShardKeyFromJSON creates a resolver that reads the shard key from a
// column of a raw JSON record ([]byte or string). A missing or empty
// column yields ErrShardKeyUnresolved.
func ShardKeyFromJSON(column string) ShardKeyResolver {
	return func(record any) (ShardKey, error) {
		var raw []byte

		switch doc := record.(type) {
		case []byte:
			raw = doc
		case string:
			raw = []byte(doc)
		default:
			return "", errors.Join(
				ErrShardKeyUnresolved,
				fmt.Errorf("record is %T, expected []byte or string", record),
			)
		}

		values := make(map[string]any)
		if unmarshalErr := jsoniter.Unmarshal(raw, &values); unmarshalErr != nil {
			return "", errors.Join(ErrResolvingRecordFailed, unmarshalErr)
		}

		return shardKeyFromValue(column, values[column])
	}
}

func shardKeyFromValue(column string, value any) (ShardKey, error) {
	switch key := value.(type) {
	case ShardKey:
		if key == "" {
			break
		}
		return key, nil
	case string:
		if key == "" {
			break
		}
		return ShardKey(key), nil
	case fmt.Stringer:
		if key.String() == "" {
			break
		}
		return ShardKey(key.String()), nil
	}

	return "", errors.Join(
		ErrShardKeyUnresolved,
		fmt.Errorf("record has no usable value for sharding column %q", column),
	)
}
