package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// Registry holds the static connection topology and the per-model routing
// policies. It is built during a single-goroutine initialization phase and
// is read-mostly afterwards; the mutex only matters for late registration
// from tests and tooling.
type Registry struct {
	mu           sync.RWMutex
	shards       map[ShardKey]shardEntry
	models       map[string]ModelPolicy
	defaultShard ShardKey
}

type shardEntry struct {
	primary Handle
	replica Handle
}

// NewRegistry creates an empty registry whose unsharded models resolve to
// the DefaultShard key.
func NewRegistry() *Registry {
	return &Registry{
		shards:       make(map[ShardKey]shardEntry),
		models:       make(map[string]ModelPolicy),
		defaultShard: DefaultShard,
	}
}

// SetDefaultShard changes the shard key that serves unsharded models.
func (r *Registry) SetDefaultShard(key ShardKey) error {
	if key == "" {
		return ErrEmptyShardKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultShard = key

	return nil
}

// DefaultShardKey returns the shard key that serves unsharded models.
func (r *Registry) DefaultShardKey() ShardKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.defaultShard
}

// RegisterShard registers a shard that has a primary but no replica.
// Replica-routed reads for such a shard are served from its primary.
func (r *Registry) RegisterShard(key ShardKey, primaryDSN string) error {
	return r.registerShard(key, primaryDSN, "")
}

// RegisterShardWithReplica registers a shard with a primary and a replica.
//
// Registration is idempotent for identical DSNs; re-registering the same
// key with different DSNs fails with ErrShardAlreadyRegistered because a
// conflicting topology must surface at startup, not at decision time.
func (r *Registry) RegisterShardWithReplica(key ShardKey, primaryDSN string, replicaDSN string) error {
	if replicaDSN == "" {
		return ErrEmptyConnectionDSN
	}

	return r.registerShard(key, primaryDSN, replicaDSN)
}

func (r *Registry) registerShard(key ShardKey, primaryDSN string, replicaDSN string) error {
	if key == "" {
		return ErrEmptyShardKey
	}

	if primaryDSN == "" {
		return ErrEmptyConnectionDSN
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.shards[key]; ok {
		if existing.primary.DSN() == primaryDSN && existing.replica.DSN() == replicaDSN {
			return nil // idempotent re-registration
		}

		return errors.Join(ErrShardAlreadyRegistered, fmt.Errorf("shard %q", key))
	}

	entry := shardEntry{primary: newHandle(key, RolePrimary, primaryDSN)}
	if replicaDSN != "" {
		entry.replica = newHandle(key, RoleReplica, replicaDSN)
	}

	r.shards[key] = entry

	return nil
}

// RegisterModel associates a model with its routing policy. Registering the
// same model twice with an equivalent policy is a no-op; a conflicting
// policy fails with ErrModelAlreadyRegistered.
func (r *Registry) RegisterModel(model string, policy ModelPolicy) error {
	if model == "" {
		return ErrEmptyModelName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.models[model]; ok {
		if existing.equivalent(policy) {
			return nil
		}

		return errors.Join(ErrModelAlreadyRegistered, fmt.Errorf("model %q", model))
	}

	r.models[model] = policy

	return nil
}

// PolicyFor returns the routing policy registered for the model.
func (r *Registry) PolicyFor(model string) (ModelPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, ok := r.models[model]
	if !ok {
		return ModelPolicy{}, errors.Join(ErrModelUnknown, fmt.Errorf("model %q", model))
	}

	return policy, nil
}

// ResolveShardKey determines the shard serving the model for this operation.
//
// Precedence: an ambient shard selection on the context wins, then the
// model's resolver applied to the record, then the model's static shard.
// A sharded model with no derivable key fails with ErrShardKeyUnresolved;
// an unsharded model always resolves to the default shard.
func (r *Registry) ResolveShardKey(ctx context.Context, model string, record any) (ShardKey, error) {
	policy, policyErr := r.PolicyFor(model)
	if policyErr != nil {
		return "", policyErr
	}

	if !policy.sharded {
		return r.DefaultShardKey(), nil
	}

	if selected, ok := CurrentShard(ctx); ok {
		return selected, nil
	}

	if policy.resolver != nil && record != nil {
		return policy.resolver(record)
	}

	if policy.staticShard != "" {
		return policy.staticShard, nil
	}

	return "", errors.Join(ErrShardKeyUnresolved, fmt.Errorf("model %q", model))
}

// ConnectionFor returns the handle serving the given shard and role.
//
// A shard registered without a replica serves replica-routed operations
// from its primary; the fallback applies only when the replica is absent
// from the topology, an existing replica is always honored.
func (r *Registry) ConnectionFor(key ShardKey, role Role) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.shards[key]
	if !ok {
		return Handle{}, errors.Join(ErrShardUnknown, fmt.Errorf("shard %q", key))
	}

	switch role {
	case RolePrimary:
		return entry.primary, nil
	case RoleReplica:
		if entry.replica.IsZero() {
			return entry.primary, nil
		}
		return entry.replica, nil
	default:
		return Handle{}, errors.Join(ErrUnknownRole, fmt.Errorf("role %d", role))
	}
}

// HandleFor returns the handle registered for the given shard and role
// without any replica fallback. Tooling that wires physical connections to
// handles needs the strict mapping, not the routing-time convenience.
func (r *Registry) HandleFor(key ShardKey, role Role) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.shards[key]
	if !ok {
		return Handle{}, errors.Join(ErrShardUnknown, fmt.Errorf("shard %q", key))
	}

	switch role {
	case RolePrimary:
		return entry.primary, nil
	case RoleReplica:
		if entry.replica.IsZero() {
			return Handle{}, errors.Join(ErrReplicaNotRegistered, fmt.Errorf("shard %q", key))
		}
		return entry.replica, nil
	default:
		return Handle{}, errors.Join(ErrUnknownRole, fmt.Errorf("role %d", role))
	}
}

// ShardKeys returns all registered shard keys in lexical order.
func (r *Registry) ShardKeys() []ShardKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]ShardKey, 0, len(r.shards))
	for key := range r.shards {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// Models returns all registered model names in lexical order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

type snapshotShard struct {
	Key             string `json:"key"`
	PrimaryHandleID string `json:"primary_handle_id"`
	ReplicaHandleID string `json:"replica_handle_id,omitempty"`
}

type snapshotModel struct {
	Name             string `json:"name"`
	Sharded          bool   `json:"sharded"`
	ReplicaByDefault bool   `json:"replica_by_default"`
	StaticShard      string `json:"static_shard,omitempty"`
	HasResolver      bool   `json:"has_resolver"`
}

type snapshotDocument struct {
	DefaultShard string          `json:"default_shard"`
	Shards       []snapshotShard `json:"shards"`
	Models       []snapshotModel `json:"models"`
}

// Snapshot renders the registered topology and model policies as a JSON
// document for inspection and debug logging. DSNs are omitted since they
// may carry credentials; handles are identified by their IDs.
func (r *Registry) Snapshot() ([]byte, error) {
	doc := snapshotDocument{
		DefaultShard: string(r.DefaultShardKey()),
		Shards:       make([]snapshotShard, 0, len(r.shards)),
		Models:       make([]snapshotModel, 0, len(r.models)),
	}

	for _, key := range r.ShardKeys() {
		r.mu.RLock()
		entry := r.shards[key]
		r.mu.RUnlock()

		shard := snapshotShard{
			Key:             string(key),
			PrimaryHandleID: entry.primary.ID(),
		}
		if !entry.replica.IsZero() {
			shard.ReplicaHandleID = entry.replica.ID()
		}

		doc.Shards = append(doc.Shards, shard)
	}

	for _, name := range r.Models() {
		r.mu.RLock()
		policy := r.models[name]
		r.mu.RUnlock()

		doc.Models = append(doc.Models, snapshotModel{
			Name:             name,
			Sharded:          policy.sharded,
			ReplicaByDefault: policy.replicaByDefault,
			StaticShard:      string(policy.staticShard),
			HasResolver:      policy.resolver != nil,
		})
	}

	rendered, marshalErr := jsoniter.MarshalIndent(doc, "", "  ")
	if marshalErr != nil {
		return nil, errors.Join(ErrBuildingSnapshotFailed, marshalErr)
	}

	return rendered, nil
}
