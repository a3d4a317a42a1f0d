package routing

import (
	"errors"
)

// Configuration errors. These are fatal at startup: a topology or model
// policy that cannot be registered consistently must never be routed against.
var ErrShardAlreadyRegistered = errors.New("shard already registered with conflicting connection handles")
var ErrModelAlreadyRegistered = errors.New("model already registered with a conflicting routing policy")
var ErrEmptyShardKey = errors.New("empty shard key supplied")
var ErrEmptyModelName = errors.New("empty model name supplied")
var ErrEmptyConnectionDSN = errors.New("empty connection dsn supplied")
var ErrNilRegistry = errors.New("nil registry supplied")
var ErrUnknownRole = errors.New("unknown connection role")

// Resolution errors. These surface to the caller and abort the operation:
// silently picking a wrong connection is worse than failing the operation.
var ErrShardKeyUnresolved = errors.New("shard key could not be resolved for sharded model")
var ErrShardUnknown = errors.New("shard key is not present in the registered topology")
var ErrModelUnknown = errors.New("model has no registered routing policy")
var ErrReplicaNotRegistered = errors.New("shard has no replica registered")

var ErrBuildingSnapshotFailed = errors.New("failed to build registry snapshot")
var ErrParsingConfigFailed = errors.New("failed to parse topology configuration")
var ErrInvalidConfig = errors.New("invalid topology configuration")
var ErrResolvingRecordFailed = errors.New("failed to resolve shard key from record")
