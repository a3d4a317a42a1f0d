package routing

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeConfig describes one physical database node of a shard. Either a full
// DSN or the individual host/port/credential fields can be given; a DSN
// wins when both are present.
type NodeConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// ShardConfig describes one shard of the topology: a mandatory primary and
// an optional replica.
type ShardConfig struct {
	Primary NodeConfig  `yaml:"primary"`
	Replica *NodeConfig `yaml:"replica"`
}

// ModelConfig describes the routing policy of one model.
type ModelConfig struct {
	Sharded          bool   `yaml:"sharded"`
	ReplicaByDefault bool   `yaml:"replica_by_default"`
	Shard            string `yaml:"shard"`     // static shard for sharded models
	ShardKeyColumn   string `yaml:"shard_key"` // record column holding the shard key
}

// Config is the YAML topology document: shards, their nodes, and per-model
// routing policies.
//
// Example:
//
//	default_shard: shard_0
//	shards:
//	  shard_0:
//	    primary: { host: db0, port: 5432, database: app, username: app, password: secret }
//	    replica: { host: db0-ro, port: 5432, database: app, username: app, password: secret }
//	models:
//	  Account:
//	    sharded: true
//	    shard_key: region
//	  AuditLog:
//	    replica_by_default: true
type Config struct {
	DefaultShard string                 `yaml:"default_shard"`
	Shards       map[string]ShardConfig `yaml:"shards"`
	Models       map[string]ModelConfig `yaml:"models"`
}

// ParseConfig parses a YAML topology document.
func ParseConfig(raw []byte) (Config, error) {
	cfg := Config{}

	if unmarshalErr := yaml.Unmarshal(raw, &cfg); unmarshalErr != nil {
		return Config{}, errors.Join(ErrParsingConfigFailed, unmarshalErr)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return Config{}, validateErr
	}

	return cfg, nil
}

// LoadConfigFile reads and parses a YAML topology document from a file.
func LoadConfigFile(path string) (Config, error) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return Config{}, errors.Join(ErrParsingConfigFailed, readErr)
	}

	return ParseConfig(raw)
}

// Validate checks the configuration for inconsistencies that must surface
// at startup: missing primaries, static shards pointing at unregistered
// shard keys, a default shard that is not part of the topology.
func (c Config) Validate() error {
	if len(c.Shards) == 0 {
		return errors.Join(ErrInvalidConfig, errors.New("no shards configured"))
	}

	for name, shard := range c.Shards {
		if shard.Primary.dsn() == "" {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("shard %q has no primary", name))
		}

		if shard.Replica != nil && shard.Replica.dsn() == "" {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("shard %q has an empty replica", name))
		}
	}

	if c.DefaultShard != "" {
		if _, ok := c.Shards[c.DefaultShard]; !ok {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("default shard %q is not configured", c.DefaultShard))
		}
	}

	for name, model := range c.Models {
		if model.Shard != "" {
			if !model.Sharded {
				return errors.Join(ErrInvalidConfig, fmt.Errorf("model %q has a static shard but is not sharded", name))
			}
			if _, ok := c.Shards[model.Shard]; !ok {
				return errors.Join(ErrInvalidConfig, fmt.Errorf("model %q points at unconfigured shard %q", name, model.Shard))
			}
		}

		if model.ShardKeyColumn != "" && !model.Sharded {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("model %q has a shard key column but is not sharded", name))
		}
	}

	return nil
}

// BuildRegistry registers the configured topology and model policies into a
// fresh Registry. Models with a shard key column get a ShardKeyFromField
// resolver for that column.
func (c Config) BuildRegistry() (*Registry, error) {
	registry := NewRegistry()

	if c.DefaultShard != "" {
		if err := registry.SetDefaultShard(ShardKey(c.DefaultShard)); err != nil {
			return nil, err
		}
	}

	for name, shard := range c.Shards {
		var registerErr error

		if shard.Replica != nil {
			registerErr = registry.RegisterShardWithReplica(ShardKey(name), shard.Primary.dsn(), shard.Replica.dsn())
		} else {
			registerErr = registry.RegisterShard(ShardKey(name), shard.Primary.dsn())
		}

		if registerErr != nil {
			return nil, registerErr
		}
	}

	for name, model := range c.Models {
		policy := UnshardedPolicy()
		if model.Sharded {
			policy = ShardedPolicy()
		}

		if model.ReplicaByDefault {
			policy = policy.OnReplicaByDefault()
		}

		if model.Shard != "" {
			policy = policy.WithStaticShard(ShardKey(model.Shard))
		}

		if model.ShardKeyColumn != "" {
			policy = policy.WithResolver(ShardKeyFromField(model.ShardKeyColumn))
		}

		if err := registry.RegisterModel(name, policy); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// dsn returns the node's connection string, composing a postgres URL from
// the individual fields when no full DSN was given.
func (n NodeConfig) dsn() string {
	if n.DSN != "" {
		return n.DSN
	}

	if n.Host == "" {
		return ""
	}

	port := n.Port
	if port == 0 {
		port = 5432
	}

	target := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", n.Host, port),
		Path:   "/" + n.Database,
	}

	if n.Username != "" {
		if n.Password != "" {
			target.User = url.UserPassword(n.Username, n.Password)
		} else {
			target.User = url.User(n.Username)
		}
	}

	if n.SSLMode != "" {
		query := url.Values{}
		query.Set("sslmode", n.SSLMode)
		target.RawQuery = query.Encode()
	}

	return target.String()
}
