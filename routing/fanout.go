package routing

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ShardFunc is invoked once per shard during a fan-out; the context it
// receives has that shard selected, so every decision made inside targets
// the shard being visited.
type ShardFunc func(ctx context.Context, key ShardKey) error

// OnAllShards runs fn once for every registered shard, sequentially and in
// lexical key order. The first error aborts the loop and is returned.
func OnAllShards(ctx context.Context, registry *Registry, fn ShardFunc) error {
	if registry == nil {
		return ErrNilRegistry
	}

	for _, key := range registry.ShardKeys() {
		if err := fn(WithShard(ctx, key), key); err != nil {
			return err
		}
	}

	return nil
}

// OnAllShardsParallel runs fn for every registered shard concurrently, one
// goroutine per shard. The first error cancels the group's context and is
// returned after all goroutines have finished.
func OnAllShardsParallel(ctx context.Context, registry *Registry, fn ShardFunc) error {
	if registry == nil {
		return ErrNilRegistry
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, key := range registry.ShardKeys() {
		group.Go(func() error {
			return fn(WithShard(groupCtx, key), key)
		})
	}

	return group.Wait()
}
