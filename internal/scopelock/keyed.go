package scopelock

import (
	"context"
	"hash/fnv"
	"sync"
)

// Locker serializes writers on a scope key. Version allocation and the
// commit that follows it must run under the same lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

const shardCount = 64

// Keyed is an in-process locker backed by a fixed set of mutex shards.
// Two distinct keys may share a shard; that only widens serialization,
// it never narrows it.
type Keyed struct {
	shards [shardCount]sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{}
}

func (k *Keyed) Lock(_ context.Context, key string) (func(), error) {
	shard := &k.shards[shardIndex(key)]
	shard.Lock()
	return shard.Unlock, nil
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
