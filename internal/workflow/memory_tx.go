package workflow

import (
	"context"
	"hash/fnv"
	"sync"
)

const txShards = 64

// InMemoryTxRunner serializes units of work that share a key by parking them
// on one of a fixed set of mutexes. It provides mutual exclusion, not
// rollback: the in-memory stores validate every write before mutating, so a
// unit of work that fails leaves no partial state behind. The SQL runner is
// the one with real transactional semantics; this runner exists so the
// coordinator behaves identically in unit tests.
type InMemoryTxRunner struct {
	shards [txShards]sync.Mutex
}

func NewInMemoryTxRunner() *InMemoryTxRunner {
	return &InMemoryTxRunner{}
}

func (r *InMemoryTxRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mu := &r.shards[shardOf(key)]
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

func shardOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % txShards
}
