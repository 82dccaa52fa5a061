package ingest

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLocks serializes work on one dedupe key without a lock per key.
type keyLocks struct {
	mu [lockStripes]sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.mu[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
