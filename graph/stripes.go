package graph

import (
	"hash/fnv"
	"sync"
)

const stripeCount = 256

// stripedMutex serializes read-modify-write cycles per key without a lock per key.
type stripedMutex struct {
	stripes [stripeCount]sync.Mutex
}

// lock acquires the stripe owning key and returns its unlock function.
func (s *stripedMutex) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &s.stripes[h.Sum32()%stripeCount]
	m.Lock()
	return m.Unlock
}
