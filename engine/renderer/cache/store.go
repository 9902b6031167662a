package cache

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// table maps fingerprints to the objects of one kind. The lock is held
// across construction, so a fingerprint is built at most once.
type table[T any] struct {
	mu      sync.Mutex
	kind    metadata.ResourceKind
	entries map[Fingerprint]*T
}

func newTable[T any](kind metadata.ResourceKind) *table[T] {
	return &table[T]{
		kind:    kind,
		entries: make(map[Fingerprint]*T),
	}
}

func (t *table[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// drain empties the table and returns what it held. The caller holds the lock.
func (t *table[T]) drain() []*T {
	objects := make([]*T, 0, len(t.entries))
	for _, obj := range t.entries {
		objects = append(objects, obj)
	}
	t.entries = make(map[Fingerprint]*T)
	return objects
}

// requestResource returns the object stored under fingerprint, building
// it on a miss. Failed builds are not stored, so a later request retries.
// record runs on a successful build while the table lock is still held.
func requestResource[T any](c *ResourceCache, t *table[T], fingerprint Fingerprint, build func(id uint64) (*T, error), record func(*T)) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	label := t.kind.String()
	if obj, ok := t.entries[fingerprint]; ok {
		c.metrics.RecordHit(label)
		return obj, nil
	}

	id := c.ids.AquireNewID()
	core.LogDebug("Building #%d cache object (%s)", id, label)

	clock := core.NewClock()
	clock.Start()
	obj, err := build(id)
	clock.Stop()
	if err != nil {
		c.metrics.RecordFailure(label)
		return nil, fmt.Errorf("could not create %s: %w", label, err)
	}

	t.entries[fingerprint] = obj
	c.metrics.RecordMiss(label, clock.ElapsedMS())

	if record != nil && c.recorder != nil {
		record(obj)
	}
	return obj, nil
}
