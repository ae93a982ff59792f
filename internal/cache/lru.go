// Package cache implements the bounded LRU cache of metadata records.
// It lets the resolver keep emitting complete sessions when the remote
// API is unreachable, using metadata learned on earlier cycles.
package cache

import (
	"container/list"
	"sync"

	"presenced/internal/session"
)

// LRU is a fixed-capacity cache keyed by track identity with
// least-recently-used eviction. Both Get and Put count as touches.
// Entries never expire by time, only under capacity pressure.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[session.TrackIdentity]*list.Element
}

type entry struct {
	id  session.TrackIdentity
	rec session.MetadataRecord
}

// New creates a cache holding at most capacity entries. Capacity is
// fixed for the lifetime of the cache; values below 1 are clamped to 1.
func New(capacity int) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[session.TrackIdentity]*list.Element, capacity),
	}
}

// Get returns the record for id and marks it most-recently-used.
// The second return value is false on a miss.
func (c *LRU) Get(id session.TrackIdentity) (session.MetadataRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return session.MetadataRecord{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).rec, true
}

// Put inserts or replaces the record for id and marks it
// most-recently-used. Replacement swaps in the new record rather than
// mutating the stored one. If the insert pushes the cache over
// capacity, the single least-recently-used entry is evicted.
func (c *LRU) Put(id session.TrackIdentity, rec session.MetadataRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		el.Value = &entry{id: id, rec: rec}
		c.order.MoveToFront(el)
		return
	}

	c.items[id] = c.order.PushFront(&entry{id: id, rec: rec})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).id)
	}
}

// Len returns the number of cached entries
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
