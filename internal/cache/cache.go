// Package cache holds decoded tiles in a bounded in-memory LRU store.
package cache

import (
	"container/list"

	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/metrics"
)

// DefaultCapacity bounds the cache to 256 tiles, a couple of screens worth.
const DefaultCapacity = 256

type entry struct {
	id tile.ID

	// tile is nil for negative entries, see MarkFailed.
	tile *tile.Tile

	// frame of the last access. Entries touched in the current frame are
	// not eviction candidates.
	frame uint64
}

// Cache is an insertion-recency bounded store of decoded tiles. It is not
// safe for concurrent use: it belongs to the goroutine driving the manager,
// and that goroutine performs every mutation.
type Cache struct {
	capacity int
	items    map[tile.ID]*list.Element

	// lruList keeps the most recently used entry at the front.
	lruList *list.List

	frame  uint64
	failed int
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[tile.ID]*list.Element),
		lruList:  list.New(),
	}
}

// NextFrame starts a new access frame. The manager calls this once per
// resolve pass; entries accessed afterwards are pinned until the next pass.
func (c *Cache) NextFrame() {
	c.frame++
}

// Get returns the tile for the exact id and marks it as recently used.
// A negative (failed) entry yields no tile.
func (c *Cache) Get(id tile.ID) (*tile.Tile, bool) {
	elem, ok := c.items[id]
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.touch(elem)

	ent := elem.Value.(*entry)
	if ent.tile == nil {
		metrics.CacheMisses.Inc()
		return nil, false
	}

	metrics.CacheHits.Inc()
	return ent.tile, true
}

// GetWithFallback returns the tile for id, or failing that, walks the
// ancestor chain until a cached tile is found. The returned id names the
// tile actually matched and the region is the part of it covering the
// requested tile. Negative entries never serve as donors.
func (c *Cache) GetWithFallback(id tile.ID) (*tile.Tile, tile.ID, tile.Region, bool) {
	for zoom := id.Zoom; ; zoom-- {
		candidate, region := tile.InterpolateFromLowerZoom(id, zoom)

		if elem, ok := c.items[candidate]; ok {
			ent := elem.Value.(*entry)
			if ent.tile != nil {
				c.touch(elem)
				return ent.tile, candidate, region, true
			}
		}

		if zoom == 0 {
			return nil, tile.ID{}, tile.Region{}, false
		}
	}
}

// Insert adds or replaces the entry for id, then evicts least-recently-used
// entries until the capacity bound holds again. Eviction runs synchronously;
// once Insert returns the invariant is restored.
func (c *Cache) Insert(id tile.ID, t *tile.Tile) {
	c.put(id, t)
}

// MarkFailed records that no usable tile will ever arrive for this id within
// the session. The negative entry occupies a cache slot so the id is not
// refetched, and it is evicted like any other entry.
func (c *Cache) MarkFailed(id tile.ID) {
	c.put(id, nil)
}

// Failed reports whether id carries a negative entry.
func (c *Cache) Failed(id tile.ID) bool {
	elem, ok := c.items[id]
	if !ok {
		return false
	}
	return elem.Value.(*entry).tile == nil
}

func (c *Cache) put(id tile.ID, t *tile.Tile) {
	if elem, ok := c.items[id]; ok {
		ent := elem.Value.(*entry)
		if ent.tile == nil {
			c.failed--
		}
		if t == nil {
			c.failed++
		}
		ent.tile = t
		c.touch(elem)
		return
	}

	ent := &entry{id: id, tile: t, frame: c.frame}
	if t == nil {
		c.failed++
	}
	c.items[id] = c.lruList.PushFront(ent)

	for c.lruList.Len() > c.capacity {
		c.evictOne()
	}
}

// evictOne removes the least recently used entry, preferring entries not
// accessed in the current frame. The capacity bound is hard, so when every
// entry is pinned the oldest one goes anyway.
func (c *Cache) evictOne() {
	var victim *list.Element
	for elem := c.lruList.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*entry).frame != c.frame {
			victim = elem
			break
		}
	}
	if victim == nil {
		victim = c.lruList.Back()
	}
	if victim == nil {
		return
	}

	ent := victim.Value.(*entry)
	if ent.tile == nil {
		c.failed--
	}
	delete(c.items, ent.id)
	c.lruList.Remove(victim)
	metrics.CacheEvictions.Inc()
}

func (c *Cache) touch(elem *list.Element) {
	elem.Value.(*entry).frame = c.frame
	c.lruList.MoveToFront(elem)
}

// Len returns the number of entries, negative ones included.
func (c *Cache) Len() int {
	return c.lruList.Len()
}

// FailedCount returns the number of negative entries.
func (c *Cache) FailedCount() int {
	return c.failed
}

// ByteSize estimates the memory held by cached tiles.
func (c *Cache) ByteSize() int {
	total := 0
	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		if t := elem.Value.(*entry).tile; t != nil {
			total += t.ByteSize()
		}
	}
	return total
}
