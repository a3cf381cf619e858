package cache

import (
	"fmt"
	"testing"

	"github.com/podusowski/walkers/internal/tile"
)

func newTile(id tile.ID) *tile.Tile {
	return &tile.Tile{ID: id, Image: tile.Vector{Data: []byte("payload")}}
}

func TestGetReturnsInsertedTile(t *testing.T) {
	c := New(4)
	id := tile.ID{X: 1, Y: 2, Zoom: 3}

	c.Insert(id, newTile(id))

	got, ok := c.Get(id)
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.ID != id {
		t.Fatalf("got tile %v, expected %v", got.ID, id)
	}
}

func TestGetMissesOnEmptyCache(t *testing.T) {
	c := New(4)

	if _, ok := c.Get(tile.ID{X: 1, Y: 1, Zoom: 1}); ok {
		t.Fatal("expected a miss")
	}
}

func TestCapacityIsAHardCap(t *testing.T) {
	c := New(3)

	for i := uint32(0); i < 10; i++ {
		id := tile.ID{X: i, Y: 0, Zoom: 5}
		c.Insert(id, newTile(id))
		c.NextFrame()

		if c.Len() > 3 {
			t.Fatalf("cache grew to %d entries, capacity is 3", c.Len())
		}
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
}

func TestLeastRecentlyUsedIsEvictedFirst(t *testing.T) {
	// Capacity 2: insert A, B, access A again, insert C. B must go, not A.
	c := New(2)

	a := tile.ID{X: 0, Y: 0, Zoom: 4}
	b := tile.ID{X: 1, Y: 0, Zoom: 4}
	d := tile.ID{X: 2, Y: 0, Zoom: 4}

	c.Insert(a, newTile(a))
	c.Insert(b, newTile(b))
	c.NextFrame()

	if _, ok := c.Get(a); !ok {
		t.Fatal("expected a to be cached")
	}
	c.NextFrame()

	c.Insert(d, newTile(d))

	if _, ok := c.Get(b); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Fatal("a should have survived")
	}
	if _, ok := c.Get(d); !ok {
		t.Fatal("c should be cached")
	}
}

func TestHardCapHoldsEvenWhenEveryEntryIsPinned(t *testing.T) {
	// All entries are touched in the current frame, yet the capacity bound
	// still wins: the least recently used pinned entry goes.
	c := New(2)

	a := tile.ID{X: 0, Y: 0, Zoom: 4}
	b := tile.ID{X: 1, Y: 0, Zoom: 4}
	d := tile.ID{X: 2, Y: 0, Zoom: 4}

	c.Insert(a, newTile(a))
	c.Insert(b, newTile(b))
	c.Get(a)
	c.Insert(d, newTile(d))

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(b); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Fatal("a should have survived")
	}
}

func TestFallbackFindsNearestAncestor(t *testing.T) {
	c := New(8)

	id := tile.ID{X: 12, Y: 10, Zoom: 4}
	grandparent := tile.ID{X: 3, Y: 2, Zoom: 2}
	c.Insert(grandparent, newTile(grandparent))

	got, donor, region, ok := c.GetWithFallback(id)
	if !ok {
		t.Fatal("expected a fallback hit")
	}
	if donor != grandparent {
		t.Fatalf("donor is %v, expected %v", donor, grandparent)
	}
	if got.ID != grandparent {
		t.Fatalf("got tile %v, expected %v", got.ID, grandparent)
	}
	if region == tile.Full {
		t.Fatal("region should be a sub-rectangle of the donor")
	}
}

func TestFallbackPrefersExactMatch(t *testing.T) {
	c := New(8)

	id := tile.ID{X: 2, Y: 2, Zoom: 3}
	parent, _ := id.Parent()
	c.Insert(parent, newTile(parent))
	c.Insert(id, newTile(id))

	_, donor, region, ok := c.GetWithFallback(id)
	if !ok {
		t.Fatal("expected a hit")
	}
	if donor != id {
		t.Fatalf("donor is %v, expected the exact tile", donor)
	}
	if region != tile.Full {
		t.Fatalf("unexpected region: %+v", region)
	}
}

func TestFailedEntriesDoNotServeAsDonors(t *testing.T) {
	c := New(8)

	id := tile.ID{X: 2, Y: 2, Zoom: 3}
	parent, _ := id.Parent()
	grandparent, _ := parent.Parent()

	c.MarkFailed(parent)
	c.Insert(grandparent, newTile(grandparent))

	_, donor, _, ok := c.GetWithFallback(id)
	if !ok {
		t.Fatal("expected a fallback hit")
	}
	if donor != grandparent {
		t.Fatalf("donor is %v, expected %v", donor, grandparent)
	}
}

func TestMarkFailedBlocksExactGet(t *testing.T) {
	c := New(8)
	id := tile.ID{X: 1, Y: 1, Zoom: 1}

	c.MarkFailed(id)

	if _, ok := c.Get(id); ok {
		t.Fatal("failed entry must not yield a tile")
	}
	if !c.Failed(id) {
		t.Fatal("expected the entry to be marked failed")
	}
	if c.FailedCount() != 1 {
		t.Fatalf("failed count is %d, expected 1", c.FailedCount())
	}
}

func TestInsertReplacesFailedEntry(t *testing.T) {
	c := New(8)
	id := tile.ID{X: 1, Y: 1, Zoom: 1}

	c.MarkFailed(id)
	c.Insert(id, newTile(id))

	if _, ok := c.Get(id); !ok {
		t.Fatal("expected a hit after replacing the failed entry")
	}
	if c.FailedCount() != 0 {
		t.Fatalf("failed count is %d, expected 0", c.FailedCount())
	}
}

func TestEvictionKeepsFailedCountConsistent(t *testing.T) {
	c := New(2)

	c.MarkFailed(tile.ID{X: 0, Y: 0, Zoom: 4})
	c.NextFrame()
	c.MarkFailed(tile.ID{X: 1, Y: 0, Zoom: 4})
	c.NextFrame()

	id := tile.ID{X: 2, Y: 0, Zoom: 4}
	c.Insert(id, newTile(id))

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if c.FailedCount() != 1 {
		t.Fatalf("failed count is %d, expected 1", c.FailedCount())
	}
}

func BenchmarkInsertAndGet(b *testing.B) {
	c := New(256)

	for i := 0; i < b.N; i++ {
		id := tile.ID{X: uint32(i % 512), Y: uint32(i % 512), Zoom: 10}
		if i%4 == 0 {
			c.Insert(id, newTile(id))
		} else {
			c.Get(id)
		}
		if i%64 == 0 {
			c.NextFrame()
		}
	}
}

func ExampleCache_GetWithFallback() {
	c := New(16)

	parent := tile.ID{X: 0, Y: 0, Zoom: 0}
	c.Insert(parent, &tile.Tile{ID: parent, Image: tile.Vector{Data: []byte("world")}})

	_, donor, _, _ := c.GetWithFallback(tile.ID{X: 3, Y: 1, Zoom: 2})
	fmt.Println(donor)
	// Output: 0/0/0
}
