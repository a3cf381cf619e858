// Package tile defines tile identities on the quad-tree tile pyramid and the
// decoded tiles the engine caches.
package tile

import "fmt"

// ID identifies a tile in the tile grid.
type ID struct {
	// X number of the tile.
	X uint32

	// Y number of the tile.
	Y uint32

	// Zoom level, where 0 means no zoom.
	// See: https://wiki.openstreetmap.org/wiki/Zoom_levels
	Zoom uint8
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// TotalTiles returns the number of tiles along one axis at the given zoom.
func TotalTiles(zoom uint8) uint32 {
	return 1 << zoom
}

// Valid reports whether the coordinates fit the grid of the tile's zoom level.
func (t ID) Valid() bool {
	return t.Zoom < 32 && t.X < TotalTiles(t.Zoom) && t.Y < TotalTiles(t.Zoom)
}

// Parent returns the tile one zoom level up that covers this tile. The second
// return value is false at zoom 0.
func (t ID) Parent() (ID, bool) {
	if t.Zoom == 0 {
		return ID{}, false
	}
	return ID{X: t.X / 2, Y: t.Y / 2, Zoom: t.Zoom - 1}, true
}

// AncestorAt returns the tile at the given lower zoom level that covers this
// tile. It is the identity when zoom equals the tile's own zoom.
func (t ID) AncestorAt(zoom uint8) (ID, bool) {
	if zoom > t.Zoom {
		return ID{}, false
	}
	dzoom := uint32(1) << (t.Zoom - zoom)
	return ID{X: t.X / dzoom, Y: t.Y / dzoom, Zoom: zoom}, true
}

func (t ID) East() (ID, bool) {
	if t.X >= TotalTiles(t.Zoom)-1 {
		return ID{}, false
	}
	return ID{X: t.X + 1, Y: t.Y, Zoom: t.Zoom}, true
}

func (t ID) West() (ID, bool) {
	if t.X == 0 {
		return ID{}, false
	}
	return ID{X: t.X - 1, Y: t.Y, Zoom: t.Zoom}, true
}

func (t ID) North() (ID, bool) {
	if t.Y == 0 {
		return ID{}, false
	}
	return ID{X: t.X, Y: t.Y - 1, Zoom: t.Zoom}, true
}

func (t ID) South() (ID, bool) {
	if t.Y >= TotalTiles(t.Zoom)-1 {
		return ID{}, false
	}
	return ID{X: t.X, Y: t.Y + 1, Zoom: t.Zoom}, true
}

// Region is a normalized sub-rectangle of a tile, in [0,1] coordinates with
// the origin in the north-west corner.
type Region struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Full is the region covering a whole tile.
var Full = Region{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}

// InterpolateFromLowerZoom maps a tile onto its ancestor at availableZoom.
// It returns the ancestor id together with the region of the ancestor that
// covers the requested tile, so a renderer can crop and scale the ancestor
// while the exact tile is still missing. availableZoom must not exceed the
// tile's own zoom.
func InterpolateFromLowerZoom(t ID, availableZoom uint8) (ID, Region) {
	dzoom := uint32(1) << (t.Zoom - availableZoom)

	ancestor := ID{X: t.X / dzoom, Y: t.Y / dzoom, Zoom: availableZoom}

	z := 1 / float64(dzoom)
	region := Region{
		MinX: float64(t.X%dzoom) * z,
		MinY: float64(t.Y%dzoom) * z,
		MaxX: float64(t.X%dzoom)*z + z,
		MaxY: float64(t.Y%dzoom)*z + z,
	}

	return ancestor, region
}

// InvalidError reports a tile id whose coordinates are out of range for its
// zoom level, or whose zoom exceeds what the source can serve. Such ids are
// rejected before any fetch is scheduled.
type InvalidError struct {
	ID      ID
	MaxZoom uint8
}

func (e *InvalidError) Error() string {
	if e.ID.Zoom > e.MaxZoom {
		return fmt.Sprintf("tile %s: zoom exceeds source maximum %d", e.ID, e.MaxZoom)
	}
	return fmt.Sprintf("tile %s: coordinates out of range", e.ID)
}

// Check returns an InvalidError when the coordinates are out of range or the
// zoom is deeper than maxZoom.
func (t ID) Check(maxZoom uint8) error {
	if !t.Valid() || t.Zoom > maxZoom {
		return &InvalidError{ID: t, MaxZoom: maxZoom}
	}
	return nil
}
