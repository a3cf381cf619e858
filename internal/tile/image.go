package tile

import "image"

// Image is the decoded payload of a tile. The cache and the manager are
// agnostic to the concrete variant; only the renderer cares.
type Image interface {
	// ByteSize estimates how much memory the decoded data occupies. Used
	// for cache accounting and diagnostics.
	ByteSize() int
}

// Raster is a bitmap tile decoded from PNG, JPEG or similar.
type Raster struct {
	Pixels image.Image
}

func (r Raster) ByteSize() int {
	bounds := r.Pixels.Bounds()
	return bounds.Dx() * bounds.Dy() * 4
}

// Vector is a structured tile payload (e.g. MVT). Rendering vector data is
// out of scope here, so the raw bytes are kept as-is.
type Vector struct {
	Data []byte

	// Compressed is set when the payload is gzip-wrapped.
	Compressed bool
}

func (v Vector) ByteSize() int {
	return len(v.Data)
}

// Tile is a decoded tile owned by the cache. Callers receive it as a
// read-only view and must not mutate it.
type Tile struct {
	ID    ID
	Image Image
}

func (t *Tile) ByteSize() int {
	if t.Image == nil {
		return 0
	}
	return t.Image.ByteSize()
}
