// Package decode turns raw tile payloads into displayable tile images.
package decode

import (
	"bytes"
	"fmt"
	"image"

	// Raster formats commonly served by tile providers.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/podusowski/walkers/internal/tile"
)

// Decoder turns raw bytes into a tile image. Implementations must be safe
// for use from a single goroutine; the manager is the only caller.
type Decoder interface {
	Decode(data []byte) (tile.Image, error)
}

// Error reports a malformed or unsupported tile payload. Unlike a fetch
// failure it is not retryable: the same bytes will fail again.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode tile: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default decodes rasters first and falls back to vector payloads sniffed by
// content. This mirrors how providers are mixed in practice: a PNG source and
// an MVT source can sit behind the same engine.
type Default struct{}

var _ Decoder = Default{}

func (Default) Decode(data []byte) (tile.Image, error) {
	if len(data) == 0 {
		return nil, &Error{Err: fmt.Errorf("empty payload")}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return tile.Raster{Pixels: img}, nil
	}

	if compressed, ok := sniffVector(data); ok {
		// Copy so the cache entry does not alias the fetch buffer.
		payload := make([]byte, len(data))
		copy(payload, data)
		return tile.Vector{Data: payload, Compressed: compressed}, nil
	}

	return nil, &Error{Err: err}
}

// sniffVector recognizes gzip-wrapped payloads and bare protobuf tiles. MVT
// tiles start with a "layers" field tag (field 3, wire type 2).
func sniffVector(data []byte) (compressed bool, ok bool) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return true, true
	}
	if data[0] == 0x1a {
		return false, true
	}
	return false, false
}
