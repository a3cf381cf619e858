// Package source provides tile sources: capabilities mapping a tile id to its
// raw bytes. Sources may be slow and may fail; the scheduler deals with both.
package source

import (
	"context"
	"fmt"

	"github.com/podusowski/walkers/internal/tile"
)

// Attribution information for a tile source.
type Attribution struct {
	Text string
	URL  string
}

// Source delivers raw tile payloads. Fetch is invoked only by scheduler
// workers and may block; it must honor the context deadline.
type Source interface {
	Fetch(ctx context.Context, id tile.ID) ([]byte, error)
	Attribution() Attribution

	// TileSize is the edge length of served tiles in pixels, a multiple of 256.
	TileSize() int

	// MaxZoom is the deepest zoom level the source can serve.
	MaxZoom() uint8
}

// FetchError is a transport-level failure: the network broke, the server
// answered with a non-success status, or the deadline passed. Retryable once
// the viewport revisits the tile.
type FetchError struct {
	ID     tile.ID
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch tile %s: status %d", e.ID, e.Status)
	}
	return fmt.Sprintf("fetch tile %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
