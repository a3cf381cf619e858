// Package store provides secondary byte-level tile stores, consulted before
// the network source and written back to after a successful fetch.
package store

import (
	"context"

	"github.com/podusowski/walkers/internal/tile"
)

// Store is a persistent cache of raw tile payloads.
type Store interface {
	Get(ctx context.Context, id tile.ID) ([]byte, bool, error)
	Set(ctx context.Context, id tile.ID, data []byte) error
}
