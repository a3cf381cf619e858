// Package prefetch warms the secondary tile store ahead of time, so low zoom
// levels render instantly on first use.
package prefetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/podusowski/walkers/internal/source"
	"github.com/podusowski/walkers/internal/store"
	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/logger"
)

type Warmer struct {
	source  source.Source
	store   store.Store
	workers int
	logger  logger.Logger
}

func NewWarmer(src source.Source, st store.Store, workers int, l logger.Logger) *Warmer {
	if workers <= 0 {
		workers = 2
	}
	if l == nil {
		l = logger.NewNoOp()
	}
	return &Warmer{
		source:  src,
		store:   st,
		workers: workers,
		logger:  l,
	}
}

// Run fetches every tile up to and including maxLevel and stores its raw
// bytes. Tiles already present are skipped. Individual fetch failures are
// logged and do not abort the warmup; only context cancellation does.
func (w *Warmer) Run(ctx context.Context, maxLevel int) error {
	if maxLevel < 0 {
		return nil
	}
	if maxLevel > int(w.source.MaxZoom()) {
		maxLevel = int(w.source.MaxZoom())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for zoom := uint8(0); zoom <= uint8(maxLevel); zoom++ {
		n := tile.TotalTiles(zoom)
		for x := uint32(0); x < n; x++ {
			for y := uint32(0); y < n; y++ {
				id := tile.ID{X: x, Y: y, Zoom: zoom}

				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					return w.warmOne(ctx, id)
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("warmup aborted: %w", err)
	}

	w.logger.Info("warmup finished", "levels", maxLevel)
	return nil
}

func (w *Warmer) warmOne(ctx context.Context, id tile.ID) error {
	if _, ok, err := w.store.Get(ctx, id); err == nil && ok {
		return nil
	}

	data, err := w.source.Fetch(ctx, id)
	if err != nil {
		w.logger.Warn("warmup fetch failed", "tile", id.String(), "error", err)
		return nil
	}

	if err := w.store.Set(ctx, id, data); err != nil {
		w.logger.Warn("warmup store failed", "tile", id.String(), "error", err)
	}

	return nil
}
