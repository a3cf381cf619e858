package source

import (
	"context"

	"github.com/podusowski/walkers/internal/store"
	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/logger"
	"github.com/podusowski/walkers/pkg/metrics"
)

// CachedSource consults a secondary byte store before the inner source and
// writes successful network fetches back to it. Store failures degrade to a
// plain fetch; they are logged, never propagated.
type CachedSource struct {
	inner  Source
	store  store.Store
	logger logger.Logger
}

var _ Source = (*CachedSource)(nil)

func WithStore(inner Source, st store.Store, l logger.Logger) *CachedSource {
	if l == nil {
		l = logger.NewNoOp()
	}
	return &CachedSource{
		inner:  inner,
		store:  st,
		logger: l,
	}
}

func (s *CachedSource) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	data, ok, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("store lookup failed, falling back to source", "tile", id.String(), "error", err)
	} else if ok {
		metrics.StoreHits.Inc()
		return data, nil
	}

	data, err = s.inner.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, id, data); err != nil {
		s.logger.Warn("failed to store tile", "tile", id.String(), "error", err)
	}

	return data, nil
}

func (s *CachedSource) Attribution() Attribution {
	return s.inner.Attribution()
}

func (s *CachedSource) TileSize() int {
	return s.inner.TileSize()
}

func (s *CachedSource) MaxZoom() uint8 {
	return s.inner.MaxZoom()
}
