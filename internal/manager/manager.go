// Package manager is the per-frame entry point of the tile engine: it
// resolves the visible tile set against the cache, schedules downloads for
// misses and substitutes lower-zoom ancestors while fetches are outstanding.
package manager

import (
	"github.com/podusowski/walkers/internal/cache"
	"github.com/podusowski/walkers/internal/decode"
	"github.com/podusowski/walkers/internal/scheduler"
	"github.com/podusowski/walkers/internal/source"
	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/logger"
	"github.com/podusowski/walkers/pkg/metrics"
)

// ViewKind classifies what the engine can offer for a requested tile.
type ViewKind int

const (
	// Exact means the requested tile itself is cached.
	Exact ViewKind = iota

	// Placeholder is a cached ancestor standing in for the tile; the
	// renderer crops it to Region.
	Placeholder

	// Pending means a fetch is queued or in flight and nothing is cached.
	Pending

	// Unavailable means the tile cannot be produced: the id is invalid or
	// its payload failed permanently.
	Unavailable
)

// TileView is the engine's answer for one requested tile.
type TileView struct {
	Kind ViewKind

	// Tile is set for Exact and Placeholder.
	Tile *tile.Tile

	// Source is the id of the tile actually served; for Placeholder this
	// is the ancestor, for Exact the requested id itself.
	Source tile.ID

	// Region is the part of Source covering the requested tile.
	Region tile.Region
}

type Stats struct {
	Cached  int `json:"cached"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

type Options struct {
	// ClampZoom makes requests beyond the source's maximum zoom resolve to
	// the clamped maximum-zoom ancestor instead of Unavailable.
	ClampZoom bool

	Decoder decode.Decoder
	Logger  logger.Logger
}

// Manager ties the cache and the scheduler together. It is not safe for
// concurrent use: one goroutine, typically the render loop, owns it. That
// goroutine is the only writer the cache ever sees.
type Manager struct {
	cache *cache.Cache
	sched *scheduler.Scheduler
	dec   decode.Decoder
	log   logger.Logger

	maxZoom     uint8
	clampZoom   bool
	attribution source.Attribution

	// fetchFailed holds tiles whose last fetch failed. They are not
	// refetched while they stay visible; leaving the viewport clears the
	// mark, so a revisit retries.
	fetchFailed map[tile.ID]struct{}

	dirty bool
}

func New(c *cache.Cache, s *scheduler.Scheduler, src source.Source, opts Options) *Manager {
	dec := opts.Decoder
	if dec == nil {
		dec = decode.Default{}
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Manager{
		cache:       c,
		sched:       s,
		dec:         dec,
		log:         l,
		maxZoom:     src.MaxZoom(),
		clampZoom:   opts.ClampZoom,
		attribution: src.Attribution(),
		fetchFailed: make(map[tile.ID]struct{}),
	}
}

// Resolve answers the current visible tile set. It first drains completed
// fetches into the cache, then serves each id from cache, falling back to a
// cached ancestor, scheduling a download on miss. It never blocks.
func (m *Manager) Resolve(visible []tile.ID) map[tile.ID]TileView {
	m.cache.NextFrame()
	m.dirty = false

	// The ids actually eligible for fetching; zoom above the source
	// maximum maps to the clamped ancestor.
	wanted := make(map[tile.ID]struct{}, len(visible))
	for _, id := range visible {
		if fetchID, ok := m.fetchID(id); ok {
			wanted[fetchID] = struct{}{}
		}
	}
	m.sched.SetVisible(wanted)
	m.forgetOffscreenFailures(wanted)
	m.drain(wanted)

	views := make(map[tile.ID]TileView, len(visible))
	for _, id := range visible {
		views[id] = m.resolveOne(id)
	}

	return views
}

// Dirty reports whether tile state changed since the last Resolve, or new
// completions are waiting. The render loop polls this once per frame to
// decide whether to repaint.
func (m *Manager) Dirty() bool {
	return m.dirty || m.sched.HasCompleted()
}

func (m *Manager) Stats() Stats {
	return Stats{
		Cached:  m.cache.Len() - m.cache.FailedCount(),
		Pending: m.sched.PendingCount() + m.sched.InFlightCount(),
		Failed:  m.cache.FailedCount() + len(m.fetchFailed),
	}
}

// Attribution of the underlying source. The host should display it
// somewhere on top of the map.
func (m *Manager) Attribution() source.Attribution {
	return m.attribution
}

func (m *Manager) MaxZoom() uint8 {
	return m.maxZoom
}

// fetchID validates the id and maps it to the tile that should actually be
// fetched. Returns false when nothing can be fetched for it.
func (m *Manager) fetchID(id tile.ID) (tile.ID, bool) {
	err := id.Check(m.maxZoom)
	if err == nil {
		return id, true
	}

	if id.Valid() && m.clampZoom {
		clamped, _ := id.AncestorAt(m.maxZoom)
		return clamped, true
	}

	m.log.Debug("rejecting tile request", "tile", id.String(), "error", err)
	return tile.ID{}, false
}

func (m *Manager) forgetOffscreenFailures(wanted map[tile.ID]struct{}) {
	for id := range m.fetchFailed {
		if _, ok := wanted[id]; !ok {
			delete(m.fetchFailed, id)
		}
	}
}

// drain moves completed fetches into the cache. This is the only place
// where fetch results are consumed, keeping cache writes single-threaded.
func (m *Manager) drain(wanted map[tile.ID]struct{}) {
	for _, c := range m.sched.PollCompleted() {
		if _, ok := wanted[c.ID]; !ok {
			// The viewport moved on; do not churn the cache.
			m.log.Debug("discarding completion for off-screen tile", "tile", c.ID.String())
			continue
		}

		if c.Err != nil {
			m.fetchFailed[c.ID] = struct{}{}
			m.dirty = true
			continue
		}

		img, err := m.dec.Decode(c.Data)
		if err != nil {
			// The payload is broken; the same bytes would fail again,
			// so the id is written off for the session.
			metrics.DecodeErrors.Inc()
			m.log.Warn("tile decode failed", "tile", c.ID.String(), "error", err)
			m.cache.MarkFailed(c.ID)
			m.dirty = true
			continue
		}

		m.cache.Insert(c.ID, &tile.Tile{ID: c.ID, Image: img})
		m.dirty = true
	}
}

func (m *Manager) resolveOne(id tile.ID) TileView {
	fetchID, ok := m.fetchID(id)
	if !ok {
		return TileView{Kind: Unavailable}
	}

	// A cached fetchID settles the request: exact when it is the id itself,
	// a clamped placeholder otherwise. Either way nothing is refetched.
	if t, ok := m.cache.Get(fetchID); ok {
		if fetchID == id {
			return TileView{Kind: Exact, Tile: t, Source: id, Region: tile.Full}
		}
		_, region := tile.InterpolateFromLowerZoom(id, fetchID.Zoom)
		metrics.PlaceholdersServed.Inc()
		return TileView{Kind: Placeholder, Tile: t, Source: fetchID, Region: region}
	}

	failedPermanently := m.cache.Failed(fetchID)

	if _, failed := m.fetchFailed[fetchID]; !failed && !failedPermanently {
		m.sched.Request(fetchID)
	}

	if t, donor, region, ok := m.cache.GetWithFallback(id); ok {
		metrics.PlaceholdersServed.Inc()
		return TileView{Kind: Placeholder, Tile: t, Source: donor, Region: region}
	}

	if failedPermanently {
		return TileView{Kind: Unavailable}
	}

	return TileView{Kind: Pending}
}
