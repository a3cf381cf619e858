// Package scheduler runs tile fetches on a bounded pool of workers,
// de-duplicates requests and drops work for tiles that left the viewport.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/podusowski/walkers/internal/source"
	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/logger"
	"github.com/podusowski/walkers/pkg/metrics"
)

// DefaultMaxParallel follows modern browsers' per-host connection limit.
const DefaultMaxParallel = 6

// QueuePolicy says what happens to queued-but-not-started requests when the
// viewport changes.
type QueuePolicy int

const (
	// Drop removes queued requests that are no longer visible.
	Drop QueuePolicy = iota

	// Reorder keeps them but serves them after everything visible.
	Reorder
)

func ParseQueuePolicy(s string) (QueuePolicy, error) {
	switch s {
	case "drop":
		return Drop, nil
	case "reorder":
		return Reorder, nil
	default:
		return Drop, fmt.Errorf("unknown queue policy %q", s)
	}
}

// Completion is a finished fetch, successful or not, waiting to be drained
// by the manager.
type Completion struct {
	ID         tile.ID
	Generation uint64
	Data       []byte
	Err        error
}

type phase int

const (
	pending phase = iota
	inFlight
)

type state struct {
	phase      phase
	generation uint64
}

type queued struct {
	id         tile.ID
	generation uint64
}

type Options struct {
	MaxParallel  int
	FetchTimeout time.Duration
	Policy       QueuePolicy
	Logger       logger.Logger
}

// Scheduler bounds the number of concurrent fetches and keeps excess
// requests in a stack, so the most recently requested tiles are served
// first. All methods are safe for concurrent use, though the manager is
// expected to be the only caller of Request, SetVisible and PollCompleted.
type Scheduler struct {
	source  source.Source
	log     logger.Logger
	max     int
	timeout time.Duration
	policy  QueuePolicy

	mu sync.Mutex

	// states holds the outstanding request per tile, pending or in flight.
	states map[tile.ID]*state

	// gens maps each tile to the latest generation issued for it. A
	// completion whose generation is older is stale and never delivered.
	gens map[tile.ID]uint64

	// queue of requests waiting for a free worker, newest at the end.
	queue []queued

	// completed fetches waiting for PollCompleted. Pushed by workers,
	// drained by the manager; the only structure shared between them.
	completed []Completion

	visible map[tile.ID]struct{}

	generation uint64
	active     int
	pendingN   int
	closed     bool
}

func New(src source.Source, opts Options) *Scheduler {
	max := opts.MaxParallel
	if max <= 0 {
		max = DefaultMaxParallel
	}
	timeout := opts.FetchTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Scheduler{
		source:  src,
		log:     l,
		max:     max,
		timeout: timeout,
		policy:  opts.Policy,
		states:  make(map[tile.ID]*state),
		gens:    make(map[tile.ID]uint64),
	}
}

// Request schedules a fetch for id unless one is already pending or in
// flight. Never blocks.
func (s *Scheduler) Request(id tile.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if _, ok := s.states[id]; ok {
		// Already outstanding.
		return
	}

	s.generation++
	gen := s.generation
	s.gens[id] = gen

	if s.active < s.max {
		s.states[id] = &state{phase: inFlight, generation: gen}
		s.active++
		go s.work(id, gen)
		return
	}

	s.states[id] = &state{phase: pending, generation: gen}
	s.queue = append(s.queue, queued{id: id, generation: gen})
	s.pendingN++
	s.log.Debug("queued tile request", "tile", id.String())
}

// SetVisible tells the scheduler which tiles the viewport currently needs.
// Queued requests outside the set are dropped or demoted per the policy.
// In-flight fetches are left alone; their results are ignored at drain time.
func (s *Scheduler) SetVisible(visible map[tile.ID]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visible = visible

	switch s.policy {
	case Drop:
		kept := s.queue[:0]
		for _, q := range s.queue {
			if _, ok := visible[q.id]; ok {
				kept = append(kept, q)
				continue
			}
			if st, ok := s.states[q.id]; ok && st.phase == pending && st.generation == q.generation {
				delete(s.states, q.id)
				delete(s.gens, q.id)
				s.pendingN--
				s.log.Debug("dropped off-screen tile request", "tile", q.id.String())
			}
		}
		s.queue = kept
	case Reorder:
		// Demote off-screen requests to the bottom of the stack.
		demoted := make([]queued, 0, len(s.queue))
		kept := make([]queued, 0, len(s.queue))
		for _, q := range s.queue {
			if _, ok := visible[q.id]; ok {
				kept = append(kept, q)
			} else {
				demoted = append(demoted, q)
			}
		}
		s.queue = append(demoted, kept...)
	}
}

// PollCompleted drains finished fetches in arrival order. Stale completions,
// superseded by a newer generation for the same tile, are silently dropped.
func (s *Scheduler) PollCompleted() []Completion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.completed) == 0 {
		return nil
	}

	out := make([]Completion, 0, len(s.completed))
	for _, c := range s.completed {
		if gen, ok := s.gens[c.ID]; !ok || gen != c.Generation {
			s.log.Debug("discarding stale completion", "tile", c.ID.String())
			continue
		}
		delete(s.gens, c.ID)
		out = append(out, c)
	}
	s.completed = nil

	return out
}

// HasCompleted reports whether completions are waiting to be drained.
func (s *Scheduler) HasCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed) > 0
}

// PendingCount returns the number of requests waiting for a worker.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingN
}

// InFlightCount returns the number of fetches currently running.
func (s *Scheduler) InFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close stops dispatching. In-flight fetches finish on their own; their
// results are never delivered.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.queue = nil
	s.states = make(map[tile.ID]*state)
	s.gens = make(map[tile.ID]uint64)
	s.pendingN = 0
}

func (s *Scheduler) work(id tile.ID, gen uint64) {
	for {
		s.fetch(id, gen)

		var ok bool
		id, gen, ok = s.next()
		if !ok {
			return
		}
	}
}

func (s *Scheduler) fetch(id tile.ID, gen uint64) {
	s.log.Debug("fetching tile", "tile", id.String())

	metrics.DownloadsInFlight.Inc()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	data, err := s.source.Fetch(ctx, id)
	cancel()

	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	metrics.DownloadsInFlight.Dec()

	if err != nil {
		metrics.FetchErrors.Inc()
		s.log.Warn("tile fetch failed", "tile", id.String(), "error", err)
	}

	s.mu.Lock()
	if st, ok := s.states[id]; ok && st.generation == gen {
		delete(s.states, id)
	}
	s.completed = append(s.completed, Completion{
		ID:         id,
		Generation: gen,
		Data:       data,
		Err:        err,
	})
	s.mu.Unlock()
}

// next pops the most recently requested eligible tile off the queue, or
// retires the worker when nothing is left.
func (s *Scheduler) next() (tile.ID, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		q := s.queue[len(s.queue)-1]
		s.queue = s.queue[:len(s.queue)-1]

		st, ok := s.states[q.id]
		if !ok || st.phase != pending || st.generation != q.generation {
			continue
		}
		s.pendingN--

		if s.closed {
			delete(s.states, q.id)
			delete(s.gens, q.id)
			continue
		}

		if s.policy == Drop && s.visible != nil {
			if _, vis := s.visible[q.id]; !vis {
				delete(s.states, q.id)
				delete(s.gens, q.id)
				continue
			}
		}

		st.phase = inFlight
		return q.id, q.generation, true
	}

	s.active--
	return tile.ID{}, 0, false
}
