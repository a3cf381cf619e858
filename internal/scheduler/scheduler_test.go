package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/podusowski/walkers/internal/source"
	"github.com/podusowski/walkers/internal/tile"
)

// fakeSource records fetches and optionally blocks them on a gate channel
// until the test releases a token.
type fakeSource struct {
	mu    sync.Mutex
	calls []tile.ID

	gate chan struct{}

	// blockFrom is the 1-based call number from which fetches start
	// waiting on the gate. Zero blocks every call when the gate is set.
	blockFrom int

	err error
}

func (f *fakeSource) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	n := len(f.calls)
	f.mu.Unlock()

	if f.gate != nil && n >= f.blockFrom {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	return []byte(id.String()), nil
}

func (f *fakeSource) Attribution() source.Attribution { return source.Attribution{} }
func (f *fakeSource) TileSize() int                   { return 256 }
func (f *fakeSource) MaxZoom() uint8                  { return 19 }

func (f *fakeSource) fetched() []tile.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tile.ID, len(f.calls))
	copy(out, f.calls)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func drainAll(t *testing.T, s *Scheduler, n int) []Completion {
	t.Helper()
	var out []Completion
	waitFor(t, "completions", func() bool {
		out = append(out, s.PollCompleted()...)
		return len(out) >= n
	})
	return out
}

func TestDuplicateRequestsFetchOnce(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 1)}
	s := New(src, Options{MaxParallel: 2})
	defer s.Close()

	id := tile.ID{X: 1, Y: 2, Zoom: 3}
	s.Request(id)
	s.Request(id)
	s.Request(id)

	src.gate <- struct{}{}
	got := drainAll(t, s, 1)

	if len(got) != 1 {
		t.Fatalf("got %d completions, expected 1", len(got))
	}
	if calls := src.fetched(); len(calls) != 1 {
		t.Fatalf("source was fetched %d times, expected 1", len(calls))
	}
}

func TestDuplicateOfQueuedRequestIsIgnored(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 4)}
	s := New(src, Options{MaxParallel: 1})
	defer s.Close()

	blocker := tile.ID{X: 0, Y: 0, Zoom: 1}
	id := tile.ID{X: 1, Y: 0, Zoom: 1}

	s.Request(blocker)
	waitFor(t, "blocker in flight", func() bool { return s.InFlightCount() == 1 })

	s.Request(id)
	s.Request(id)

	if n := s.PendingCount(); n != 1 {
		t.Fatalf("pending count is %d, expected 1", n)
	}

	src.gate <- struct{}{}
	src.gate <- struct{}{}
	drainAll(t, s, 2)
}

func TestParallelismIsBounded(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 5)}
	s := New(src, Options{MaxParallel: 2})
	defer s.Close()

	for x := uint32(0); x < 5; x++ {
		s.Request(tile.ID{X: x, Y: 0, Zoom: 3})
	}

	waitFor(t, "two fetches in flight", func() bool { return s.InFlightCount() == 2 })

	if n := s.InFlightCount(); n != 2 {
		t.Fatalf("%d fetches in flight, limit is 2", n)
	}
	if n := s.PendingCount(); n != 3 {
		t.Fatalf("pending count is %d, expected 3", n)
	}

	for i := 0; i < 5; i++ {
		src.gate <- struct{}{}
	}
	if got := drainAll(t, s, 5); len(got) != 5 {
		t.Fatalf("got %d completions, expected 5", len(got))
	}
}

func TestQueuedRequestsAreServedNewestFirst(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 4)}
	s := New(src, Options{MaxParallel: 1})
	defer s.Close()

	ids := []tile.ID{
		{X: 0, Y: 0, Zoom: 4},
		{X: 1, Y: 0, Zoom: 4},
		{X: 2, Y: 0, Zoom: 4},
		{X: 3, Y: 0, Zoom: 4},
	}

	s.Request(ids[0])
	waitFor(t, "first fetch started", func() bool { return len(src.fetched()) == 1 })
	s.Request(ids[1])
	s.Request(ids[2])
	s.Request(ids[3])

	for i := 0; i < 4; i++ {
		src.gate <- struct{}{}
	}
	drainAll(t, s, 4)

	want := []tile.ID{ids[0], ids[3], ids[2], ids[1]}
	got := src.fetched()
	for i, id := range want {
		if got[i] != id {
			t.Fatalf("fetch order %v, expected %v", got, want)
		}
	}
}

func TestDropPolicyPrunesOffScreenQueue(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 3)}
	s := New(src, Options{MaxParallel: 1, Policy: Drop})
	defer s.Close()

	a := tile.ID{X: 0, Y: 0, Zoom: 4}
	b := tile.ID{X: 1, Y: 0, Zoom: 4}
	c := tile.ID{X: 2, Y: 0, Zoom: 4}

	s.Request(a)
	waitFor(t, "a in flight", func() bool { return len(src.fetched()) == 1 })
	s.Request(b)
	s.Request(c)

	s.SetVisible(map[tile.ID]struct{}{a: {}, c: {}})

	if n := s.PendingCount(); n != 1 {
		t.Fatalf("pending count is %d, expected 1 after dropping b", n)
	}

	src.gate <- struct{}{}
	src.gate <- struct{}{}
	drainAll(t, s, 2)

	for _, id := range src.fetched() {
		if id == b {
			t.Fatal("b left the viewport while queued and must not be fetched")
		}
	}
}

func TestReorderPolicyDemotesOffScreenQueue(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 4)}
	s := New(src, Options{MaxParallel: 1, Policy: Reorder})
	defer s.Close()

	blocker := tile.ID{X: 9, Y: 9, Zoom: 4}
	a := tile.ID{X: 0, Y: 0, Zoom: 4}
	b := tile.ID{X: 1, Y: 0, Zoom: 4}
	c := tile.ID{X: 2, Y: 0, Zoom: 4}

	s.Request(blocker)
	waitFor(t, "blocker in flight", func() bool { return len(src.fetched()) == 1 })
	s.Request(a)
	s.Request(b)
	s.Request(c)

	// a is off screen now; it stays queued but is served last.
	s.SetVisible(map[tile.ID]struct{}{blocker: {}, b: {}, c: {}})

	if n := s.PendingCount(); n != 3 {
		t.Fatalf("pending count is %d, expected 3 under reorder", n)
	}

	for i := 0; i < 4; i++ {
		src.gate <- struct{}{}
	}
	drainAll(t, s, 4)

	got := src.fetched()
	if got[len(got)-1] != a {
		t.Fatalf("fetch order %v, expected the demoted tile last", got)
	}
}

func TestFailedFetchIsDeliveredWithError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	s := New(src, Options{MaxParallel: 1})
	defer s.Close()

	id := tile.ID{X: 3, Y: 7, Zoom: 5}
	s.Request(id)

	got := drainAll(t, s, 1)
	if got[0].ID != id {
		t.Fatalf("completion for %v, expected %v", got[0].ID, id)
	}
	if got[0].Err == nil {
		t.Fatal("expected an error in the completion")
	}
	if got[0].Data != nil {
		t.Fatal("failed fetch must not carry data")
	}
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}, 1), blockFrom: 2}
	s := New(src, Options{MaxParallel: 1})
	defer s.Close()

	id := tile.ID{X: 1, Y: 1, Zoom: 2}

	s.Request(id)
	waitFor(t, "first completion", func() bool { return s.HasCompleted() })

	// Re-requesting before the drain supersedes the waiting completion.
	s.Request(id)

	if got := s.PollCompleted(); len(got) != 0 {
		t.Fatalf("drained %d stale completions, expected none", len(got))
	}

	src.gate <- struct{}{}
	got := drainAll(t, s, 1)
	if got[0].ID != id || got[0].Err != nil {
		t.Fatalf("unexpected completion %+v", got[0])
	}
}

func TestRequestAfterCloseIsIgnored(t *testing.T) {
	src := &fakeSource{}
	s := New(src, Options{MaxParallel: 1})

	s.Close()
	s.Request(tile.ID{X: 1, Y: 1, Zoom: 1})

	time.Sleep(10 * time.Millisecond)
	if len(src.fetched()) != 0 {
		t.Fatal("closed scheduler must not dispatch fetches")
	}
}

func TestParseQueuePolicy(t *testing.T) {
	if p, err := ParseQueuePolicy("drop"); err != nil || p != Drop {
		t.Fatalf("got %v, %v", p, err)
	}
	if p, err := ParseQueuePolicy("reorder"); err != nil || p != Reorder {
		t.Fatalf("got %v, %v", p, err)
	}
	if _, err := ParseQueuePolicy("fifo"); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}
