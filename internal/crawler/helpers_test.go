package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/dhtcrawler/internal/config"
	"github.com/nao1215/dhtcrawler/internal/model"
)

// fakeQuery is one query sent through fakeEngine.
type fakeQuery struct {
	target model.Peer
	about  model.NodeID
}

// fakeEngine is a scripted DHT engine. On its n-th tick it reports the
// peers in script[n], then runs onTick if set.
type fakeEngine struct {
	mu         sync.Mutex
	script     [][]model.Peer
	onTick     func(ticks int)
	ticks      int
	bootstraps []model.Peer
	queries    []fakeQuery
	discovered func(model.Peer)
	closed     bool
}

func (e *fakeEngine) Bootstrap(p model.Peer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bootstraps = append(e.bootstraps, p)
	return nil
}

func (e *fakeEngine) Query(target model.Peer, about model.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, fakeQuery{target: target, about: about})
	return nil
}

func (e *fakeEngine) Tick() error {
	e.mu.Lock()
	var batch []model.Peer
	if e.ticks < len(e.script) {
		batch = e.script[e.ticks]
	}
	e.ticks++
	ticks := e.ticks
	e.mu.Unlock()

	for _, p := range batch {
		e.discovered(p)
	}
	if e.onTick != nil {
		e.onTick(ticks)
	}
	return nil
}

func (e *fakeEngine) IterationInterval() time.Duration {
	return time.Millisecond
}

func (e *fakeEngine) OnDiscovered(fn func(model.Peer)) {
	e.discovered = fn
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) queryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queries)
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// fakeLocator maps every address to the same location.
type fakeLocator struct {
	location string
}

func (l fakeLocator) Lookup(netip.Addr) string {
	return l.location
}

// fakeRecorder collects recorded sessions.
type fakeRecorder struct {
	mu      sync.Mutex
	records []model.SessionRecord
}

func (r *fakeRecorder) RecordSession(_ context.Context, rec model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecorder) all() []model.SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SessionRecord(nil), r.records...)
}

// testConfig returns a valid configuration writing into a temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "nodes")
	cfg.Interval = 10 * time.Second
	cfg.MaxCrawlers = 1
	cfg.Timeout = 5 * time.Second
	cfg.RequestInterval = time.Second
	cfg.RequestsPerInterval = 10
	cfg.RandomRequests = 1
	cfg.InitialNodesListSize = 4
	cfg.Bootstraps = []config.Bootstrap{
		{IPv4: "192.0.2.1", Port: 33445},
	}
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPeer returns a peer whose identity and address are derived from n.
func testPeer(n byte) model.Peer {
	var id model.NodeID
	id[0] = n
	id[model.NodeIDSize-1] = n
	return model.NewPeer(netip.AddrPortFrom(netip.AddrFrom4([4]byte{198, 51, 100, n}), 6881), id)
}

// newTestController returns a controller whose sessions are never started,
// so tests can drive them by hand.
func newTestController(t *testing.T, cfg *config.Config, clk clock.Clock, engines ...*fakeEngine) (*Controller, *[]*Session) {
	t.Helper()

	next := 0
	factory := func() (Engine, error) {
		if next >= len(engines) {
			t.Fatal("engine factory called too often")
		}
		e := engines[next]
		next++
		return e, nil
	}

	c, err := NewController(cfg, factory, WithClock(clk), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}

	var spawned []*Session
	c.spawn = func(s *Session) { spawned = append(spawned, s) }
	return c, &spawned
}

// newTestSession creates a single session on a mock clock.
func newTestSession(t *testing.T, cfg *config.Config, engine *fakeEngine) (*Session, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	c, spawned := newTestController(t, cfg, mock, engine)
	if _, err := c.Tick(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if len(*spawned) != 1 {
		t.Fatalf("expected 1 session, got %d", len(*spawned))
	}
	return (*spawned)[0], mock
}
