package crawler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"os"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/dhtcrawler/internal/config"
	dlog "github.com/nao1215/dhtcrawler/internal/log"
	"github.com/nao1215/dhtcrawler/internal/model"
	"github.com/nao1215/dhtcrawler/internal/telemetry"
)

// recordTimeout bounds how long a finished session waits on the recorder.
const recordTimeout = 5 * time.Second

// Session is one bounded crawl: a fresh DHT identity that keeps asking
// every node it learns about for more nodes until it runs out of new ones,
// reaches the node limit, or is interrupted.
//
// A session runs on its own goroutine. The engine fires the discovery
// callback from inside Tick on that same goroutine, so the session's
// fields need no lock.
type Session struct {
	index    uint32
	runID    string
	cfg      *config.Config
	engine   Engine
	state    *State
	clock    clock.Clock
	logger   *slog.Logger
	locator  Locator
	recorder Recorder
	rename   func(oldpath, newpath string) error

	frontier *frontier

	startedAt   time.Time
	lastNewNode time.Time
	lastRequest time.Time

	outcome      model.Outcome
	snapshotPath string
	snapshotErr  error
}

// newSession wires a session to engine and sends the bootstrap queries.
func newSession(c *Controller, engine Engine) *Session {
	index := c.state.newIndex()
	now := c.clock.Now()

	s := &Session{
		index:    index,
		runID:    c.runID,
		cfg:      c.cfg,
		engine:   engine,
		state:    c.state,
		clock:    c.clock,
		logger:   c.logger.With("crawler", index),
		locator:  c.locator,
		recorder: c.recorder,
		rename:   c.rename,
		frontier: newFrontier(c.cfg.InitialNodesListSize, c.cfg.InitialNodesListSize),

		startedAt:   now,
		lastNewNode: now,
		lastRequest: now,
	}

	engine.OnDiscovered(s.handleDiscovered)
	s.bootstrap()

	return s
}

// bootstrap sends one query per address family of every bootstrap node.
// Entries with a malformed key or address are skipped.
func (s *Session) bootstrap() {
	for _, b := range s.cfg.Bootstraps {
		var id model.NodeID
		if b.Key != "" {
			parsed, err := model.ParseNodeID(b.Key)
			if err != nil {
				s.logger.Warn("skipping bootstrap node with malformed key", "key", b.Key, "error", err)
				continue
			}
			id = parsed
		}

		for _, ip := range []string{b.IPv4, b.IPv6} {
			if ip == "" {
				continue
			}
			addr, err := netip.ParseAddr(ip)
			if err != nil {
				s.logger.Warn("skipping malformed bootstrap address", "ip", ip, "error", err)
				continue
			}

			peer := model.NewPeer(netip.AddrPortFrom(addr, uint16(b.Port)), id) //nolint:gosec // port validated by config
			if err := s.engine.Bootstrap(peer); err != nil {
				s.logger.Warn("bootstrap query failed", "node", peer, "error", err)
			}
		}
	}
}

// handleDiscovered is the engine's discovery callback. Known identities are
// ignored. Once the node limit is reached nothing more is added, so a
// snapshot never holds more than the limit.
func (s *Session) handleDiscovered(p model.Peer) {
	if s.cfg.NodeLimit > 0 && s.frontier.len() >= s.cfg.NodeLimit {
		return
	}
	if !s.frontier.add(p) {
		return
	}

	s.lastNewNode = s.clock.Now()
	telemetry.PeersDiscovered.Inc()

	if s.frontier.len() == 1 {
		s.logger.Info("connected to the DHT", "first_node", p)
	}

	ctx := context.Background()
	if s.logger.Enabled(ctx, dlog.LevelVerbose) {
		s.logger.Log(ctx, dlog.LevelVerbose, "discovered node",
			"id", p.ID,
			"ip", p.IP(),
			"location", s.locator.Lookup(p.IP()),
			"nodes", s.frontier.len(),
		)
	}
}

// sendNodeRequests runs one query round. Each pending node, up to
// RequestsPerInterval of them, is asked about itself and then about
// RandomRequests randomly picked known nodes. It returns the number of
// nodes queried, which is 0 when the round interval has not elapsed yet.
func (s *Session) sendNodeRequests() int {
	now := s.clock.Now()
	if now.Sub(s.lastRequest) < s.cfg.RequestInterval {
		return 0
	}

	count := 0
	i := s.frontier.sendPtr
	for ; count < s.cfg.RequestsPerInterval && i < s.frontier.len(); i++ {
		target := s.frontier.at(i)
		s.query(target, target.ID)

		for range s.cfg.RandomRequests {
			other := s.frontier.at(rand.IntN(s.frontier.len())) //nolint:gosec // probe target choice needs no crypto
			s.query(target, other.ID)
		}
		count++
	}

	s.frontier.sendPtr = i
	s.lastRequest = now
	return count
}

func (s *Session) query(target model.Peer, about model.NodeID) {
	if err := s.engine.Query(target, about); err != nil {
		s.logger.Log(context.Background(), dlog.LevelTrace, "query failed", "node", target, "error", err)
		return
	}
	telemetry.QueriesSent.Inc()
}

// finished reports whether the session should stop, and records why.
// A raised interrupt wins over everything else; reaching the node limit
// wins over stalling.
func (s *Session) finished() bool {
	if s.state.Interrupted() {
		s.outcome = model.OutcomeInterrupted
		return true
	}

	if s.cfg.NodeLimit > 0 && s.frontier.len() >= s.cfg.NodeLimit {
		if s.state.reachLimit() {
			s.outcome = model.OutcomeLimitReached
		} else {
			s.outcome = model.OutcomeInterrupted
		}
		return true
	}

	if s.frontier.pending() == 0 && !s.clock.Now().Before(s.lastNewNode.Add(s.cfg.Timeout)) {
		s.outcome = model.OutcomeStalled
		return true
	}

	return false
}

// step runs one iteration: engine I/O first, then a query round.
func (s *Session) step() {
	if err := s.engine.Tick(); err != nil {
		s.logger.Debug("engine tick failed", "error", err)
	}
	s.sendNodeRequests()
}

// Run crawls until finished, writes the snapshot when the outcome calls for
// one, and tears the session down. It is meant to run on its own goroutine.
func (s *Session) Run() {
	defer s.teardown()

	s.logger.Info("crawler created and running")

	for !s.finished() {
		s.step()
		s.clock.Sleep(s.engine.IterationInterval())
	}

	s.logger.Info("crawl finished", "nodes", s.frontier.len(), "outcome", s.outcome)
	s.finalize()
}

// finalize writes the snapshot for stalled and limit-reached sessions.
// Failures are logged and otherwise ignored.
func (s *Session) finalize() {
	if !s.outcome.Dumps() {
		return
	}

	path := SnapshotPath(s.cfg.DataDir, s.startedAt)
	s.logger.Info("dumping nodes list", "path", path)

	if err := writeSnapshot(path, s.frontier.list(), s.locator, s.rename); err != nil {
		s.snapshotErr = err
		s.logger.Error("dumping nodes list failed", "path", path, "error", err)
		telemetry.SnapshotsWritten.WithLabelValues("error").Inc()
		return
	}

	s.snapshotPath = path
	s.logger.Info("dumping nodes list success", "path", path)
	telemetry.SnapshotsWritten.WithLabelValues("ok").Inc()
}

// teardown releases the engine, reports the session and only then drops
// it from the running count, so a drained controller has nothing left to
// record.
func (s *Session) teardown() {
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("failed to close dht engine", "error", err)
	}

	rec := s.record()
	if s.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := s.recorder.RecordSession(ctx, rec); err != nil {
			s.logger.Warn("failed to record session", "error", err)
		}
		cancel()
	}

	telemetry.SessionsTotal.WithLabelValues(string(s.outcome)).Inc()
	telemetry.SessionNodes.Observe(float64(rec.Nodes))
	telemetry.SessionsRunning.Dec()

	s.frontier = nil
	s.state.sessionDone()

	s.logger.Info("crawler finished and cleaned up")
}

// record summarises the session for the history database.
func (s *Session) record() model.SessionRecord {
	rec := model.SessionRecord{
		RunID:        s.runID,
		Index:        s.index,
		StartedAt:    s.startedAt,
		FinishedAt:   s.clock.Now(),
		Nodes:        s.frontier.len(),
		Outcome:      s.outcome,
		SnapshotPath: s.snapshotPath,
	}
	if s.snapshotErr != nil {
		rec.Error = s.snapshotErr.Error()
	}
	return rec
}

// Index returns the session's index within the process.
func (s *Session) Index() uint32 {
	return s.index
}

// Outcome returns why the session stopped. It is empty while running.
func (s *Session) Outcome() model.Outcome {
	return s.outcome
}

// defaultRename is the rename used to publish snapshots.
var defaultRename = os.Rename
