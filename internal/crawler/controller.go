package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/dhtcrawler/internal/config"
	dlog "github.com/nao1215/dhtcrawler/internal/log"
	"github.com/nao1215/dhtcrawler/internal/telemetry"
)

// DefaultPollInterval is how often Drain checks the running count.
const DefaultPollInterval = 100 * time.Millisecond

// minAdmissionSpacing is the shortest gap between two admissions.
// Snapshot names have one-second resolution, so sessions started within
// the same second would publish to the same path.
const minAdmissionSpacing = time.Second

// Admission is the result of a Controller tick.
type Admission int

const (
	// AdmissionNone means no session was started.
	AdmissionNone Admission = iota

	// AdmissionStarted means a new session was started.
	AdmissionStarted
)

// String returns the admission name.
func (a Admission) String() string {
	if a == AdmissionStarted {
		return "started"
	}
	return "none"
}

// Controller decides when crawl sessions start. It keeps at most
// MaxCrawlers sessions running and spaces admissions at least Interval
// apart, and never less than a second apart.
//
// Sessions are fire-and-forget: Tick launches them on their own goroutine
// and only the running count in State tracks them afterwards.
//
// Tick, Drain and Stop may be called from different goroutines, but Tick
// itself is expected to be driven by a single supervisor loop.
type Controller struct {
	cfg      *config.Config
	factory  EngineFactory
	state    *State
	clock    clock.Clock
	logger   *slog.Logger
	locator  Locator
	recorder Recorder
	runID    string

	pollInterval time.Duration
	rename       func(oldpath, newpath string) error
	spawn        func(*Session)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock sessions and admissions are timed with.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLocator enables location lookup for logs and snapshots.
func WithLocator(l Locator) Option {
	return func(c *Controller) {
		if l != nil {
			c.locator = l
		}
	}
}

// WithRecorder records every finished session.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithRunID tags recorded sessions with the id of this process run.
func WithRunID(id string) Option {
	return func(c *Controller) {
		c.runID = id
	}
}

// WithPollInterval sets how often Drain checks for running sessions.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithState shares an existing State. Mostly useful in tests.
func WithState(s *State) Option {
	return func(c *Controller) {
		if s != nil {
			c.state = s
		}
	}
}

// NewController creates a Controller. cfg must already be validated.
func NewController(cfg *config.Config, factory EngineFactory, opts ...Option) (*Controller, error) {
	if factory == nil {
		return nil, ErrNoEngineFactory
	}

	c := &Controller{
		cfg:          cfg,
		factory:      factory,
		state:        NewState(),
		clock:        clock.New(),
		logger:       slog.Default(),
		locator:      noLocator{},
		pollInterval: DefaultPollInterval,
		rename:       defaultRename,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.spawn = func(s *Session) { go s.Run() }

	return c, nil
}

// State returns the shared controller state.
func (c *Controller) State() *State {
	return c.state
}

// Tick starts a new session if policy allows. It returns AdmissionNone
// without error when an interrupt is set, MaxCrawlers sessions are
// running, or the last admission was less than Interval (at least one
// second) ago. The first
// admission is never delayed. A session that cannot be created yields
// ErrSessionCreate; the caller should back off before the next tick.
func (c *Controller) Tick() (Admission, error) {
	running := c.state.Running()
	c.logger.Log(context.Background(), dlog.LevelVerbose, "controller inspection", "running", running)

	if c.state.Interrupted() || running >= c.cfg.MaxCrawlers {
		return AdmissionNone, nil
	}

	last := c.state.LastAdmission()
	if !last.IsZero() && c.clock.Now().Sub(last) < max(c.cfg.Interval, minAdmissionSpacing) {
		return AdmissionNone, nil
	}

	engine, err := c.factory()
	if err != nil {
		telemetry.AdmissionsFailed.Inc()
		return AdmissionNone, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	s := newSession(c, engine)

	c.state.sessionStarted()
	telemetry.SessionsRunning.Inc()
	c.spawn(s)

	c.state.setLastAdmission(c.clock.Now())
	return AdmissionStarted, nil
}

// Stop asks every session to stop without writing a snapshot and blocks
// further admissions. It has no effect once an interrupt is set.
func (c *Controller) Stop() {
	if c.state.Stop() {
		c.logger.Info("stop requested", "running", c.state.Running())
	}
}

// Drain waits until no session is running or ctx is done.
func (c *Controller) Drain(ctx context.Context) error {
	ticker := c.clock.Ticker(c.pollInterval)
	defer ticker.Stop()

	for c.state.Running() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
