package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/dhtcrawler/internal/model"
)

func TestNewController(t *testing.T) {
	t.Parallel()

	if _, err := NewController(testConfig(t), nil); !errors.Is(err, ErrNoEngineFactory) {
		t.Errorf("expected ErrNoEngineFactory, got %v", err)
	}
}

func TestControllerTick(t *testing.T) {
	t.Parallel()

	t.Run("admission interval and capacity", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.MaxCrawlers = 1
		cfg.Interval = 10 * time.Second

		mock := clock.NewMock()
		c, spawned := newTestController(t, cfg, mock, &fakeEngine{}, &fakeEngine{})

		got, err := c.Tick()
		if err != nil || got != AdmissionStarted {
			t.Fatalf("expected first tick to admit immediately, got %v, %v", got, err)
		}
		if c.State().Running() != 1 {
			t.Fatalf("expected 1 running session, got %d", c.State().Running())
		}

		for range 2 {
			mock.Add(time.Second)
			if got, err := c.Tick(); err != nil || got != AdmissionNone {
				t.Errorf("expected no action while a session runs, got %v, %v", got, err)
			}
		}

		// The session finishes; the interval has not elapsed yet.
		(*spawned)[0].teardown()
		if got, _ := c.Tick(); got != AdmissionNone {
			t.Errorf("expected no action within the interval, got %v", got)
		}

		mock.Add(8 * time.Second)
		if got, err := c.Tick(); err != nil || got != AdmissionStarted {
			t.Errorf("expected a new session after the interval, got %v, %v", got, err)
		}
		if len(*spawned) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(*spawned))
		}
		if (*spawned)[1].Index() != 1 {
			t.Errorf("expected second session index 1, got %d", (*spawned)[1].Index())
		}
	})

	t.Run("zero interval still spaces admissions a second apart", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.MaxCrawlers = 2
		cfg.Interval = 0

		mock := clock.NewMock()
		a, b := &fakeEngine{}, &fakeEngine{}
		c, spawned := newTestController(t, cfg, mock, a, b)

		if got, err := c.Tick(); err != nil || got != AdmissionStarted {
			t.Fatalf("expected first tick to admit, got %v, %v", got, err)
		}
		mock.Add(999 * time.Millisecond)
		if got, err := c.Tick(); err != nil || got != AdmissionNone {
			t.Fatalf("expected no admission within the same second, got %v, %v", got, err)
		}
		mock.Add(time.Millisecond)
		if got, err := c.Tick(); err != nil || got != AdmissionStarted {
			t.Fatalf("expected admission after a second, got %v, %v", got, err)
		}

		first, second := (*spawned)[0], (*spawned)[1]
		first.handleDiscovered(testPeer(1))
		first.handleDiscovered(testPeer(2))
		first.handleDiscovered(testPeer(3))
		second.handleDiscovered(testPeer(9))

		mock.Add(cfg.Timeout)
		for _, s := range []*Session{first, second} {
			s.frontier.sendPtr = s.frontier.len()
			if !s.finished() || s.Outcome() != model.OutcomeStalled {
				t.Fatalf("expected stalled, got %q", s.Outcome())
			}
			s.finalize()
		}

		if first.snapshotPath == second.snapshotPath {
			t.Fatalf("sessions share snapshot path %s", first.snapshotPath)
		}
		contents := readSnapshots(t, cfg.DataDir)
		if len(contents) != 2 {
			t.Fatalf("expected 2 snapshots, got %d", len(contents))
		}
		lines := 0
		for _, content := range contents {
			lines += strings.Count(content, "\n")
		}
		if lines != 4 {
			t.Errorf("expected 4 records across snapshots, got %d", lines)
		}
	})

	t.Run("interrupt blocks admission", func(t *testing.T) {
		t.Parallel()

		mock := clock.NewMock()
		c, spawned := newTestController(t, testConfig(t), mock)
		c.Stop()

		if got, err := c.Tick(); err != nil || got != AdmissionNone {
			t.Errorf("expected no action after stop, got %v, %v", got, err)
		}
		if len(*spawned) != 0 {
			t.Errorf("expected no sessions, got %d", len(*spawned))
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		t.Parallel()

		injected := errors.New("socket exhausted")
		c, err := NewController(testConfig(t), func() (Engine, error) { return nil, injected },
			WithLogger(discardLogger()),
		)
		if err != nil {
			t.Fatalf("failed to create controller: %v", err)
		}

		got, err := c.Tick()
		if got != AdmissionNone {
			t.Errorf("expected no admission, got %v", got)
		}
		if !errors.Is(err, ErrSessionCreate) || !errors.Is(err, injected) {
			t.Errorf("expected wrapped ErrSessionCreate, got %v", err)
		}
		if c.State().Running() != 0 {
			t.Errorf("expected 0 running, got %d", c.State().Running())
		}
		if !c.State().LastAdmission().IsZero() {
			t.Error("a failed admission must not count as an admission")
		}
	})
}

func TestControllerDrain(t *testing.T) {
	t.Parallel()

	t.Run("waits for running sessions", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Timeout = time.Hour
		cfg.RequestInterval = 0

		engine := &fakeEngine{script: [][]model.Peer{{testPeer(1)}}}
		c, err := NewController(cfg, func() (Engine, error) { return engine, nil },
			WithLogger(discardLogger()),
			WithPollInterval(time.Millisecond),
		)
		if err != nil {
			t.Fatalf("failed to create controller: %v", err)
		}

		if got, err := c.Tick(); err != nil || got != AdmissionStarted {
			t.Fatalf("expected admission, got %v, %v", got, err)
		}

		c.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Drain(ctx); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		if c.State().Running() != 0 {
			t.Errorf("expected 0 running, got %d", c.State().Running())
		}
		if !engine.isClosed() {
			t.Error("expected engine to be closed after drain")
		}
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		t.Parallel()

		c, spawned := newTestController(t, testConfig(t), clock.New(), &fakeEngine{})
		c.pollInterval = time.Millisecond
		if _, err := c.Tick(); err != nil {
			t.Fatalf("tick failed: %v", err)
		}
		if len(*spawned) != 1 {
			t.Fatalf("expected 1 session, got %d", len(*spawned))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := c.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
