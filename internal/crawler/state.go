package crawler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Interrupt is the process-wide stop flag.
type Interrupt int32

const (
	// InterruptNone means crawling continues.
	InterruptNone Interrupt = iota

	// InterruptStop means a shutdown was requested. Sessions stop without
	// writing a snapshot.
	InterruptStop

	// InterruptLimitReached means a session reached the node limit. That
	// session writes its snapshot; every other running session stops
	// without one.
	InterruptLimitReached
)

// String returns the interrupt name.
func (i Interrupt) String() string {
	switch i {
	case InterruptNone:
		return "none"
	case InterruptStop:
		return "stop"
	case InterruptLimitReached:
		return "limit-reached"
	default:
		return "unknown"
	}
}

// State is the controller state shared by every session.
// All methods are safe for concurrent use.
type State struct {
	running   atomic.Int32
	interrupt atomic.Int32
	nextIndex atomic.Uint32

	mu            sync.Mutex
	lastAdmission time.Time
}

// NewState returns a State with no running sessions and no interrupt.
func NewState() *State {
	return &State{}
}

// Running returns the number of sessions currently running.
func (s *State) Running() int {
	return int(s.running.Load())
}

// Interrupt returns the current interrupt flag.
func (s *State) Interrupt() Interrupt {
	return Interrupt(s.interrupt.Load())
}

// Interrupted reports whether any interrupt has been raised.
func (s *State) Interrupted() bool {
	return s.Interrupt() != InterruptNone
}

// Stop raises a graceful stop. It reports false if an interrupt was
// already set; the flag only ever leaves InterruptNone once.
func (s *State) Stop() bool {
	return s.interrupt.CompareAndSwap(int32(InterruptNone), int32(InterruptStop))
}

// reachLimit raises the limit-reached interrupt. It reports whether this
// call set the flag.
func (s *State) reachLimit() bool {
	return s.interrupt.CompareAndSwap(int32(InterruptNone), int32(InterruptLimitReached))
}

// ExitCode returns the process exit code: 0 only when a session reached
// the node limit, 1 for every other way of shutting down.
func (s *State) ExitCode() int {
	if s.Interrupt() == InterruptLimitReached {
		return 0
	}
	return 1
}

// LastAdmission returns when the last session was admitted.
func (s *State) LastAdmission() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAdmission
}

func (s *State) setLastAdmission(t time.Time) {
	s.mu.Lock()
	s.lastAdmission = t
	s.mu.Unlock()
}

func (s *State) sessionStarted() {
	s.running.Add(1)
}

func (s *State) sessionDone() {
	s.running.Add(-1)
}

// newIndex returns the next session index, starting at 0.
func (s *State) newIndex() uint32 {
	return s.nextIndex.Add(1) - 1
}
